package service

import (
	"context"
	"testing"
	"time"

	"teahaven/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProducts(t *testing.T) (ProductService, StockService, *stubProductRepo) {
	t.Helper()
	repo := newStubProductRepo()
	stock := NewStockService(repo, &stubLedgerRepo{}, nil, 3*time.Second)
	return NewProductService(repo, stock), stock, repo
}

func TestUpdateProduct_PatchesCatalogFields(t *testing.T) {
	svc, _, repo := newTestProducts(t)
	p := activeProduct("sencha", 10, 0)
	repo.products[p.ID] = p

	name := "sencha premium"
	price := decimal.NewFromInt(120)
	resp, err := svc.Update(context.Background(), p.ID, dto.UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "sencha premium", resp.Name)
	assert.True(t, resp.Price.Equal(price))
	assert.Equal(t, "SKU-sencha", resp.SKU)
}

// A reservation commits between the catalog read and the catalog write. The
// update must not write the stale counters back over it.
func TestUpdateProduct_PreservesConcurrentCounterMutation(t *testing.T) {
	svc, stock, repo := newTestProducts(t)
	p := activeProduct("sencha", 10, 0)
	repo.products[p.ID] = p
	ctx := context.Background()

	repo.afterFindByID = func() {
		_, err := stock.Reserve(ctx, p.ID, 4, StockMeta{})
		require.NoError(t, err)
	}

	name := "sencha premium"
	_, err := svc.Update(ctx, p.ID, dto.UpdateProductRequest{Name: &name})
	require.NoError(t, err)

	live := repo.products[p.ID]
	assert.Equal(t, "sencha premium", live.Name)
	assert.Equal(t, 10, live.OnHandStock)
	assert.Equal(t, 4, live.ReservedStock)
}
