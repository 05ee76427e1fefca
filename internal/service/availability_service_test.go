package service

import (
	"context"
	"testing"

	"teahaven/internal/dto"
	"teahaven/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityClassification(t *testing.T) {
	cases := []struct {
		name         string
		onHand       int
		reserved     int
		reorderLevel int
		lowThreshold int
		wantStatus   string
		wantReorder  bool
	}{
		{"plenty of stock", 50, 5, 10, 5, dto.AvailabilityInStock, false},
		{"fully reserved", 10, 10, 5, 3, dto.AvailabilityOutOfStock, false},
		{"zero on hand", 0, 0, 10, 5, dto.AvailabilityOutOfStock, true},
		{"low available", 10, 7, 2, 5, dto.AvailabilityLowStock, false},
		{"reorder point hit", 8, 0, 10, 5, dto.AvailabilityNeedsReorder, true},
		{"at low threshold exactly", 5, 0, 3, 5, dto.AvailabilityLowStock, true},
		{"reserved pushes below threshold", 20, 16, 10, 5, dto.AvailabilityLowStock, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &model.Product{
				ID:                uuid.New(),
				Name:              tc.name,
				OnHandStock:       tc.onHand,
				ReservedStock:     tc.reserved,
				ReorderLevel:      tc.reorderLevel,
				LowStockThreshold: tc.lowThreshold,
				IsActive:          true,
			}
			got := classify(p)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantReorder, got.NeedsReorder)
			assert.Equal(t, tc.onHand-tc.reserved, got.AvailableStock)
		})
	}
}

func TestCheckBatch(t *testing.T) {
	inStock := activeProduct("longjing", 10, 2)
	inactive := activeProduct("discontinued", 10, 0)
	inactive.IsActive = false
	svc := NewAvailabilityService(newStubProductRepo(inStock, inactive))

	results, err := svc.CheckBatch(context.Background(), dto.AvailabilityCheckRequest{
		Items: []dto.AvailabilityCheckItem{
			{ProductID: inStock.ID.String(), Quantity: 8},
			{ProductID: inStock.ID.String(), Quantity: 9},
			{ProductID: inactive.ID.String(), Quantity: 1},
			{ProductID: uuid.NewString(), Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].InStock)
	assert.Equal(t, 8, results[0].Available)
	assert.False(t, results[1].InStock, "requesting more than available")
	assert.False(t, results[2].InStock, "inactive products are never in stock")
	assert.False(t, results[3].InStock, "unknown products are never in stock")
}

func TestLowStockReport(t *testing.T) {
	healthy := activeProduct("healthy", 50, 0)
	low := activeProduct("low", 4, 0)
	inactiveLow := activeProduct("gone", 1, 0)
	inactiveLow.IsActive = false
	svc := NewAvailabilityService(newStubProductRepo(healthy, low, inactiveLow))

	report, err := svc.LowStockReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, low.ID.String(), report[0].ProductID)
	assert.True(t, report[0].NeedsReorder)
}
