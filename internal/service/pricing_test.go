package service

import (
	"testing"

	"teahaven/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShippingCalculator(t *testing.T) {
	calc := NewShippingCalculator()
	bangkok := &model.Address{Region: "Bangkok"}
	remote := &model.Address{Region: "Mae Hong Son"}

	t.Run("domestic standard", func(t *testing.T) {
		q := calc.Quote(bangkok, decimal.NewFromInt(400), 3, false)
		assert.Equal(t, "standard", q.Method)
		assert.Equal(t, 3, q.EstimatedDays)
		// base 45 + 3 items * 8
		assert.True(t, q.Cost.Equal(decimal.NewFromInt(69)))
		assert.True(t, q.TaxAmount.Equal(decimal.NewFromInt(28)))
	})

	t.Run("imported goods use bonded courier", func(t *testing.T) {
		q := calc.Quote(bangkok, decimal.NewFromInt(400), 1, true)
		assert.Equal(t, "bonded-courier", q.Method)
		assert.Equal(t, 7, q.EstimatedDays)
		assert.True(t, q.Cost.Equal(decimal.NewFromInt(173))) // 45 + 8 + 120
	})

	t.Run("free shipping over floor", func(t *testing.T) {
		q := calc.Quote(bangkok, decimal.NewFromInt(2000), 4, false)
		assert.Equal(t, "standard-free", q.Method)
		assert.True(t, q.Cost.IsZero())
	})

	t.Run("imported never ships free", func(t *testing.T) {
		q := calc.Quote(bangkok, decimal.NewFromInt(2000), 1, true)
		assert.False(t, q.Cost.IsZero())
	})

	t.Run("remote region adds transit days", func(t *testing.T) {
		q := calc.Quote(remote, decimal.NewFromInt(400), 1, false)
		assert.Equal(t, 5, q.EstimatedDays)
	})

	t.Run("same inputs same quote", func(t *testing.T) {
		a := calc.Quote(bangkok, decimal.NewFromInt(777), 2, true)
		b := calc.Quote(bangkok, decimal.NewFromInt(777), 2, true)
		assert.True(t, a.Cost.Equal(b.Cost))
		assert.True(t, a.TaxAmount.Equal(b.TaxAmount))
		assert.Equal(t, a.Method, b.Method)
	})
}
