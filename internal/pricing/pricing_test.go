package pricing

import (
	"math/rand"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(price string, qty int) domain.LineItem {
	return domain.LineItem{UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestCompute_TaxAndFreeShipping(t *testing.T) {
	totals := DefaultPolicy().Compute([]domain.LineItem{line("100", 2), line("50", 1)})

	assert.Equal(t, "250", totals.ItemsTotal.String())
	assert.Equal(t, "25", totals.Tax.String())
	assert.True(t, totals.Shipping.IsZero())
	assert.Equal(t, "275", totals.GrandTotal.String())
}

func TestCompute_FlatShippingBelowThreshold(t *testing.T) {
	totals := DefaultPolicy().Compute([]domain.LineItem{line("19.99", 2)})

	assert.Equal(t, "39.98", totals.ItemsTotal.String())
	assert.Equal(t, "4", totals.Tax.String())
	assert.Equal(t, "10", totals.Shipping.String())
	assert.Equal(t, "53.98", totals.GrandTotal.String())
}

func TestCompute_ThresholdIsInclusive(t *testing.T) {
	totals := DefaultPolicy().Compute([]domain.LineItem{line("100", 1)})
	assert.True(t, totals.Shipping.IsZero())
}

func TestCompute_EmptyOrder(t *testing.T) {
	totals := DefaultPolicy().Compute(nil)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.True(t, totals.Shipping.IsZero())
}

func TestCompute_NoThresholdAlwaysCharges(t *testing.T) {
	p := DefaultPolicy()
	p.FreeShippingThreshold = decimal.Zero
	totals := p.Compute([]domain.LineItem{line("500", 1)})
	assert.Equal(t, "10", totals.Shipping.String())
}

func TestCompute_GrandTotalIsSumOfParts(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	p := DefaultPolicy()
	for i := 0; i < 200; i++ {
		var lines []domain.LineItem
		for j := 0; j < 1+r.Intn(5); j++ {
			cents := int64(r.Intn(50000))
			lines = append(lines, domain.LineItem{
				UnitPrice: domain.FromMinorUnits(cents),
				Quantity:  1 + r.Intn(domain.MaxItemQuantity),
			})
		}
		got := p.Compute(lines)
		assert.True(t, got.GrandTotal.Equal(got.ItemsTotal.Add(got.Tax).Add(got.Shipping)))
		assert.True(t, got.Tax.Equal(domain.RoundMoney(got.ItemsTotal.Mul(p.TaxRate))))
	}
}
