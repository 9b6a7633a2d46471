// Package pricing derives order totals from line items.
package pricing

import (
	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy holds the tax and shipping rules applied to every order.
type Policy struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultPolicy charges 10% tax and a 10.00 flat shipping fee, waived from 100.00.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               decimal.RequireFromString("0.10"),
		ShippingFee:           decimal.NewFromInt(10),
		FreeShippingThreshold: decimal.NewFromInt(100),
	}
}

// Compute returns the totals for lines. An empty order carries no shipping.
func (p Policy) Compute(lines []domain.LineItem) domain.Totals {
	itemsTotal := decimal.Zero
	for _, l := range lines {
		itemsTotal = itemsTotal.Add(l.Subtotal())
	}
	itemsTotal = domain.RoundMoney(itemsTotal)

	tax := domain.RoundMoney(itemsTotal.Mul(p.TaxRate))
	shipping := p.shippingFor(itemsTotal, len(lines))

	return domain.Totals{
		ItemsTotal: itemsTotal,
		Tax:        tax,
		Shipping:   shipping,
		GrandTotal: itemsTotal.Add(tax).Add(shipping),
	}
}

func (p Policy) shippingFor(itemsTotal decimal.Decimal, lineCount int) decimal.Decimal {
	if lineCount == 0 {
		return decimal.Zero
	}
	if p.FreeShippingThreshold.IsPositive() && itemsTotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return domain.RoundMoney(p.ShippingFee)
}
