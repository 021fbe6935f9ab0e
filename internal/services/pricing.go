package services

import (
	"github.com/shopspring/decimal"

	"github.com/quoteforge/quoting/internal/models"
)

// PricingService computes per-line totals and quote-level aggregates with
// fixed-point decimal arithmetic. Intermediate products keep full precision;
// rounding to two places (half up) happens only at aggregation/display time.
type PricingService struct{}

func NewPricingService() *PricingService { return &PricingService{} }

// PricedLine is a line with its unit price already resolved (override,
// snapshot or catalog fallback).
type PricedLine struct {
	UnitPrice   decimal.Decimal
	Qty         int
	DiscountPct float64
}

// Totals aggregates a quote's lines. Subtotal is post-discount,
// Undiscounted pre-discount; DiscountAbs = Undiscounted - Subtotal and
// DiscountPct is the derived ratio (not a mean of per-line discounts).
type Totals struct {
	Subtotal     decimal.Decimal
	Undiscounted decimal.Decimal
	DiscountAbs  decimal.Decimal
	DiscountPct  float64
}

// LineTotal computes unit_price * qty * (1 - discount_pct) at full
// precision. Callers round for display.
func (s *PricingService) LineTotal(unitPrice decimal.Decimal, qty int, discountPct float64) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	if discountPct == 0 {
		return gross
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPct))
	return gross.Mul(factor)
}

// ResolveUnitPrice picks the effective unit price for a line: the explicit
// override when supplied, else the SKU's catalog price, else zero when the
// SKU record is gone.
func (s *PricingService) ResolveUnitPrice(override *decimal.Decimal, sku *models.Sku) decimal.Decimal {
	if override != nil {
		return *override
	}
	if sku != nil {
		return sku.UnitPrice
	}
	return decimal.Zero
}

// Aggregate sums lines at full precision, then rounds the monetary results
// to two places. The discount ratio is quantized to four places the way the
// document model reports it.
func (s *PricingService) Aggregate(lines []PricedLine) Totals {
	subtotal := decimal.Zero
	undiscounted := decimal.Zero
	for _, l := range lines {
		gross := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
		undiscounted = undiscounted.Add(gross)
		subtotal = subtotal.Add(s.LineTotal(l.UnitPrice, l.Qty, l.DiscountPct))
	}
	t := Totals{
		Subtotal:     subtotal.Round(2),
		Undiscounted: undiscounted.Round(2),
	}
	t.DiscountAbs = undiscounted.Sub(subtotal).Round(2)
	if undiscounted.IsPositive() {
		ratio := undiscounted.Sub(subtotal).Div(undiscounted).Round(4)
		t.DiscountPct, _ = ratio.Float64()
	}
	return t
}
