package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineDoc is the render-ready projection of one quote line, enriched with
// catalog context. Indentation is single-level: a child of a bundle renders
// at level 1 regardless of how deep the SKU tree actually goes.
type LineDoc struct {
	Index            int             `json:"index"`
	ProductName      string          `json:"product_name"`
	SkuCode          string          `json:"sku_code"`
	Qty              int             `json:"qty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DiscountPct      float64         `json:"discount_pct"`
	LineTotal        decimal.Decimal `json:"line_total"`
	IndentLevel      int             `json:"indent_level"`
	IsBundleParent   bool            `json:"is_bundle_parent"`
	IsRequiredOption bool            `json:"is_required_option"`
	IsSubscription   bool            `json:"is_subscription"`
	TermMonths       *int            `json:"term_months,omitempty"`
	AttributesText   string          `json:"attributes_text,omitempty"`
}

// QuoteDoc is the derived, denormalized document model a renderer consumes.
// It is never persisted; DeriveDocument rebuilds it from the quote aggregate
// and a catalog snapshot on every call.
type QuoteDoc struct {
	QuoteID          uint            `json:"quote_id"`
	QuoteDate        time.Time       `json:"quote_date"`
	ValidUntil       *time.Time      `json:"valid_until,omitempty"`
	TermMonths       *int            `json:"term_months,omitempty"`
	PricebookName    string          `json:"pricebook_name"`
	Currency         string          `json:"currency"`
	BillToName       string          `json:"bill_to_name"`
	BillToAddress    string          `json:"bill_to_address"`
	ShipToName       string          `json:"ship_to_name"`
	ShipToAddress    string          `json:"ship_to_address"`
	Lines            []LineDoc       `json:"lines"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TotalDiscountAbs decimal.Decimal `json:"total_discount_abs"`
	TotalDiscountPct float64         `json:"total_discount_pct"`
	Tax              decimal.Decimal `json:"tax"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
}
