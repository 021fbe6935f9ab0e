package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus is the one-way quote lifecycle.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted:
		return true
	}
	return false
}

// CanTransitionTo implements the transition table: draft and sent may move
// to any state; accepted is terminal. Re-setting accepted on an already
// accepted quote is treated as an idempotent no-op.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == QuoteStatusAccepted {
		return next == QuoteStatusAccepted
	}
	return true
}

// Quote is the priced quotation aggregate. Lines may only be added, edited
// or removed while status is draft. CreatedAt is server-assigned.
type Quote struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	AccountID   uint        `gorm:"not null;index" json:"account_id"`
	PricebookID uint        `gorm:"not null;index" json:"pricebook_id"`
	Status      QuoteStatus `gorm:"size:16;not null;default:'draft'" json:"status"`
	Lines       []QuoteLine `gorm:"foreignKey:QuoteID" json:"lines"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// QuoteLine is one priced position on a quote. UnitPrice is a snapshot
// taken from the SKU at line-creation time unless the caller supplied an
// override; later catalog price changes never touch existing lines.
type QuoteLine struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	QuoteID     uint             `gorm:"not null;index" json:"quote_id"`
	SkuID       uint             `gorm:"not null" json:"sku_id"`
	Qty         int              `gorm:"not null" json:"qty"`
	UnitPrice   *decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price,omitempty"`
	DiscountPct float64          `gorm:"not null;default:0" json:"discount_pct"` // [0,1)
}

// IdempotencyKey maps a caller-supplied key to the resource it created.
// Rows are a pure deduplication index; expired ones are purged lazily on
// each ledger access rather than by a sweeper.
type IdempotencyKey struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Key          string    `gorm:"size:255;not null;uniqueIndex" json:"key"`
	ResourceType string    `gorm:"size:40;not null" json:"resource_type"`
	ResourceID   uint      `gorm:"not null" json:"resource_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `gorm:"not null;index" json:"expires_at"`
}
