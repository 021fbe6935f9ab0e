package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quoteforge/quoting/internal/models"
)

// CreateQuoteRequest is the validated input for quote creation.
type CreateQuoteRequest struct {
	AccountID   uint               `json:"account_id"`
	PricebookID uint               `json:"pricebook_id"`
	Lines       []QuoteLineRequest `json:"lines"`
}

// QuoteLineRequest is one requested line. UnitPrice, when set, overrides
// the SKU's catalog price for the snapshot.
type QuoteLineRequest struct {
	SkuID       uint             `json:"sku_id"`
	Qty         int              `json:"qty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPct float64          `json:"discount_pct"`
}

// QuoteValidator enforces structural and cross-entity invariants on a
// creation request before any write happens. All checks are read-only
// against the catalog and short-circuit on the first failure.
type QuoteValidator struct {
	db *gorm.DB
}

func NewQuoteValidator(gdb *gorm.DB) *QuoteValidator {
	return &QuoteValidator{db: gdb}
}

// Validate checks, in order: account exists, pricebook exists, lines
// non-empty, then per line the field ranges and that the SKU belongs to
// the target pricebook.
func (v *QuoteValidator) Validate(req CreateQuoteRequest) error {
	if req.AccountID == 0 {
		return NewValidationError("account_id", "valid account id is required")
	}
	if err := v.exists(&models.Account{}, req.AccountID, "account_id", "account"); err != nil {
		return err
	}
	if req.PricebookID == 0 {
		return NewValidationError("pricebook_id", "valid pricebook id is required")
	}
	if err := v.exists(&models.Pricebook{}, req.PricebookID, "pricebook_id", "pricebook"); err != nil {
		return err
	}
	if len(req.Lines) == 0 {
		return NewValidationError("lines", "quote must have at least one line item")
	}
	for i, line := range req.Lines {
		if err := v.ValidateLine(req.PricebookID, line); err != nil {
			if ve, ok := IsValidationError(err); ok {
				ve.Field = fmt.Sprintf("lines[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

// ValidateLine checks one line against the target pricebook. Shared by
// quote creation and the draft line mutations.
func (v *QuoteValidator) ValidateLine(pricebookID uint, line QuoteLineRequest) error {
	if line.SkuID == 0 {
		return NewValidationError("sku_id", "valid sku id is required")
	}
	if line.Qty < 1 {
		return NewValidationError("qty", "quantity must be at least 1")
	}
	if line.DiscountPct < 0 || line.DiscountPct >= 1 {
		return NewValidationError("discount_pct", "discount must be in [0, 1)")
	}
	if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
		return NewValidationError("unit_price", "unit price must be non-negative")
	}
	return v.skuInPricebook(line.SkuID, pricebookID)
}

// skuInPricebook distinguishes "no such SKU" from "SKU lives in another
// pricebook", naming the other pricebook so the caller can self-correct.
func (v *QuoteValidator) skuInPricebook(skuID, pricebookID uint) error {
	var sku models.Sku
	err := v.db.First(&sku, skuID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewValidationError("sku_id", fmt.Sprintf("sku %d does not exist", skuID))
	}
	if err != nil {
		return NewPersistenceError("read", "sku", err)
	}
	if sku.PricebookID != pricebookID {
		suggestion := fmt.Sprintf("sku %d belongs to pricebook %d", skuID, sku.PricebookID)
		var other models.Pricebook
		if v.db.First(&other, sku.PricebookID).Error == nil {
			suggestion = fmt.Sprintf("sku %d (%s) is priced in pricebook %q (id %d)", skuID, sku.Code, other.Name, other.ID)
		}
		return NewValidationError("sku_id",
			fmt.Sprintf("sku %d does not belong to pricebook %d", skuID, pricebookID),
			suggestion)
	}
	return nil
}

func (v *QuoteValidator) exists(model any, id uint, field, resource string) error {
	err := v.db.First(model, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewValidationError(field, fmt.Sprintf("%s %d does not exist", resource, id))
	}
	if err != nil {
		return NewPersistenceError("read", resource, err)
	}
	return nil
}
