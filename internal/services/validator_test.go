package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteforge/quoting/internal/models"
)

func TestValidateUnknownAccount(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	err := v.Validate(CreateQuoteRequest{
		AccountID:   9999,
		PricebookID: f.Pricebook.ID,
		Lines:       []QuoteLineRequest{{SkuID: f.Widget.ID, Qty: 1}},
	})
	ve, ok := IsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "account_id", ve.Field)
}

func TestValidateEmptyLines(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	err := v.Validate(CreateQuoteRequest{AccountID: f.Account.ID, PricebookID: f.Pricebook.ID})
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "lines", ve.Field)
}

func TestValidateLineRanges(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	cases := []struct {
		name  string
		line  QuoteLineRequest
		field string
	}{
		{"zero qty", QuoteLineRequest{SkuID: f.Widget.ID, Qty: 0}, "qty"},
		{"negative qty", QuoteLineRequest{SkuID: f.Widget.ID, Qty: -2}, "qty"},
		{"discount one", QuoteLineRequest{SkuID: f.Widget.ID, Qty: 1, DiscountPct: 1.0}, "discount_pct"},
		{"discount negative", QuoteLineRequest{SkuID: f.Widget.ID, Qty: 1, DiscountPct: -0.1}, "discount_pct"},
		{"missing sku id", QuoteLineRequest{Qty: 1}, "sku_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateLine(f.Pricebook.ID, tc.line)
			ve, ok := IsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Contains(t, ve.Field, tc.field)
		})
	}

	// 0.9999 is still below the exclusive upper bound
	require.NoError(t, v.ValidateLine(f.Pricebook.ID, QuoteLineRequest{SkuID: f.Widget.ID, Qty: 1, DiscountPct: 0.9999}))
}

func TestValidateNegativePriceOverride(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	neg := dec("-1.00")
	err := v.ValidateLine(f.Pricebook.ID, QuoteLineRequest{SkuID: f.Widget.ID, Qty: 1, UnitPrice: &neg})
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Field, "unit_price")
}

func TestValidateSkuNotInCatalog(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	err := v.ValidateLine(f.Pricebook.ID, QuoteLineRequest{SkuID: 9999, Qty: 1})
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Message, "does not exist")
}

// A SKU from another pricebook is a distinct failure from a missing SKU:
// the message must name the pricebook where the SKU actually lives.
func TestValidateSkuWrongPricebook(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	other := models.Pricebook{Name: "Enterprise", Currency: "EUR"}
	require.NoError(t, gdb.Create(&other).Error)
	foreign := models.Sku{PricebookID: other.ID, Code: "ENT-1", Name: "Enterprise Widget", UnitPrice: dec("99.00")}
	require.NoError(t, gdb.Create(&foreign).Error)

	err := v.ValidateLine(f.Pricebook.ID, QuoteLineRequest{SkuID: foreign.ID, Qty: 1})
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.NotContains(t, ve.Message, "does not exist")
	require.NotEmpty(t, ve.Suggestions)
	assert.Contains(t, ve.Suggestions[0], "Enterprise")
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	gdb := setupTestDB(t)
	seedCatalog(t, gdb)
	v := NewQuoteValidator(gdb)

	// Both the account and the lines are bad; the account check runs first.
	err := v.Validate(CreateQuoteRequest{AccountID: 9999, PricebookID: 9999})
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "account_id", ve.Field)
}
