package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteforge/quoting/internal/models"
)

func createQuote(t *testing.T, svc *QuoteService, f fixtures, lines ...QuoteLineRequest) *models.Quote {
	t.Helper()
	quote, err := svc.Create(CreateQuoteRequest{
		AccountID:   f.Account.ID,
		PricebookID: f.Pricebook.ID,
		Lines:       lines,
	}, "")
	require.NoError(t, err)
	return quote
}

func TestDeriveBundleStructure(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Platform.ID, Qty: 1},
		QuoteLineRequest{SkuID: f.Support.ID, Qty: 1},
	)

	doc, err := docs.Derive(quote.ID)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 2)

	parent, child := doc.Lines[0], doc.Lines[1]
	assert.True(t, parent.IsBundleParent)
	assert.Equal(t, 0, parent.IndentLevel)
	assert.False(t, child.IsBundleParent)
	assert.Equal(t, 1, child.IndentLevel)
	assert.True(t, child.IsRequiredOption)
	assert.True(t, child.IsSubscription)
	require.NotNil(t, child.TermMonths)
	assert.Equal(t, 12, *child.TermMonths)
}

// Bundle classification is scoped to the quote: a parent whose children
// are not quoted renders as a plain line.
func TestDeriveParentAloneIsNotBundle(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Platform.ID, Qty: 1},
	)

	doc, err := docs.Derive(quote.ID)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.False(t, doc.Lines[0].IsBundleParent)
}

// A child quoted without its parent keeps its indent; indentation follows
// the SKU's own parent pointer, not the parent's presence on the quote.
func TestDeriveOrphanChildKeepsIndent(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Support.ID, Qty: 1},
	)

	doc, err := docs.Derive(quote.ID)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 1, doc.Lines[0].IndentLevel)
	assert.False(t, doc.Lines[0].IsBundleParent)
}

func TestDeriveTotals(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Widget.ID, Qty: 10, DiscountPct: 0.10},
	)

	doc, err := docs.Derive(quote.ID)
	require.NoError(t, err)
	assert.True(t, doc.Subtotal.Equal(dec("90.00")), "got %s", doc.Subtotal)
	assert.True(t, doc.TotalDiscountAbs.Equal(dec("10.00")))
	assert.InDelta(t, 0.10, doc.TotalDiscountPct, 0.0001)
	assert.True(t, doc.Tax.IsZero())
	assert.True(t, doc.GrandTotal.Equal(doc.Subtotal))
	require.Len(t, doc.Lines, 1)
	assert.True(t, doc.Lines[0].LineTotal.Equal(dec("90.00")))
}

// Deleted SKUs degrade to synthesized placeholders instead of failing the
// whole document.
func TestDeriveMissingSkuFallback(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Widget.ID, Qty: 2},
	)
	require.NoError(t, gdb.Unscoped().Delete(&models.Sku{}, f.Widget.ID).Error)

	doc, err := docs.Derive(quote.ID)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.Contains(t, line.ProductName, "SKU ")
	// The snapshot taken at creation still prices the line.
	assert.True(t, line.UnitPrice.Equal(dec("10.00")))
	assert.True(t, line.LineTotal.Equal(dec("20.00")))
}

func TestDeriveMissingAccountIsFatal(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Widget.ID, Qty: 1},
	)
	require.NoError(t, gdb.Unscoped().Delete(&models.Account{}, f.Account.ID).Error)

	_, err := docs.Derive(quote.ID)
	ie, ok := IsIncompleteQuoteError(err)
	require.True(t, ok, "expected incomplete quote error, got %v", err)
	assert.Equal(t, "account", ie.Missing)
}

func TestDeriveHeaderFields(t *testing.T) {
	gdb := setupTestDB(t)
	f := seedCatalog(t, gdb)
	docs := newDocumentService(gdb)
	quote := createQuote(t, docs.quotes, f,
		QuoteLineRequest{SkuID: f.Widget.ID, Qty: 1},
	)

	doc, err := docs.Derive(quote.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, doc.QuoteID)
	assert.Equal(t, "Standard", doc.PricebookName)
	assert.Equal(t, "USD", doc.Currency)
	assert.Equal(t, "Acme Corp", doc.BillToName)
	assert.Equal(t, doc.BillToName, doc.ShipToName)
	assert.Equal(t, "Address not provided", doc.BillToAddress)
}
