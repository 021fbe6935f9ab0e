package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quoteforge/quoting/internal/db"
	"github.com/quoteforge/quoting/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

type fixtures struct {
	Account   models.Account
	Pricebook models.Pricebook
	Widget    models.Sku
	Platform  models.Sku
	Support   models.Sku
}

// seedCatalog creates one account, one pricebook and three SKUs: a plain
// widget, a bundle parent and a child option hanging off the parent.
func seedCatalog(t *testing.T, gdb *gorm.DB) fixtures {
	t.Helper()
	f := fixtures{
		Account:   models.Account{Name: "Acme Corp", Domain: "acme.example"},
		Pricebook: models.Pricebook{Name: "Standard", Currency: "USD", IsDefault: true},
	}
	require.NoError(t, gdb.Create(&f.Account).Error)
	require.NoError(t, gdb.Create(&f.Pricebook).Error)

	f.Widget = models.Sku{
		PricebookID: f.Pricebook.ID,
		Code:        "WIDGET",
		Name:        "Widget",
		UnitPrice:   decimal.RequireFromString("10.00"),
	}
	require.NoError(t, gdb.Create(&f.Widget).Error)

	f.Platform = models.Sku{
		PricebookID: f.Pricebook.ID,
		Code:        "PLATFORM",
		Name:        "Platform Suite",
		UnitPrice:   decimal.RequireFromString("500.00"),
	}
	require.NoError(t, gdb.Create(&f.Platform).Error)

	term := 12
	f.Support = models.Sku{
		PricebookID: f.Pricebook.ID,
		Code:        "SUPPORT",
		Name:        "Premium Support",
		UnitPrice:   decimal.RequireFromString("50.00"),
		ParentSkuID: &f.Platform.ID,
		Attributes: models.SkuAttributes{
			IsRequiredOption: true,
			IsSubscription:   true,
			TermMonths:       &term,
		},
	}
	require.NoError(t, gdb.Create(&f.Support).Error)
	return f
}

func newQuoteService(gdb *gorm.DB) *QuoteService {
	pricing := NewPricingService()
	ledger := NewIdempotencyLedger(gdb, DefaultIdempotencyTTL)
	return NewQuoteService(gdb, NewQuoteValidator(gdb), pricing, ledger)
}

func newDocumentService(gdb *gorm.DB) *DocumentService {
	quotes := newQuoteService(gdb)
	return NewDocumentService(gdb, quotes, NewPricingService())
}

func expiredKey(key string, id uint) models.IdempotencyKey {
	return models.IdempotencyKey{
		Key:          key,
		ResourceType: "quote",
		ResourceID:   id,
		CreatedAt:    time.Now().Add(-48 * time.Hour),
		ExpiresAt:    time.Now().Add(-24 * time.Hour),
	}
}
