package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quoteforge/quoting/internal/models"
)

// ConnectAndMigrate opens the database named by DATABASE_DSN (postgres or
// sqlite) and brings the schema up to date. With MIGRATIONS=1 the SQL
// migrations in ./migrations run via golang-migrate; otherwise AutoMigrate
// is used as the dev convenience path.
func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check the environment configuration")
	}
	var gdb *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Unique violations must surface as gorm.ErrDuplicatedKey so the
		// idempotency ledger can resolve races deterministically.
		TranslateError: true,
	}
	dialector := openDialector(dsn)
	for i := 0; i < 10; i++ {
		gdb, err = gorm.Open(dialector, cfg)
		if err == nil {
			break
		}
		logrus.WithError(err).Warn("retrying DB connection")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if pingErr := gdb.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	logrus.WithField("dsn", maskDSN(dsn)).Info("database connected")

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(gdb); err != nil {
			return nil, err
		}
	}

	for _, table := range []string{"accounts", "pricebooks", "skus", "quotes", "quote_lines", "idempotency_keys"} {
		if !gdb.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(gdb)
	}
	return gdb, nil
}

// AutoMigrate creates/updates the schema for all owned models.
func AutoMigrate(gdb *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.Account{}, &models.Pricebook{}, &models.Sku{},
		&models.Quote{}, &models.QuoteLine{}, &models.IdempotencyKey{},
	}
	for _, m := range modelsToMigrate {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique-constraint violation,
// covering both gorm's translated error and raw driver messages.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func openDialector(dsn string) gorm.Dialector {
	if IsSQLiteDSN(dsn) {
		return sqlite.Open(dsn)
	}
	return postgres.Open(dsn)
}

func maskDSN(dsn string) string {
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	return masked
}

// seed inserts a minimal demo catalog so a fresh dev database can price a
// quote immediately. Idempotent: existing rows are left alone.
func seed(gdb *gorm.DB) {
	var pb models.Pricebook
	if err := gdb.Where("name = ?", "Standard/USD").First(&pb).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		pb = models.Pricebook{Name: "Standard/USD", Currency: "USD", IsDefault: true}
		gdb.Create(&pb)
	}
	var acct models.Account
	if err := gdb.Where("name = ?", "Acme").First(&acct).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		gdb.Create(&models.Account{Name: "Acme", Domain: "acme.example"})
	}
	baseSkus := []models.Sku{
		{PricebookID: pb.ID, Code: "WIDGET", Name: "Widget", UnitPrice: decimal.NewFromFloat(10.00)},
		{PricebookID: pb.ID, Code: "PLATFORM", Name: "Platform Bundle", UnitPrice: decimal.NewFromFloat(500.00)},
	}
	for _, s := range baseSkus {
		var existing models.Sku
		if err := gdb.Where("pricebook_id = ? AND code = ?", s.PricebookID, s.Code).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			gdb.Create(&s)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using the
// golang-migrate file source. Postgres only; sqlite schemas come from
// AutoMigrate.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
