package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteforge/quoting/internal/models"
)

func TestLedgerStoreAndCheck(t *testing.T) {
	gdb := setupTestDB(t)
	ledger := NewIdempotencyLedger(gdb, DefaultIdempotencyTTL)

	require.NoError(t, ledger.Store(gdb, "k1", "quote", 42))
	id, hit, err := ledger.Check("k1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 42, id)

	_, hit, err = ledger.Check("unknown")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLedgerDuplicateKeyConflicts(t *testing.T) {
	gdb := setupTestDB(t)
	ledger := NewIdempotencyLedger(gdb, DefaultIdempotencyTTL)

	require.NoError(t, ledger.Store(gdb, "k1", "quote", 1))
	err := ledger.Store(gdb, "k1", "quote", 2)
	_, ok := IsConflictError(err)
	assert.True(t, ok, "expected conflict, got %v", err)
}

// Expired rows are purged lazily on access, not by a background sweeper.
func TestLedgerExpiredKeyPurgedOnCheck(t *testing.T) {
	gdb := setupTestDB(t)
	ledger := NewIdempotencyLedger(gdb, DefaultIdempotencyTTL)

	row := expiredKey("k-old", 7)
	require.NoError(t, gdb.Create(&row).Error)

	_, hit, err := ledger.Check("k-old")
	require.NoError(t, err)
	assert.False(t, hit)

	var count int64
	gdb.Model(&models.IdempotencyKey{}).Where("key = ?", "k-old").Count(&count)
	assert.Zero(t, count)

	// The slot is reusable immediately after the purge.
	require.NoError(t, ledger.Store(gdb, "k-old", "quote", 8))
}

func TestLedgerTTLBoundsExpiry(t *testing.T) {
	gdb := setupTestDB(t)
	ledger := NewIdempotencyLedger(gdb, 1*time.Hour)

	require.NoError(t, ledger.Store(gdb, "k-short", "quote", 1))
	var row models.IdempotencyKey
	require.NoError(t, gdb.Where("key = ?", "k-short").First(&row).Error)
	assert.WithinDuration(t, time.Now().Add(1*time.Hour), row.ExpiresAt, time.Minute)
}

func TestLedgerForget(t *testing.T) {
	gdb := setupTestDB(t)
	ledger := NewIdempotencyLedger(gdb, DefaultIdempotencyTTL)

	require.NoError(t, ledger.Store(gdb, "k-gone", "quote", 3))
	require.NoError(t, ledger.Forget("k-gone"))
	_, hit, err := ledger.Check("k-gone")
	require.NoError(t, err)
	assert.False(t, hit)
}
