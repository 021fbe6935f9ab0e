package services

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quoteforge/quoting/internal/db"
	"github.com/quoteforge/quoting/internal/models"
)

// DefaultIdempotencyTTL is how long a key maps to its resource before it is
// eligible for lazy purge.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyLedger maps caller-supplied keys to previously created
// resources. Expired rows are purged lazily on every access; there is no
// background sweeper. The unique constraint on the key column is the source
// of truth when concurrent creators race.
type IdempotencyLedger struct {
	db  *gorm.DB
	ttl time.Duration
	log *logrus.Entry
}

func NewIdempotencyLedger(gdb *gorm.DB, ttl time.Duration) *IdempotencyLedger {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyLedger{
		db:  gdb,
		ttl: ttl,
		log: logrus.WithField("component", "idempotency"),
	}
}

// Check returns the resource id recorded for key, if any unexpired entry
// exists. Missing and expired keys both report a miss.
func (l *IdempotencyLedger) Check(key string) (uint, bool, error) {
	if key == "" {
		return 0, false, nil
	}
	if err := l.purgeExpired(l.db); err != nil {
		return 0, false, err
	}
	var rec models.IdempotencyKey
	err := l.db.Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, NewPersistenceError("read", "idempotency key", err)
	}
	return rec.ResourceID, true, nil
}

// Store records key -> resource inside the caller's transaction so the key
// commits or rolls back together with the resource it guards. A key that
// already exists for a different resource surfaces as a ConflictError.
func (l *IdempotencyLedger) Store(tx *gorm.DB, key, resourceType string, resourceID uint) error {
	if key == "" {
		return NewValidationError("idempotency_key", "must be a non-empty string")
	}
	if err := l.purgeExpired(tx); err != nil {
		return err
	}
	rec := models.IdempotencyKey{
		Key:          key,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ExpiresAt:    time.Now().UTC().Add(l.ttl),
	}
	if err := tx.Create(&rec).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return NewConflictError("idempotency key", "key already recorded for another resource")
		}
		return NewPersistenceError("store", "idempotency key", err)
	}
	return nil
}

// Forget drops a key whose resource no longer exists, so a retried create
// can proceed as new instead of returning a dangling id.
func (l *IdempotencyLedger) Forget(key string) error {
	if key == "" {
		return nil
	}
	if err := l.db.Where("key = ?", key).Delete(&models.IdempotencyKey{}).Error; err != nil {
		return NewPersistenceError("delete", "idempotency key", err)
	}
	l.log.WithField("key", key).Debug("purged stale idempotency key")
	return nil
}

func (l *IdempotencyLedger) purgeExpired(tx *gorm.DB) error {
	res := tx.Where("expires_at <= ?", time.Now().UTC()).Delete(&models.IdempotencyKey{})
	if res.Error != nil {
		return NewPersistenceError("purge", "idempotency keys", res.Error)
	}
	if res.RowsAffected > 0 {
		l.log.WithField("purged", res.RowsAffected).Debug("removed expired idempotency keys")
	}
	return nil
}
