package services

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quoteforge/quoting/internal/models"
)

// QuoteService owns the Quote/QuoteLine aggregate: creation with
// idempotency, draft-only line mutations, the status state machine, and
// deletion. Every mutation runs inside a single transaction; a failure
// rolls the whole unit back.
type QuoteService struct {
	db        *gorm.DB
	validator *QuoteValidator
	pricing   *PricingService
	ledger    *IdempotencyLedger
	log       *logrus.Entry
}

func NewQuoteService(gdb *gorm.DB, validator *QuoteValidator, pricing *PricingService, ledger *IdempotencyLedger) *QuoteService {
	return &QuoteService{
		db:        gdb,
		validator: validator,
		pricing:   pricing,
		ledger:    ledger,
		log:       logrus.WithField("component", "quotes"),
	}
}

// Create validates the request, prices each line and persists the quote,
// its lines and the idempotency key as one atomic unit.
//
// An idempotency hit returns the original quote untouched, even when the
// retried payload differs: the key wins over the payload. If the recorded
// quote was deleted in the meantime the stale key is purged and creation
// proceeds as new. When concurrent creators race on the same key, the
// loser observes the unique-constraint violation, re-reads the ledger and
// returns the winner's quote instead of erroring.
func (s *QuoteService) Create(req CreateQuoteRequest, idempotencyKey string) (*models.Quote, error) {
	if idempotencyKey != "" {
		if existing, err := s.replayIdempotent(idempotencyKey); existing != nil || err != nil {
			return existing, err
		}
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var quote models.Quote
	err := s.db.Transaction(func(tx *gorm.DB) error {
		quote = models.Quote{
			AccountID:   req.AccountID,
			PricebookID: req.PricebookID,
			Status:      models.QuoteStatusDraft,
		}
		if err := tx.Create(&quote).Error; err != nil {
			return NewPersistenceError("create", "quote", err)
		}
		for _, lr := range req.Lines {
			line, err := s.buildLine(tx, quote.ID, lr)
			if err != nil {
				return err
			}
			if err := tx.Create(line).Error; err != nil {
				return NewPersistenceError("create", "quote line", err)
			}
		}
		if idempotencyKey != "" {
			return s.ledger.Store(tx, idempotencyKey, "quote", quote.ID)
		}
		return nil
	})
	if err != nil {
		if _, conflict := IsConflictError(err); conflict && idempotencyKey != "" {
			// Lost the race: another writer committed under this key first.
			if winner, rerr := s.replayIdempotent(idempotencyKey); winner != nil || rerr != nil {
				return winner, rerr
			}
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"quote_id":   quote.ID,
		"account_id": req.AccountID,
		"lines":      len(req.Lines),
	}).Info("quote created")
	return s.Get(quote.ID)
}

// replayIdempotent returns the quote recorded for key, purging the key when
// the quote no longer exists. (nil, nil) means "proceed as a new create".
func (s *QuoteService) replayIdempotent(key string) (*models.Quote, error) {
	id, hit, err := s.ledger.Check(key)
	if err != nil || !hit {
		return nil, err
	}
	quote, err := s.Get(id)
	if err == nil {
		s.log.WithFields(logrus.Fields{"quote_id": id, "key": key}).Info("idempotent replay")
		return quote, nil
	}
	if _, notFound := IsNotFoundError(err); notFound {
		if ferr := s.ledger.Forget(key); ferr != nil {
			return nil, ferr
		}
		return nil, nil
	}
	return nil, err
}

// buildLine snapshots the unit price (override wins over catalog) at
// creation time.
func (s *QuoteService) buildLine(tx *gorm.DB, quoteID uint, lr QuoteLineRequest) (*models.QuoteLine, error) {
	unit := lr.UnitPrice
	if unit == nil {
		var sku models.Sku
		if err := tx.First(&sku, lr.SkuID).Error; err != nil {
			return nil, NewPersistenceError("read", "sku", err)
		}
		price := sku.UnitPrice
		unit = &price
	}
	return &models.QuoteLine{
		QuoteID:     quoteID,
		SkuID:       lr.SkuID,
		Qty:         lr.Qty,
		UnitPrice:   unit,
		DiscountPct: lr.DiscountPct,
	}, nil
}

// Get loads a quote with its lines in insertion order.
func (s *QuoteService) Get(quoteID uint) (*models.Quote, error) {
	if quoteID == 0 {
		return nil, NewValidationError("quote_id", "valid quote id is required")
	}
	var quote models.Quote
	err := s.db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("quote_lines.id ASC")
	}).First(&quote, quoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("quote", quoteID)
	}
	if err != nil {
		return nil, NewPersistenceError("read", "quote", err)
	}
	return &quote, nil
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	AccountID   uint
	PricebookID uint
	Status      models.QuoteStatus
	Offset      int
	Limit       int
}

// List returns quotes newest-first.
func (s *QuoteService) List(f ListFilter) ([]models.Quote, error) {
	q := s.db.Model(&models.Quote{})
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.PricebookID != 0 {
		q = q.Where("pricebook_id = ?", f.PricebookID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var quotes []models.Quote
	err := q.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("quote_lines.id ASC")
	}).Order("created_at DESC").Offset(f.Offset).Limit(limit).Find(&quotes).Error
	if err != nil {
		return nil, NewPersistenceError("list", "quotes", err)
	}
	return quotes, nil
}

// SetStatus applies the transition table. Accepted is terminal; re-setting
// accepted on an accepted quote is a no-op success.
func (s *QuoteService) SetStatus(quoteID uint, status models.QuoteStatus) (*models.Quote, error) {
	if !status.Valid() {
		return nil, NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	quote, err := s.Get(quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.Status.CanTransitionTo(status) {
		return nil, &InvalidTransitionError{QuoteID: quoteID, From: quote.Status, To: status}
	}
	if quote.Status == status {
		return quote, nil
	}
	if err := s.db.Model(&models.Quote{}).Where("id = ?", quoteID).Update("status", status).Error; err != nil {
		return nil, NewPersistenceError("update", "quote status", err)
	}
	s.log.WithFields(logrus.Fields{"quote_id": quoteID, "from": quote.Status, "to": status}).Info("quote status changed")
	quote.Status = status
	return quote, nil
}

// Delete removes a draft quote and its lines atomically. Non-draft quotes
// are immutable history and cannot be deleted.
func (s *QuoteService) Delete(quoteID uint) error {
	quote, err := s.Get(quoteID)
	if err != nil {
		return err
	}
	if quote.Status != models.QuoteStatusDraft {
		return &QuoteNotEditableError{QuoteID: quoteID, Status: quote.Status}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", quoteID).Delete(&models.QuoteLine{}).Error; err != nil {
			return NewPersistenceError("delete", "quote lines", err)
		}
		if err := tx.Delete(&models.Quote{}, quoteID).Error; err != nil {
			return NewPersistenceError("delete", "quote", err)
		}
		return nil
	})
}

// AddLine appends a line to a draft quote, snapshotting the price like
// creation does.
func (s *QuoteService) AddLine(quoteID uint, lr QuoteLineRequest) (*models.QuoteLine, error) {
	quote, err := s.Get(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusDraft {
		return nil, &QuoteNotEditableError{QuoteID: quoteID, Status: quote.Status}
	}
	if err := s.validator.ValidateLine(quote.PricebookID, lr); err != nil {
		return nil, err
	}
	var line *models.QuoteLine
	err = s.db.Transaction(func(tx *gorm.DB) error {
		built, berr := s.buildLine(tx, quoteID, lr)
		if berr != nil {
			return berr
		}
		if cerr := tx.Create(built).Error; cerr != nil {
			return NewPersistenceError("create", "quote line", cerr)
		}
		line = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateLine edits qty/price/discount on a draft quote's line. The stored
// snapshot is kept unless the caller supplies a new override.
func (s *QuoteService) UpdateLine(lineID uint, lr QuoteLineRequest) (*models.QuoteLine, error) {
	line, quote, err := s.lineWithQuote(lineID)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusDraft {
		return nil, &QuoteNotEditableError{QuoteID: quote.ID, Status: quote.Status}
	}
	if lr.Qty < 1 {
		return nil, NewValidationError("qty", "quantity must be at least 1")
	}
	if lr.DiscountPct < 0 || lr.DiscountPct >= 1 {
		return nil, NewValidationError("discount_pct", "discount must be in [0, 1)")
	}
	if lr.UnitPrice != nil && lr.UnitPrice.IsNegative() {
		return nil, NewValidationError("unit_price", "unit price must be non-negative")
	}
	line.Qty = lr.Qty
	line.DiscountPct = lr.DiscountPct
	if lr.UnitPrice != nil {
		line.UnitPrice = lr.UnitPrice
	}
	if err := s.db.Save(line).Error; err != nil {
		return nil, NewPersistenceError("update", "quote line", err)
	}
	return line, nil
}

// DeleteLine removes a line from a draft quote.
func (s *QuoteService) DeleteLine(lineID uint) error {
	line, quote, err := s.lineWithQuote(lineID)
	if err != nil {
		return err
	}
	if quote.Status != models.QuoteStatusDraft {
		return &QuoteNotEditableError{QuoteID: quote.ID, Status: quote.Status}
	}
	if err := s.db.Delete(&models.QuoteLine{}, line.ID).Error; err != nil {
		return NewPersistenceError("delete", "quote line", err)
	}
	return nil
}

func (s *QuoteService) lineWithQuote(lineID uint) (*models.QuoteLine, *models.Quote, error) {
	if lineID == 0 {
		return nil, nil, NewValidationError("line_id", "valid line id is required")
	}
	var line models.QuoteLine
	err := s.db.First(&line, lineID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, NewNotFoundError("quote line", lineID)
	}
	if err != nil {
		return nil, nil, NewPersistenceError("read", "quote line", err)
	}
	quote, err := s.Get(line.QuoteID)
	if err != nil {
		return nil, nil, err
	}
	return &line, quote, nil
}
