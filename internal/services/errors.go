package services

import (
	"errors"
	"fmt"

	"github.com/quoteforge/quoting/internal/models"
)

// ValidationError represents a rejected request: the caller can correct the
// input and retry. Suggestions carry self-correction hints, e.g. the
// pricebook where a mismatched SKU actually lives.
type ValidationError struct {
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("%s: %s (%v)", e.Field, e.Message, e.Suggestions)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, suggestions ...string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Suggestions: suggestions}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// NotFoundError means a referenced entity does not exist.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       uint   `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func NewNotFoundError(resource string, id uint) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	ok := errors.As(err, &nf)
	return nf, ok
}

// ConflictError covers duplicate unique fields and idempotency keys reused
// for a different resource.
type ConflictError struct {
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{Resource: resource, Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}

// QuoteNotEditableError is returned when lines are mutated on a quote that
// has left draft.
type QuoteNotEditableError struct {
	QuoteID uint               `json:"quote_id"`
	Status  models.QuoteStatus `json:"status"`
}

func (e *QuoteNotEditableError) Error() string {
	return fmt.Sprintf("quote %d is %s and can no longer be edited", e.QuoteID, e.Status)
}

func IsQuoteNotEditableError(err error) (*QuoteNotEditableError, bool) {
	var qe *QuoteNotEditableError
	ok := errors.As(err, &qe)
	return qe, ok
}

// InvalidTransitionError is returned for status changes the lifecycle
// forbids, i.e. any move away from accepted.
type InvalidTransitionError struct {
	QuoteID uint               `json:"quote_id"`
	From    models.QuoteStatus `json:"from"`
	To      models.QuoteStatus `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("quote %d: invalid status transition %s -> %s", e.QuoteID, e.From, e.To)
}

func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var te *InvalidTransitionError
	ok := errors.As(err, &te)
	return te, ok
}

// IncompleteQuoteError means the document cannot be derived because the
// quote's account or pricebook is gone. Missing SKUs degrade gracefully and
// never raise this.
type IncompleteQuoteError struct {
	QuoteID uint   `json:"quote_id"`
	Missing string `json:"missing"`
}

func (e *IncompleteQuoteError) Error() string {
	return fmt.Sprintf("quote %d cannot be rendered: missing %s", e.QuoteID, e.Missing)
}

func IsIncompleteQuoteError(err error) (*IncompleteQuoteError, bool) {
	var ie *IncompleteQuoteError
	ok := errors.As(err, &ie)
	return ie, ok
}

// PersistenceError wraps a backing-store failure during an atomic write.
// The transaction has been rolled back; nothing was partially applied.
type PersistenceError struct {
	Entity string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistenceError(op, entity string, err error) *PersistenceError {
	return &PersistenceError{Entity: entity, Op: op, Err: err}
}

func IsPersistenceError(err error) (*PersistenceError, bool) {
	var pe *PersistenceError
	ok := errors.As(err, &pe)
	return pe, ok
}
