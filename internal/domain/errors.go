package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates bad input shape or range. Not retried.
	ErrValidation = errors.New("invalid input")

	// ErrConflict indicates insufficient stock or an item that is no longer
	// for sale. Surfaced to the caller, not retried automatically.
	ErrConflict = errors.New("conflict")

	// ErrGateway indicates a remote marketplace failure (rate limit, network).
	ErrGateway = errors.New("marketplace gateway failure")

	// ErrCriticalInvariant indicates a consistency violation that must abort
	// the enclosing transaction and be investigated manually, never guessed
	// around: a paid line item with no record linkage, a stock underrun at
	// settlement time, or a relist failure after the old listing was deleted.
	ErrCriticalInvariant = errors.New("critical invariant violation")
)
