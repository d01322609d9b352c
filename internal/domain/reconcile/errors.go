package reconcile

import "errors"

var (
	// ErrNotFound is returned when an invoice, transaction or link does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned for non-positive or malformed allocation amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAlreadyRegistered is returned when an ingested record repeats a known external id.
	ErrAlreadyRegistered = errors.New("already registered")
)
