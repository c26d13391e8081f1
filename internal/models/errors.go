package models

import "errors"

// Domain errors surfaced to callers as typed results. Services wrap them with
// context via fmt.Errorf("...: %w", err); the API layer matches with errors.Is.
var (
	// ErrNotFound means the referenced item/spec/supplier does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuantity means a non-positive transaction quantity
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInsufficientStock means the oversell guard rejected an issue
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateInvoice means an inward reused an invoice number for the item
	ErrDuplicateInvoice = errors.New("duplicate invoice number")

	// ErrReferentialConflict means a delete was blocked by dependent rows
	ErrReferentialConflict = errors.New("record is referenced by existing rows")

	// ErrInvalidInput means a malformed or inconsistent request payload
	ErrInvalidInput = errors.New("invalid input")
)
