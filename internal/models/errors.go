package models

import "errors"

// Error kinds surfaced to API callers. Storage and services wrap these with
// context via fmt.Errorf("...: %w", Err...) so handlers can map them to
// status codes with errors.Is.
var (
	// ErrNotFound means the referenced group, person, receipt or entry does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input was malformed: negative price, empty
	// required name, person referenced outside their group.
	ErrValidation = errors.New("validation failed")

	// ErrConflict means a uniqueness rule was violated, e.g. a duplicate
	// person name within a group.
	ErrConflict = errors.New("conflict")

	// ErrInvalidAllocation means the cost allocator was asked to divide a
	// cost among nobody (an unassigned entry with an empty roster).
	ErrInvalidAllocation = errors.New("invalid allocation")
)
