// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrMissingKey       = errors.New("page has no title heading")
	ErrUnknownLabel     = errors.New("unknown label")
	ErrUnknownFamily    = errors.New("unknown entity family")
	ErrPendingEdits     = errors.New("pending edits not yet ingested")
	ErrValidationFailed = errors.New("validation failed")
)
