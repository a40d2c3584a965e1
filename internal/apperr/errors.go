// Package apperr holds the sentinel errors shared across QuickNote packages.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrDecode     = errors.New("malformed note data")
	ErrIO         = errors.New("storage i/o failed")

	// ErrNotActive is returned when an edit targets a note that is not the active one.
	ErrNotActive = errors.New("note is not active")

	// ErrConfirmationRequired is returned by a non-forced delete that was not confirmed.
	ErrConfirmationRequired = errors.New("confirmation required")

	ErrClosed = errors.New("session closed")
)
