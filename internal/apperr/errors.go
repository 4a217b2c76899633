// Package apperr holds the sentinel errors shared across cowbump packages.
// Callers match them with errors.Is; producers wrap them with context.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid argument")
	ErrAmbiguous     = errors.New("ambiguous query")

	// Persistence failures.
	ErrCorrupt            = errors.New("corrupt snapshot")
	ErrTooLarge           = errors.New("snapshot exceeds size limit")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)
