// Package apperr defines the sentinel errors shared across chainval layers.
// Wrap them with fmt.Errorf("...: %w", err) and match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound: a chain file, rule file or history run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the chain file changed since the caller read it.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput: malformed chain or rule file, bad path or argument.
	ErrInvalidInput = errors.New("invalid input")
)
