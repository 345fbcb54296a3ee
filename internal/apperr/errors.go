// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrPathEscape    = errors.New("path escapes workspace")
	ErrTooLarge      = errors.New("content too large")
	ErrIsDirectory   = errors.New("target is a directory")
	ErrAlreadyExists = errors.New("already exists")
)
