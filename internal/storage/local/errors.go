package local

import "errors"

var (
	// ErrNotFound is returned when a key is not stored
	ErrNotFound = errors.New("not found")

	// ErrInvalidKey is returned for an empty key
	ErrInvalidKey = errors.New("invalid key")
)
