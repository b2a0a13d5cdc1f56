package repository

import "errors"

// Sentinel kinds for store errors. Backends wrap driver errors in these.
var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("store unavailable")
	ErrInvalidKey  = errors.New("invalid store key")
)
