package model

import "errors"

var (
	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by stores on a uniqueness violation.
	ErrConflict = errors.New("already exists")
	// ErrCacheMiss is returned by the session cache when a key is absent.
	ErrCacheMiss = errors.New("cache miss")
)
