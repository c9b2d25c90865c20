// Package ratelimit holds the per-client request budgets of the transports.
package ratelimit

import (
	"context"
	"errors"
)

var (
	// ErrLimited is returned when a key has spent its budget.
	ErrLimited = errors.New("rate limited")
	// ErrUnavailable wraps failures of the limiter backend.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Limiter decides whether one more request for key fits its budget.
// Allow returns nil, ErrLimited, or an error wrapping ErrUnavailable.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}
