package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore defines persistence operations for refresh token rows.
// Only token hashes are ever passed to the store.
type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) error
	GetByHash(ctx context.Context, hash string) (RefreshToken, error)
	// Rotate replaces hash and expiry of the row identified by id, but only while
	// the row still carries currentHash. It returns ErrNotFound otherwise.
	Rotate(ctx context.Context, id uuid.UUID, currentHash, newHash string, expiresAt time.Time) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// DeleteByHash removes the matching row and returns it as it was before deletion.
	DeleteByHash(ctx context.Context, hash string) (RefreshToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RefreshToken is the durable record of an issued refresh token.
type RefreshToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the token is past its validity at now.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Remaining returns the validity left at now, never negative.
func (t RefreshToken) Remaining(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
