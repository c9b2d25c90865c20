package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionCache is the best-effort key/value layer in front of the stores.
// Misses are reported as ErrCacheMiss.
type SessionCache interface {
	GetUser(ctx context.Context, userID uuid.UUID) (UserSnapshot, error)
	SetUser(ctx context.Context, snapshot UserSnapshot, ttl time.Duration) error
	GetUserIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	SetUserIDByEmail(ctx context.Context, email string, userID uuid.UUID, ttl time.Duration) error
	Blacklist(ctx context.Context, refreshToken string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, refreshToken string) (bool, error)
}

// UserSnapshot is the cached projection of a user. It is never used for
// password checks.
type UserSnapshot struct {
	UserID       uuid.UUID `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	RefreshToken string    `json:"refreshToken,omitempty"`
}

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}
