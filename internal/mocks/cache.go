package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/identity-server/internal/model"
)

// SessionCache is a mock of model.SessionCache.
type SessionCache struct {
	mock.Mock
}

var _ model.SessionCache = (*SessionCache)(nil)

func (m *SessionCache) GetUser(ctx context.Context, userID uuid.UUID) (model.UserSnapshot, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.UserSnapshot), args.Error(1)
}

func (m *SessionCache) SetUser(ctx context.Context, snapshot model.UserSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *SessionCache) GetUserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *SessionCache) SetUserIDByEmail(ctx context.Context, email string, userID uuid.UUID, ttl time.Duration) error {
	args := m.Called(ctx, email, userID, ttl)
	return args.Error(0)
}

func (m *SessionCache) Blacklist(ctx context.Context, refreshToken string, ttl time.Duration) error {
	args := m.Called(ctx, refreshToken, ttl)
	return args.Error(0)
}

func (m *SessionCache) IsBlacklisted(ctx context.Context, refreshToken string) (bool, error) {
	args := m.Called(ctx, refreshToken)
	return args.Bool(0), args.Error(1)
}

// PasswordHasher is a mock of model.PasswordHasher.
type PasswordHasher struct {
	mock.Mock
}

var _ model.PasswordHasher = (*PasswordHasher)(nil)

func (m *PasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	args := m.Called(password, encodedHash)
	return args.Bool(0), args.Error(1)
}
