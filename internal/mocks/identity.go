package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

// IdentityService is a mock of the engine as seen by the transports.
type IdentityService struct {
	mock.Mock
}

func (m *IdentityService) Register(ctx context.Context, input validation.RegisterInput) (model.Session, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *IdentityService) Login(ctx context.Context, input validation.LoginInput) (model.Session, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *IdentityService) Refresh(ctx context.Context, refreshToken string) (model.Session, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *IdentityService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *IdentityService) Profile(ctx context.Context, userID uuid.UUID) (model.UserSnapshot, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.UserSnapshot), args.Error(1)
}

// TokenResolver is a mock of the access token check used by the transports.
type TokenResolver struct {
	mock.Mock
}

func (m *TokenResolver) GetUserID(ctx context.Context, token string) (uuid.UUID, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
