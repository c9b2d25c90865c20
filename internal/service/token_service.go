package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// DefaultRefreshTTL is the validity of a refresh token from issue or rotation.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// TokenService provides high-level operations for issuing, rotating and
// revoking tokens. It composes the TokenManager and RefreshTokenStore.
// Plaintext refresh tokens never reach the store; only their digests do.
type TokenService struct {
	manager    model.TokenManager
	store      model.RefreshTokenStore
	logger     *logger.Logger
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, logger *logger.Logger, refreshTTL time.Duration) *TokenService {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		manager:    manager,
		store:      store,
		logger:     logger,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// RefreshTTL returns the configured refresh token validity.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// Issue mints an access/refresh pair and persists exactly one new row for it.
// Existing rows of the user are left untouched.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, username string) (model.TokenPair, error) {
	access, err := s.manager.GenerateAccessToken(userID, username)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, hash, err := s.manager.GenerateRefreshToken()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := s.now()
	rt := model.RefreshToken{
		ID:        uuid.New(),
		TokenHash: hash,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, rt); err != nil {
		return model.TokenPair{}, fmt.Errorf("persist refresh: %w", err)
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Lookup finds the row of a presented refresh token.
func (s *TokenService) Lookup(ctx context.Context, presentedRefresh string) (model.RefreshToken, error) {
	rt, err := s.store.GetByHash(ctx, s.manager.HashRefreshToken(presentedRefresh))
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("lookup refresh: %w", err)
	}
	return rt, nil
}

// Rotate mints a new pair and swaps it into rt's row in place. The swap only
// succeeds while the row still carries rt.TokenHash, so of two concurrent
// rotations of the same token exactly one wins and the other gets
// model.ErrNotFound.
func (s *TokenService) Rotate(ctx context.Context, rt model.RefreshToken, username string) (model.TokenPair, error) {
	access, err := s.manager.GenerateAccessToken(rt.UserID, username)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue new access: %w", err)
	}

	refresh, hash, err := s.manager.GenerateRefreshToken()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue new refresh: %w", err)
	}

	if err := s.store.Rotate(ctx, rt.ID, rt.TokenHash, hash, s.now().Add(s.refreshTTL)); err != nil {
		return model.TokenPair{}, fmt.Errorf("rotate refresh: %w", err)
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Delete removes a row by id.
func (s *TokenService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete refresh: %w", err)
	}
	return nil
}

// RevokeByToken deletes the row of a presented refresh token and returns it.
func (s *TokenService) RevokeByToken(ctx context.Context, presentedRefresh string) (model.RefreshToken, error) {
	rt, err := s.store.DeleteByHash(ctx, s.manager.HashRefreshToken(presentedRefresh))
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("revoke refresh: %w", err)
	}
	return rt, nil
}

// GetUserID validates an access token and returns its subject.
func (s *TokenService) GetUserID(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.manager.ParseAccessToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

// PurgeExpired deletes every row whose validity ended before now.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	return n, nil
}

// RunPurge calls PurgeExpired every interval until ctx is done. The observe
// callback, when set, receives the number of deleted rows of each run.
func (s *TokenService) RunPurge(ctx context.Context, interval time.Duration, observe func(int64)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Error("Token service: purge failed", "error", err.Error())
				continue
			}
			if observe != nil {
				observe(n)
			}
			if n > 0 {
				s.logger.Info("Token service: purged expired refresh tokens", "deleted", n)
			}
		}
	}
}
