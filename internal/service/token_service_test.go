package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/identity-server/internal/mocks"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/testutil"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshTokenStore{}

	manager.On("GenerateAccessToken", userID, "alice").Return("access", nil).Once()
	manager.On("GenerateRefreshToken").Return("refresh", "refresh-hash", nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		return rt.ID != uuid.Nil &&
			rt.UserID == userID &&
			rt.TokenHash == "refresh-hash" &&
			rt.ExpiresAt.Equal(now.Add(7*24*time.Hour))
	})).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger(), 0)
	svc.now = fixedClock(now)

	pair, err := svc.Issue(ctx, userID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, pair)

	manager.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshTokenStore{}

	manager.On("GenerateAccessToken", userID, "alice").Return("", assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger(), time.Hour)

	_, err := svc.Issue(ctx, userID, "alice")
	require.ErrorIs(t, err, assert.AnError)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTokenService_Issue_StoreError(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshTokenStore{}

	manager.On("GenerateAccessToken", userID, "alice").Return("access", nil).Once()
	manager.On("GenerateRefreshToken").Return("refresh", "hash", nil).Once()
	store.On("Create", ctx, mock.Anything).Return(assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger(), time.Hour)

	_, err := svc.Issue(ctx, userID, "alice")
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_Rotate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rt := model.RefreshToken{ID: uuid.New(), TokenHash: "old-hash", UserID: uuid.New(), ExpiresAt: now.Add(time.Hour)}

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshTokenStore{}

	manager.On("GenerateAccessToken", rt.UserID, "alice").Return("access-new", nil).Once()
	manager.On("GenerateRefreshToken").Return("refresh-new", "new-hash", nil).Once()
	store.On("Rotate", ctx, rt.ID, "old-hash", "new-hash", now.Add(DefaultRefreshTTL)).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger(), DefaultRefreshTTL)
	svc.now = fixedClock(now)

	pair, err := svc.Rotate(ctx, rt, "alice")
	require.NoError(t, err)
	assert.Equal(t, "refresh-new", pair.RefreshToken)
	assert.Equal(t, "access-new", pair.AccessToken)
	store.AssertExpectations(t)
}

func TestTokenService_Rotate_LostRace(t *testing.T) {
	ctx := context.Background()
	rt := model.RefreshToken{ID: uuid.New(), TokenHash: "old-hash", UserID: uuid.New()}

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshTokenStore{}

	manager.On("GenerateAccessToken", rt.UserID, "alice").Return("access-new", nil).Once()
	manager.On("GenerateRefreshToken").Return("refresh-new", "new-hash", nil).Once()
	store.On("Rotate", ctx, rt.ID, "old-hash", "new-hash", mock.Anything).Return(model.ErrNotFound).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger(), time.Hour)

	_, err := svc.Rotate(ctx, rt, "alice")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestTokenService_LookupAndRevoke(t *testing.T) {
	ctx := context.Background()
	row := model.RefreshToken{ID: uuid.New(), TokenHash: "hash", UserID: uuid.New()}

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshTokenStore{}

	manager.On("HashRefreshToken", "plain").Return("hash")
	store.On("GetByHash", ctx, "hash").Return(row, nil).Once()
	store.On("DeleteByHash", ctx, "hash").Return(row, nil).Once()
	store.On("DeleteByHash", ctx, "hash").Return(model.RefreshToken{}, model.ErrNotFound).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger(), time.Hour)

	got, err := svc.Lookup(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, row, got)

	deleted, err := svc.RevokeByToken(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, row.ID, deleted.ID)

	_, err = svc.RevokeByToken(ctx, "plain")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestTokenService_GetUserID(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := &servermocks.TokenManager{}
	manager.On("ParseAccessToken", "good").Return(model.AccessClaims{UserID: userID, Username: "alice"}, nil).Once()
	manager.On("ParseAccessToken", "bad").Return(model.AccessClaims{}, assert.AnError).Once()

	svc := NewTokenService(manager, &servermocks.RefreshTokenStore{}, testutil.MakeNoopLogger(), time.Hour)

	got, err := svc.GetUserID(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = svc.GetUserID(ctx, "bad")
	require.Error(t, err)
}

func TestTokenService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &servermocks.RefreshTokenStore{}
	store.On("DeleteExpired", ctx, now).Return(int64(4), nil).Once()

	svc := NewTokenService(&servermocks.TokenManager{}, store, testutil.MakeNoopLogger(), time.Hour)
	svc.now = fixedClock(now)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestTokenService_RunPurge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &servermocks.RefreshTokenStore{}
	store.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(1), nil)

	svc := NewTokenService(&servermocks.TokenManager{}, store, testutil.MakeNoopLogger(), time.Hour)

	purged := make(chan int64, 1)
	done := make(chan struct{})
	go func() {
		svc.RunPurge(ctx, 5*time.Millisecond, func(n int64) {
			select {
			case purged <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-purged:
		assert.Equal(t, int64(1), n)
	case <-time.After(2 * time.Second):
		t.Fatal("purge did not run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("purge loop did not stop")
	}
}
