package handler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/dtroode/identity-server/internal/api/grpc/identityv1"
	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/mocks"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/testutil"
	"github.com/dtroode/identity-server/internal/validation"
)

func newTestHandler(t *testing.T) (*Identity, *mocks.IdentityService, *mocks.ContextManager) {
	t.Helper()

	svc := &mocks.IdentityService{}
	cm := &mocks.ContextManager{}
	t.Cleanup(func() {
		svc.AssertExpectations(t)
		cm.AssertExpectations(t)
	})

	return NewIdentity(svc, cm, testutil.MakeNoopLogger()), svc, cm
}

func assertProtoEqual(t *testing.T, want, got proto.Message) {
	t.Helper()
	assert.True(t, proto.Equal(want, got), "want %v, got %v", want, got)
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, code, st.Code())
}

func TestIdentity_Register(t *testing.T) {
	t.Parallel()

	h, svc, _ := newTestHandler(t)
	userID := uuid.New()

	svc.On("Register", mock.Anything, validation.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"}).
		Return(model.Session{TokenPair: model.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, UserID: userID}, nil).Once()

	out, err := h.Register(context.Background(), &identityv1.RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	assertProtoEqual(t, &identityv1.SessionResponse{AccessToken: "acc", RefreshToken: "ref", UserId: userID.String()}, out)
}

func TestIdentity_Register_Conflict(t *testing.T) {
	t.Parallel()

	h, svc, _ := newTestHandler(t)
	svc.On("Register", mock.Anything, mock.Anything).Return(model.Session{}, apierrors.NewErrUserExists()).Once()

	out, err := h.Register(context.Background(), &identityv1.RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	assert.Nil(t, out)
	requireCode(t, err, codes.AlreadyExists)
}

func TestIdentity_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
	}{
		{name: "success", wantCode: codes.OK},
		{name: "unknown user", err: apierrors.NewErrUserNotFound(), wantCode: codes.NotFound},
		{name: "wrong password", err: apierrors.NewErrInvalidCredentials(), wantCode: codes.Unauthenticated},
		{name: "store down", err: apierrors.NewErrInternalServerError(assert.AnError), wantCode: codes.Internal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, svc, _ := newTestHandler(t)
			svc.On("Login", mock.Anything, validation.LoginInput{Email: "alice@x.com", Password: "secret1"}).
				Return(model.Session{UserID: uuid.New()}, tt.err).Once()

			out, err := h.Login(context.Background(), &identityv1.LoginRequest{Email: "alice@x.com", Password: "secret1"})
			if tt.wantCode == codes.OK {
				require.NoError(t, err)
				assert.NotEmpty(t, out.UserId)
				return
			}
			assert.Nil(t, out)
			requireCode(t, err, tt.wantCode)
		})
	}
}

func TestIdentity_Refresh(t *testing.T) {
	t.Parallel()

	h, svc, _ := newTestHandler(t)
	svc.On("Refresh", mock.Anything, "old").Return(model.Session{TokenPair: model.TokenPair{RefreshToken: "new"}}, nil).Once()
	svc.On("Refresh", mock.Anything, "gone").Return(model.Session{}, apierrors.NewErrRefreshTokenRevoked()).Once()

	out, err := h.Refresh(context.Background(), &identityv1.RefreshRequest{RefreshToken: "old"})
	require.NoError(t, err)
	assert.Equal(t, "new", out.RefreshToken)

	_, err = h.Refresh(context.Background(), &identityv1.RefreshRequest{RefreshToken: "gone"})
	requireCode(t, err, codes.PermissionDenied)
}

func TestIdentity_Logout(t *testing.T) {
	t.Parallel()

	h, svc, _ := newTestHandler(t)
	svc.On("Logout", mock.Anything, "tok").Return(nil).Once()
	svc.On("Logout", mock.Anything, "").Return(apierrors.NewErrRefreshTokenRequired()).Once()

	out, err := h.Logout(context.Background(), &identityv1.LogoutRequest{RefreshToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "Logged out successfully!", out.Message)

	_, err = h.Logout(context.Background(), &identityv1.LogoutRequest{})
	requireCode(t, err, codes.InvalidArgument)
}

func TestIdentity_Me(t *testing.T) {
	t.Parallel()

	t.Run("authenticated", func(t *testing.T) {
		h, svc, cm := newTestHandler(t)
		userID := uuid.New()
		ctx := context.Background()

		cm.On("GetUserIDFromContext", ctx).Return(userID, true).Once()
		svc.On("Profile", ctx, userID).Return(model.UserSnapshot{UserID: userID, Username: "alice", Email: "alice@x.com"}, nil).Once()

		out, err := h.Me(ctx, &identityv1.MeRequest{})
		require.NoError(t, err)
		assertProtoEqual(t, &identityv1.MeResponse{UserId: userID.String(), Username: "alice", Email: "alice@x.com"}, out)
	})

	t.Run("no user in context", func(t *testing.T) {
		h, _, cm := newTestHandler(t)
		ctx := context.Background()
		cm.On("GetUserIDFromContext", ctx).Return(uuid.Nil, false).Once()

		_, err := h.Me(ctx, &identityv1.MeRequest{})
		requireCode(t, err, codes.Unauthenticated)
	})
}
