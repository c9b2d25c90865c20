package handler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/apierrors"
)

func TestHandleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       error
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "conflict",
			in:       apierrors.NewErrUserExists(),
			wantCode: codes.AlreadyExists,
			wantMsg:  "user already exists",
		},
		{
			name:     "not found",
			in:       apierrors.NewErrRefreshTokenNotFound(),
			wantCode: codes.NotFound,
			wantMsg:  "refresh token not found",
		},
		{
			name:     "invalid credentials",
			in:       apierrors.NewErrInvalidCredentials(),
			wantCode: codes.Unauthenticated,
			wantMsg:  "invalid credentials",
		},
		{
			name:     "revoked",
			in:       apierrors.NewErrRefreshTokenRevoked(),
			wantCode: codes.PermissionDenied,
			wantMsg:  "refresh token is blacklisted",
		},
		{
			name:     "expired",
			in:       apierrors.NewErrRefreshTokenExpired(),
			wantCode: codes.PermissionDenied,
			wantMsg:  "refresh token expired",
		},
		{
			name:     "internal hides cause",
			in:       apierrors.NewErrInternalServerError(errors.New("dial tcp: refused")),
			wantCode: codes.Internal,
			wantMsg:  "internal server error",
		},
		{
			name:     "untyped -> Internal",
			in:       errors.New("boom"),
			wantCode: codes.Internal,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := handleError(tt.in)
			st, ok := status.FromError(err)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
			assert.Empty(t, st.Details())
		})
	}
}

func TestHandleError_ValidationDetails(t *testing.T) {
	err := handleError(apierrors.NewErrValidation(map[string]string{
		"password": "Password must be at least 6 characters",
		"email":    "Invalid email address",
	}))

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	require.Len(t, st.Details(), 1)
	badRequest, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, badRequest.GetFieldViolations(), 2)
	assert.Equal(t, "email", badRequest.GetFieldViolations()[0].GetField())
	assert.Equal(t, "Invalid email address", badRequest.GetFieldViolations()[0].GetDescription())
	assert.Equal(t, "password", badRequest.GetFieldViolations()[1].GetField())
}
