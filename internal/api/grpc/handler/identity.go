package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/api/grpc/identityv1"
	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

// IdentityService defines the account and session operations.
type IdentityService interface {
	Register(ctx context.Context, input validation.RegisterInput) (model.Session, error)
	Login(ctx context.Context, input validation.LoginInput) (model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (model.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, userID uuid.UUID) (model.UserSnapshot, error)
}

// Identity handles gRPC endpoints of identity.v1.Identity.
type Identity struct {
	identityv1.UnimplementedIdentityServer

	service        IdentityService
	contextManager model.ContextManager
	logger         *logger.Logger
}

var _ identityv1.IdentityServer = (*Identity)(nil)

// NewIdentity creates a new Identity handler.
func NewIdentity(service IdentityService, contextManager model.ContextManager, logger *logger.Logger) *Identity {
	return &Identity{
		service:        service,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Register creates an account and returns its first session.
func (h *Identity) Register(ctx context.Context, req *identityv1.RegisterRequest) (*identityv1.SessionResponse, error) {
	h.logger.Debug("Identity handler: processing registration request",
		"email", req.GetEmail(),
		"username", req.GetUsername())

	session, err := h.service.Register(ctx, validation.RegisterInput{
		Username: req.GetUsername(),
		Email:    req.GetEmail(),
		Password: req.GetPassword(),
	})
	if err != nil {
		h.logger.Info("Identity handler: registration failed",
			"email", req.GetEmail(),
			"error", err.Error())
		return nil, handleError(err)
	}

	return sessionResponse(session), nil
}

// Login authenticates credentials and returns a new session.
func (h *Identity) Login(ctx context.Context, req *identityv1.LoginRequest) (*identityv1.SessionResponse, error) {
	h.logger.Debug("Identity handler: processing login request", "email", req.GetEmail())

	session, err := h.service.Login(ctx, validation.LoginInput{
		Email:    req.GetEmail(),
		Password: req.GetPassword(),
	})
	if err != nil {
		h.logger.Info("Identity handler: login failed",
			"email", req.GetEmail(),
			"error", err.Error())
		return nil, handleError(err)
	}

	return sessionResponse(session), nil
}

// Refresh rotates a refresh token.
func (h *Identity) Refresh(ctx context.Context, req *identityv1.RefreshRequest) (*identityv1.SessionResponse, error) {
	h.logger.Debug("Identity handler: processing token refresh request")

	session, err := h.service.Refresh(ctx, req.GetRefreshToken())
	if err != nil {
		h.logger.Info("Identity handler: token refresh failed", "error", err.Error())
		return nil, handleError(err)
	}

	return sessionResponse(session), nil
}

// Logout revokes a refresh token.
func (h *Identity) Logout(ctx context.Context, req *identityv1.LogoutRequest) (*identityv1.LogoutResponse, error) {
	h.logger.Debug("Identity handler: processing logout request")

	if err := h.service.Logout(ctx, req.GetRefreshToken()); err != nil {
		h.logger.Info("Identity handler: logout failed", "error", err.Error())
		return nil, handleError(err)
	}

	return &identityv1.LogoutResponse{Message: "Logged out successfully!"}, nil
}

// Me returns the profile of the authenticated caller.
func (h *Identity) Me(ctx context.Context, _ *identityv1.MeRequest) (*identityv1.MeResponse, error) {
	userID, ok := h.contextManager.GetUserIDFromContext(ctx)
	if !ok {
		return nil, handleError(apierrors.NewErrMissingAuthorizationToken())
	}

	profile, err := h.service.Profile(ctx, userID)
	if err != nil {
		h.logger.Info("Identity handler: profile lookup failed",
			"user_id", userID,
			"error", err.Error())
		return nil, handleError(err)
	}

	return &identityv1.MeResponse{
		UserId:   profile.UserID.String(),
		Username: profile.Username,
		Email:    profile.Email,
	}, nil
}

func sessionResponse(session model.Session) *identityv1.SessionResponse {
	return &identityv1.SessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserId:       session.UserID.String(),
	}
}
