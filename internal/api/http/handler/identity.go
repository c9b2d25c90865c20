// Package handler serves the identity endpoints over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/api/http/middleware"
	"github.com/dtroode/identity-server/internal/api/http/response"
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

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserID       uuid.UUID `json:"userId"`
}

type profileResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// Identity handles the /api/auth endpoints.
type Identity struct {
	service IdentityService
	logger  *logger.Logger
}

func NewIdentity(service IdentityService, logger *logger.Logger) *Identity {
	return &Identity{service: service, logger: logger}
}

// RegisterPublicRoutes mounts the endpoints that need no access token.
// The register handler is separate so callers can put extra middleware on it.
func (h *Identity) RegisterPublicRoutes(group *gin.RouterGroup, registerMiddleware ...gin.HandlerFunc) {
	group.POST("/register", append(registerMiddleware, h.Register)...)
	group.POST("/login", h.Login)
	group.POST("/refresh_token", h.RefreshToken)
	group.POST("/logout", h.Logout)
}

// RegisterProtectedRoutes mounts the endpoints behind bearer authentication.
func (h *Identity) RegisterProtectedRoutes(group *gin.RouterGroup) {
	group.GET("/me", h.Me)
}

func (h *Identity) Register(c *gin.Context) {
	var req validation.RegisterInput
	if !h.bind(c, &req) {
		return
	}

	session, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newSessionResponse(session))
}

func (h *Identity) Login(c *gin.Context) {
	var req validation.LoginInput
	if !h.bind(c, &req) {
		return
	}

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newSessionResponse(session))
}

func (h *Identity) RefreshToken(c *gin.Context) {
	var req refreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newSessionResponse(session))
}

func (h *Identity) Logout(c *gin.Context) {
	var req refreshTokenRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Logged out successfully!"})
}

func (h *Identity) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.FromError(c, apierrors.NewErrMissingAuthorizationToken())
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, profileResponse{
		UserID:   profile.UserID,
		Username: profile.Username,
		Email:    profile.Email,
	})
}

func (h *Identity) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Info("Identity handler: malformed request body",
			"path", c.Request.URL.Path,
			"error", err.Error())
		response.Error(c, http.StatusBadRequest, string(apierrors.KindValidation), "Invalid request body")
		return false
	}
	return true
}

func newSessionResponse(session model.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserID:       session.UserID,
	}
}
