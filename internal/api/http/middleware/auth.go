package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/api/http/response"
	"github.com/dtroode/identity-server/internal/apierrors"
)

// UserIDKey is the gin context key of the authenticated user ID.
const UserIDKey = "user_id"

// TokenService resolves user ID from bearer tokens.
type TokenService interface {
	GetUserID(ctx context.Context, token string) (uuid.UUID, error)
}

// Auth requires a valid bearer access token and stores its user ID under
// UserIDKey.
func Auth(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			response.FromError(c, apierrors.NewErrMissingAuthorizationToken())
			return
		}

		userID, err := tokens.GetUserID(c.Request.Context(), token)
		if err != nil || userID == uuid.Nil {
			response.FromError(c, apierrors.NewErrInvalidAuthorizationToken())
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the user ID stored by Auth.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok
}
