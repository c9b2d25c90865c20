// Package context carries the authenticated caller through incoming gRPC metadata.
package context

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"github.com/dtroode/identity-server/internal/model"
)

const userIDKey = "user_id"

// Manager implements model.ContextManager on incoming metadata.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{}
}

// SetUserIDToContext replaces any client-supplied user_id with the resolved one.
func (m *Manager) SetUserIDToContext(ctx context.Context, userID uuid.UUID) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)
	md = md.Copy()
	md.Set(userIDKey, userID.String())

	return metadata.NewIncomingContext(ctx, md)
}

func (m *Manager) GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	values := metadata.ValueFromIncomingContext(ctx, userIDKey)
	if len(values) == 0 {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(values[0])
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, false
	}

	return userID, true
}
