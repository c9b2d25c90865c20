package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type userRow struct {
	ID              string `gorm:"primaryKey;type:text"`
	Username        string `gorm:"not null;uniqueIndex"`
	Email           string `gorm:"not null;uniqueIndex"`
	PasswordHash    string `gorm:"not null"`
	CreatedUnixNano int64  `gorm:"column:created_at;not null"`
	UpdatedUnixNano int64  `gorm:"column:updated_at;not null"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() (model.User, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user id: %w", err)
	}
	return model.User{
		ID:           id,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    fromNanos(r.CreatedUnixNano),
		UpdatedAt:    fromNanos(r.UpdatedUnixNano),
	}, nil
}

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (model.User, error) {
	return r.first(ctx, "get user by email or username", "email = ? OR username = ?", email, username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.first(ctx, "get user by email", "email = ?", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.first(ctx, "get user by id", "id = ?", id.String())
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	row := userRow{
		ID:              user.ID.String(),
		Username:        user.Username,
		Email:           user.Email,
		PasswordHash:    user.PasswordHash,
		CreatedUnixNano: toNanos(user.CreatedAt),
		UpdatedUnixNano: toNanos(user.UpdatedAt),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.User{}, translateWriteErr(err, "create user")
	}

	return row.toModel()
}

func (r *UserRepository) first(ctx context.Context, op, cond string, args ...any) (model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where(cond, args...).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to %s: %w", op, err)
	}
	return row.toModel()
}
