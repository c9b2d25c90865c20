package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type refreshTokenRow struct {
	ID              string `gorm:"primaryKey;type:text"`
	TokenHash       string `gorm:"not null;uniqueIndex"`
	UserID          string `gorm:"not null;index"`
	ExpiresUnixNano int64  `gorm:"column:expires_at;not null;index"`
	CreatedUnixNano int64  `gorm:"column:created_at;not null"`
	UpdatedUnixNano int64  `gorm:"column:updated_at;not null"`
}

func (refreshTokenRow) TableName() string { return "refresh_tokens" }

func (r refreshTokenRow) toModel() (model.RefreshToken, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("failed to parse refresh token id: %w", err)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("failed to parse refresh token owner: %w", err)
	}
	return model.RefreshToken{
		ID:        id,
		TokenHash: r.TokenHash,
		UserID:    userID,
		ExpiresAt: fromNanos(r.ExpiresUnixNano),
		CreatedAt: fromNanos(r.CreatedUnixNano),
		UpdatedAt: fromNanos(r.UpdatedUnixNano),
	}, nil
}

type RefreshTokenRepository struct {
	db  *Connection
	now func() time.Time
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	row := refreshTokenRow{
		ID:              token.ID.String(),
		TokenHash:       token.TokenHash,
		UserID:          token.UserID.String(),
		ExpiresUnixNano: toNanos(token.ExpiresAt),
		CreatedUnixNano: toNanos(token.CreatedAt),
		UpdatedUnixNano: toNanos(token.UpdatedAt),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translateWriteErr(err, "create refresh token")
	}
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	var row refreshTokenRow
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by hash: %w", err)
	}
	return row.toModel()
}

func (r *RefreshTokenRepository) Rotate(ctx context.Context, id uuid.UUID, currentHash, newHash string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&refreshTokenRow{}).
		Where("id = ? AND token_hash = ?", id.String(), currentHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": toNanos(expiresAt),
			"updated_at": toNanos(r.now()),
		})
	if res.Error != nil {
		return translateWriteErr(res.Error, "rotate refresh token")
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&refreshTokenRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	var deleted refreshTokenRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token_hash = ?", hash).Take(&deleted).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND token_hash = ?", deleted.ID, hash).Delete(&refreshTokenRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to delete refresh token by hash: %w", err)
	}
	return deleted.toModel()
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", toNanos(before)).Delete(&refreshTokenRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
