package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

const refreshTokenColumns = `id, token_hash, user_id, expires_at, created_at, updated_at`

type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt, token.UpdatedAt,
	)
	if err != nil {
		return translateWriteErr(err, "create refresh token")
	}
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	const query = `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by hash: %w", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepository) Rotate(ctx context.Context, id uuid.UUID, currentHash, newHash string, expiresAt time.Time) error {
	const query = `
        UPDATE refresh_tokens SET token_hash = $3, expires_at = $4, updated_at = NOW()
        WHERE id = $1 AND token_hash = $2
    `

	res, err := r.db.ExecContext(ctx, query, id, currentHash, newHash, expiresAt)
	if err != nil {
		return translateWriteErr(err, "rotate refresh token")
	}
	return requireAffected(res, "rotate refresh token")
}

func (r *RefreshTokenRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM refresh_tokens WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return requireAffected(res, "delete refresh token")
}

func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	const query = `DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING ` + refreshTokenColumns

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to delete refresh token by hash: %w", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted refresh tokens: %w", err)
	}
	return n, nil
}

func scanRefreshToken(row *sql.Row) (model.RefreshToken, error) {
	var rt model.RefreshToken
	err := row.Scan(&rt.ID, &rt.TokenHash, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
