// Package redis implements the session cache on top of Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/identity-server/internal/model"
)

const (
	userKeyPrefix      = "user:"
	emailKeyPrefix     = "emailToUserId:"
	blacklistKeyPrefix = "bl:"
	blacklistValue     = "blacklisted"
)

// Cache is a model.SessionCache backed by Redis.
type Cache struct {
	client goredis.UniversalClient
}

var _ model.SessionCache = (*Cache)(nil)

// NewCache wraps an existing client.
func NewCache(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// Ping checks that the server answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// UserKey returns the cache key of a user snapshot.
func UserKey(userID uuid.UUID) string {
	return userKeyPrefix + userID.String()
}

// EmailKey returns the cache key of the email index entry.
func EmailKey(email string) string {
	return emailKeyPrefix + email
}

// BlacklistKey returns the cache key of a revoked refresh token.
func BlacklistKey(refreshToken string) string {
	return blacklistKeyPrefix + refreshToken
}

func (c *Cache) GetUser(ctx context.Context, userID uuid.UUID) (model.UserSnapshot, error) {
	raw, err := c.client.Get(ctx, UserKey(userID)).Bytes()
	if err != nil {
		return model.UserSnapshot{}, translate(err)
	}

	var snapshot model.UserSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return model.UserSnapshot{}, fmt.Errorf("failed to decode user snapshot: %w", err)
	}

	return snapshot, nil
}

func (c *Cache) SetUser(ctx context.Context, snapshot model.UserSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode user snapshot: %w", err)
	}

	if err := c.client.Set(ctx, UserKey(snapshot.UserID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user snapshot: %w", err)
	}

	return nil
}

func (c *Cache) GetUserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	raw, err := c.client.Get(ctx, EmailKey(email)).Result()
	if err != nil {
		return uuid.Nil, translate(err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse cached user id: %w", err)
	}

	return id, nil
}

func (c *Cache) SetUserIDByEmail(ctx context.Context, email string, userID uuid.UUID, ttl time.Duration) error {
	if err := c.client.Set(ctx, EmailKey(email), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set email index: %w", err)
	}

	return nil
}

// Blacklist marks a refresh token as revoked for ttl. A non-positive ttl is
// rejected because Redis would keep the key forever.
func (c *Cache) Blacklist(ctx context.Context, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("blacklist ttl must be positive, got %s", ttl)
	}

	if err := c.client.Set(ctx, BlacklistKey(refreshToken), blacklistValue, ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist refresh token: %w", err)
	}

	return nil
}

func (c *Cache) IsBlacklisted(ctx context.Context, refreshToken string) (bool, error) {
	n, err := c.client.Exists(ctx, BlacklistKey(refreshToken)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return n > 0, nil
}

func translate(err error) error {
	if errors.Is(err, goredis.Nil) {
		return model.ErrCacheMiss
	}
	return fmt.Errorf("failed to read cache: %w", err)
}
