// Package repository selects the credential store backend from a DSN.
package repository

import (
	"context"
	"strings"

	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/repository/postgres"
	"github.com/dtroode/identity-server/internal/repository/sqlite"
)

// Stores bundles the repositories of one backend with its connection.
type Stores struct {
	Users         model.UserStore
	RefreshTokens model.RefreshTokenStore
	Backend       string

	conn interface {
		Ping(ctx context.Context) error
		Close() error
	}
}

// IsPostgres reports whether dsn selects the Postgres backend.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to Postgres for postgres:// DSNs and to a SQLite file
// otherwise. Both backends migrate their schema on open.
func Open(ctx context.Context, dsn string) (*Stores, error) {
	if IsPostgres(dsn) {
		conn, err := postgres.NewConnection(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:         postgres.NewUserRepository(conn),
			RefreshTokens: postgres.NewRefreshTokenRepository(conn),
			Backend:       "postgres",
			conn:          conn,
		}, nil
	}

	conn, err := sqlite.NewConnection(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Users:         sqlite.NewUserRepository(conn),
		RefreshTokens: sqlite.NewRefreshTokenRepository(conn),
		Backend:       "sqlite",
		conn:          conn,
	}, nil
}

func (s *Stores) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *Stores) Close() error {
	return s.conn.Close()
}
