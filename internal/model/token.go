package model

import "github.com/google/uuid"

// TokenManager mints and parses access tokens and mints opaque refresh tokens.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID, username string) (string, error)
	ParseAccessToken(token string) (AccessClaims, error)
	GenerateRefreshToken() (plaintext string, hash string, err error)
	HashRefreshToken(plaintext string) string
}

// AccessClaims is the identity carried by an access token.
type AccessClaims struct {
	UserID   uuid.UUID
	Username string
}

// TokenPair is the credential pair returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is the outcome of a successful register, login or refresh.
type Session struct {
	TokenPair
	UserID uuid.UUID
}
