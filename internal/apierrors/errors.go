// Package apierrors defines the typed outcomes the identity engine reports to
// its transports.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindConflict       Kind = "CONFLICT"
	KindNotFound       Kind = "NOT_FOUND"
	KindAuthentication Kind = "INVALID_CREDENTIALS"
	KindRevoked        Kind = "TOKEN_REVOKED"
	KindExpired        Kind = "TOKEN_EXPIRED"
	KindUnauthorized   Kind = "UNAUTHORIZED"
	KindInternal       Kind = "INTERNAL_SERVER_ERROR"
)

// Error is a business or infrastructure failure with a client-safe message.
// Err holds the underlying cause and is never exposed to clients.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can compare against the
// exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication, KindUnauthorized:
		return http.StatusUnauthorized
	case KindRevoked, KindExpired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the kind to a gRPC status code.
func (e *Error) GRPCCode() codes.Code {
	switch e.Kind {
	case KindValidation:
		return codes.InvalidArgument
	case KindConflict:
		return codes.AlreadyExists
	case KindNotFound:
		return codes.NotFound
	case KindAuthentication, KindUnauthorized:
		return codes.Unauthenticated
	case KindRevoked, KindExpired:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrRevoked        = &Error{Kind: KindRevoked}
	ErrExpired        = &Error{Kind: KindExpired}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrInternal       = &Error{Kind: KindInternal}
)

func NewErrValidation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func NewErrRefreshTokenRequired() *Error {
	return NewErrValidation(map[string]string{"refreshToken": "Refresh token is required"})
}

func NewErrUserExists() *Error {
	return &Error{Kind: KindConflict, Message: "user already exists"}
}

func NewErrUserNotFound() *Error {
	return &Error{Kind: KindNotFound, Message: "user not found"}
}

func NewErrRefreshTokenNotFound() *Error {
	return &Error{Kind: KindNotFound, Message: "refresh token not found"}
}

func NewErrInvalidCredentials() *Error {
	return &Error{Kind: KindAuthentication, Message: "invalid credentials"}
}

func NewErrRefreshTokenRevoked() *Error {
	return &Error{Kind: KindRevoked, Message: "refresh token is blacklisted"}
}

func NewErrRefreshTokenExpired() *Error {
	return &Error{Kind: KindExpired, Message: "refresh token expired"}
}

func NewErrMissingAuthorizationToken() *Error {
	return &Error{Kind: KindUnauthorized, Message: "missing authorization token"}
}

func NewErrInvalidAuthorizationToken() *Error {
	return &Error{Kind: KindUnauthorized, Message: "invalid authorization token"}
}

func NewErrInternalServerError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// From returns err as an *Error, wrapping anything untyped as internal.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewErrInternalServerError(err)
}

// KindOf returns the kind of err, or an empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}
