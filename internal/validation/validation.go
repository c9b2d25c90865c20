// Package validation checks the shape of identity requests.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginInput is the payload of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// messages maps "<field>.<tag>" to the text returned to clients.
var messages = map[string]string{
	"username.required": "Username must be at least 3 characters",
	"username.min":      "Username must be at least 3 characters",
	"username.max":      "Username can't exceed 50 characters",
	"email.required":    "Invalid email address",
	"email.email":       "Invalid email address",
	"password.required": "Password must be at least 6 characters",
	"password.min":      "Password must be at least 6 characters",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize returns a copy with the email normalized and the username trimmed.
func (in RegisterInput) Normalize() RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	return in
}

// Normalize returns a copy with the email normalized.
func (in LoginInput) Normalize() LoginInput {
	in.Email = NormalizeEmail(in.Email)
	return in
}

// Validate checks v and returns per-field messages, or nil when v is valid.
func Validate(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "invalid " + fe.Field()
		}
		fields[fe.Field()] = msg
	}
	return fields
}
