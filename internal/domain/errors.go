package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NotFoundError is returned when an edit or delete target is missing
// or owned by another user.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bookmark not found: %s", e.ID)
}

// AuthCode identifies an authentication failure.
type AuthCode string

const (
	AuthInvalidCredentials AuthCode = "invalid_credentials"
	AuthEmailNotConfirmed  AuthCode = "email_not_confirmed"
	AuthUserNotFound       AuthCode = "user_not_found"
	AuthWeakPassword       AuthCode = "weak_password"
	AuthUserExists         AuthCode = "user_exists"
	AuthInvalidEmail       AuthCode = "invalid_email"
	AuthSessionExpired     AuthCode = "session_expired"
	AuthTooManyAttempts    AuthCode = "too_many_attempts"
	AuthUnknown            AuthCode = "unknown"
)

// AuthError is a credential or session failure.
type AuthError struct {
	Code AuthCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Code, e.Err)
	}
	return "auth " + string(e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
