// Package form turns raw form input into validated values.
// Validation runs on submit; every failure is reported per field.
package form

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// MinPasswordLength is enforced on signup.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator collects the first error of each field.
type Validator struct {
	fields map[string]string
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{fields: make(map[string]string)}
}

func (v *Validator) add(field, msg string) {
	if _, exists := v.fields[field]; exists {
		return
	}
	v.fields[field] = msg
}

// Required fails when value is blank after trimming.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
	}
	return v
}

// MinLength fails when value is shorter than min runes.
func (v *Validator) MinLength(field, value string, min int) *Validator {
	if value != "" && len([]rune(value)) < min {
		v.add(field, fmt.Sprintf("must be at least %d characters", min))
	}
	return v
}

// URL fails when a non-blank value is not an absolute URL.
func (v *Validator) URL(field, value string) *Validator {
	if strings.TrimSpace(value) != "" && !IsValidURL(value) {
		v.add(field, "must be a valid URL")
	}
	return v
}

// Email fails when a non-blank value is not shaped like an address.
func (v *Validator) Email(field, value string) *Validator {
	if strings.TrimSpace(value) != "" && !IsValidEmail(value) {
		v.add(field, "must be a valid email address")
	}
	return v
}

// Equal fails when value differs from other.
func (v *Validator) Equal(field, value, other, msg string) *Validator {
	if value != other {
		v.add(field, msg)
	}
	return v
}

// HasErrors reports whether any field failed.
func (v *Validator) HasErrors() bool {
	return len(v.fields) > 0
}

// Err returns a *domain.ValidationError, or nil when every field passed.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	out := make(map[string]string, len(v.fields))
	for k, m := range v.fields {
		out[k] = m
	}
	return &domain.ValidationError{Fields: out}
}

// IsValidURL reports whether s parses as an absolute URL with a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return false
	}
	// mailto:, urn: and friends are absolute without a host
	return u.Host != "" || u.Opaque != ""
}

// IsValidEmail applies the login/signup email check.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
