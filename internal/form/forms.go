package form

import (
	"strings"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// BookmarkInput is the raw add/edit form. Tags is one comma separated field.
type BookmarkInput struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Favorite    bool   `json:"favorite"`
}

// Bookmark validates in and maps it to store fields.
func (in BookmarkInput) Bookmark() (domain.Fields, error) {
	f := domain.Fields{
		Title:       strings.TrimSpace(in.Title),
		URL:         strings.TrimSpace(in.URL),
		Description: in.Description,
		Tags:        ParseTags(in.Tags),
		Favorite:    in.Favorite,
	}
	if err := ValidateFields(f); err != nil {
		return domain.Fields{}, err
	}
	return f, nil
}

// ValidateFields checks the invariants every saved bookmark must hold.
// Stores call it again so nothing malformed is persisted.
func ValidateFields(f domain.Fields) error {
	v := NewValidator()
	v.Required("title", f.Title)
	v.Required("url", f.URL).URL("url", f.URL)
	for _, t := range f.Tags {
		if strings.TrimSpace(t) == "" {
			v.add("tags", "must not contain empty tags")
			break
		}
	}
	return v.Err()
}

// ParseTags splits a comma separated field. Segments are trimmed,
// empty ones dropped, order kept, duplicates kept.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTags is the inverse used to prefill the edit form.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login form.
func (in LoginInput) Validate() error {
	v := NewValidator()
	v.Required("email", in.Email).Email("email", in.Email)
	v.Required("password", in.Password)
	return v.Err()
}

// SignupInput is the signup form.
type SignupInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Validate checks the signup form.
func (in SignupInput) Validate() error {
	v := NewValidator()
	v.Required("email", in.Email).Email("email", in.Email)
	v.Required("password", in.Password).MinLength("password", in.Password, MinPasswordLength)
	v.Equal("password_confirm", in.PasswordConfirm, in.Password, "does not match password")
	return v.Err()
}
