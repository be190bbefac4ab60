package domain

import "time"

// Bookmark is a saved URL owned by one user.
//
// It is NOT tied to a storage backend. The local slot, the sqlite table
// and the redis keys all decode into this structure.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned once at creation time.
	// Local slot: nanosecond timestamp. sqlite: row key. redis: uuid.
	ID string `json:"id"`

	// UserID is the owner. Empty in the local variant,
	// where the single implicit owner is the slot itself.
	UserID string `json:"user_id,omitempty"`

	// ─────────────────────────────
	// User fields
	// ─────────────────────────────

	// Title is the display string, never empty once saved.
	Title string `json:"title"`

	// URL is an absolute URL, validated before every save.
	URL string `json:"url"`

	// Description is optional free text.
	Description string `json:"description"`

	// Tags keeps insertion order. Duplicates are allowed.
	Tags []string `json:"tags"`

	// Favorite pins the bookmark to the front of every view.
	Favorite bool `json:"favorite"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt orders collections newest first.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is refreshed on any mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields is the mutable part of a Bookmark, as submitted by a form.
type Fields struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Favorite    bool     `json:"favorite"`
}

// Apply copies f onto b and refreshes UpdatedAt.
func (b *Bookmark) Apply(f Fields, now time.Time) {
	b.Title = f.Title
	b.URL = f.URL
	b.Description = f.Description
	b.Tags = cloneTags(f.Tags)
	b.Favorite = f.Favorite
	b.UpdatedAt = now
}

// HasTag reports whether tag is present by exact, case-sensitive equality.
func (b Bookmark) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewBookmark builds a Bookmark from submitted fields.
// The caller assigns ID and owner.
func NewBookmark(f Fields, now time.Time) Bookmark {
	b := Bookmark{CreatedAt: now}
	b.Apply(f, now)
	return b
}

func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
