// Package search derives the displayed bookmark list from a collection,
// a free-text query and an optional exact tag.
package search

import (
	"slices"
	"strings"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// Query is the user input driving a view.
type Query struct {
	// Text is matched as a case-insensitive substring.
	Text string
	// ActiveTag restricts results by exact tag equality. Empty = no restriction.
	ActiveTag string
}

// FromTagClick builds the query produced by clicking a tag badge.
// The tag becomes free text; it never sets ActiveTag.
func FromTagClick(tag string) Query {
	return Query{Text: tag}
}

// Result is the derived view.
type Result struct {
	Bookmarks []domain.Bookmark
	// Applied is true only when a non-blank query filtered the collection.
	Applied bool
	// Query echoes the trimmed query when Applied.
	Query string
	// Count is len(Bookmarks) when Applied, zero otherwise.
	Count int
}

// Filter applies the text match, then the exact tag filter, then moves
// favorites to the front while keeping relative order.
// The input slice is never modified.
func Filter(collection []domain.Bookmark, q Query) Result {
	text := strings.TrimSpace(q.Text)
	needle := strings.ToLower(text)

	out := make([]domain.Bookmark, 0, len(collection))
	for _, b := range collection {
		if needle != "" && !Matches(b, needle) {
			continue
		}
		out = append(out, b)
	}

	if q.ActiveTag != "" {
		out = slices.DeleteFunc(out, func(b domain.Bookmark) bool {
			return !b.HasTag(q.ActiveTag)
		})
	}

	slices.SortStableFunc(out, func(a, b domain.Bookmark) int {
		switch {
		case a.Favorite == b.Favorite:
			return 0
		case a.Favorite:
			return -1
		default:
			return 1
		}
	})

	res := Result{Bookmarks: out}
	if text != "" {
		res.Applied = true
		res.Query = text
		res.Count = len(out)
	}
	return res
}

// Matches reports whether the lowercased needle is a substring of the
// lowercased title, description, or any tag.
func Matches(b domain.Bookmark, needle string) bool {
	if strings.Contains(strings.ToLower(b.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(b.Description), needle) {
		return true
	}
	for _, t := range b.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}
