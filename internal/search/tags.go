package search

import (
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// TagCount is a distinct tag and the number of bookmarks carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Tags lists distinct tags in first-seen order.
// A bookmark listing the same tag twice counts once.
func Tags(collection []domain.Bookmark) []TagCount {
	pos := make(map[string]int)
	out := make([]TagCount, 0)

	for _, b := range collection {
		seen := make(map[string]bool, len(b.Tags))
		for _, t := range b.Tags {
			if seen[t] {
				continue
			}
			seen[t] = true

			if i, ok := pos[t]; ok {
				out[i].Count++
				continue
			}
			pos[t] = len(out)
			out = append(out, TagCount{Tag: t, Count: 1})
		}
	}
	return out
}

// tagSource implements fuzzy.Source.
type tagSource []TagCount

func (s tagSource) String(i int) string { return s[i].Tag }
func (s tagSource) Len() int            { return len(s) }

// SuggestTags ranks the collection's distinct tags against prefix for
// tag-input autocompletion. Blank prefix returns the most used tags.
// limit <= 0 means no limit.
func SuggestTags(collection []domain.Bookmark, prefix string, limit int) []TagCount {
	tags := Tags(collection)
	prefix = strings.TrimSpace(prefix)

	var out []TagCount
	if prefix == "" {
		out = mostUsed(tags)
	} else {
		matches := fuzzy.FindFrom(prefix, tagSource(tags))
		out = make([]TagCount, 0, len(matches))
		for _, m := range matches {
			out = append(out, tags[m.Index])
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func mostUsed(tags []TagCount) []TagCount {
	out := slices.Clone(tags)
	slices.SortStableFunc(out, func(a, b TagCount) int {
		return b.Count - a.Count
	})
	return out
}
