package search

import (
	"testing"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

func tagNames(tc []TagCount) []string {
	out := make([]string, len(tc))
	for i, t := range tc {
		out[i] = t.Tag
	}
	return out
}

func TestTagsFirstSeenOrder(t *testing.T) {
	c := []domain.Bookmark{
		{Tags: []string{"react", "frontend"}},
		{Tags: []string{"db"}},
		{Tags: []string{"frontend", "frontend"}},
	}

	got := Tags(c)
	want := []TagCount{{"react", 1}, {"frontend", 2}, {"db", 1}}
	if len(got) != len(want) {
		t.Fatalf("Tags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tags()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSuggestTagsBlankPrefix(t *testing.T) {
	c := []domain.Bookmark{
		{Tags: []string{"a"}},
		{Tags: []string{"b", "c"}},
		{Tags: []string{"c", "b"}},
		{Tags: []string{"c"}},
	}

	got := tagNames(SuggestTags(c, "  ", 2))
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Errorf("SuggestTags() = %v, want [c b]", got)
	}
}

func TestSuggestTagsFuzzy(t *testing.T) {
	c := []domain.Bookmark{
		{Tags: []string{"golang", "docs"}},
		{Tags: []string{"frontend", "go"}},
	}

	got := tagNames(SuggestTags(c, "go", 0))
	has := map[string]bool{}
	for _, g := range got {
		has[g] = true
	}
	if !has["go"] || !has["golang"] {
		t.Errorf("SuggestTags(go) = %v, want go and golang", got)
	}
	if has["docs"] {
		t.Errorf("SuggestTags(go) should not include docs: %v", got)
	}
}

func TestSuggestTagsEmptyCollection(t *testing.T) {
	if got := SuggestTags(nil, "x", 5); len(got) != 0 {
		t.Errorf("SuggestTags() = %v, want empty", got)
	}
}
