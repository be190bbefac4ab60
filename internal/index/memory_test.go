package index

import (
	"sync"
	"testing"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if _, ok := index.Get("alice"); ok {
		t.Error("NewMemoryIndex() should start without views")
	}
	if index.Count() != 0 {
		t.Errorf("Count() = %v, want 0", index.Count())
	}
}

func TestReplace(t *testing.T) {
	index := NewMemoryIndex()

	index.Replace("alice", []domain.Bookmark{
		{ID: "2", Title: "Postgres guide"},
		{ID: "1", Title: "React docs"},
	})

	got, ok := index.Get("alice")
	if !ok {
		t.Fatal("Get() found no view after Replace()")
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "1" {
		t.Errorf("Replace() should keep store order, got %+v", got)
	}
	if index.GetLastReload().IsZero() {
		t.Error("Replace() should set the last reload time")
	}
}

func TestReplaceOverwrites(t *testing.T) {
	index := NewMemoryIndex()

	index.Replace("alice", []domain.Bookmark{{ID: "1"}})
	index.Replace("alice", []domain.Bookmark{{ID: "2"}, {ID: "3"}})

	got, _ := index.Get("alice")
	if len(got) != 2 {
		t.Errorf("Replace() should overwrite, got %v bookmarks want 2", len(got))
	}
}

func TestReplaceNilIsEmptyView(t *testing.T) {
	index := NewMemoryIndex()
	index.Replace("alice", nil)

	got, ok := index.Get("alice")
	if !ok {
		t.Fatal("an empty collection is still a cached view")
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Get() = %#v, want empty non-nil slice", got)
	}
}

func TestViewsAreIsolated(t *testing.T) {
	index := NewMemoryIndex()
	index.Replace("alice", []domain.Bookmark{{ID: "1"}})
	index.Replace("bob", []domain.Bookmark{{ID: "2"}, {ID: "3"}})

	if got, _ := index.Get("alice"); len(got) != 1 {
		t.Errorf("alice view = %v bookmarks, want 1", len(got))
	}
	if _, ok := index.Find("alice", "2"); ok {
		t.Error("Find() leaked a bookmark across users")
	}
	if index.Count() != 3 {
		t.Errorf("Count() = %v, want 3", index.Count())
	}

	users := index.Users()
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("Users() = %v", users)
	}
}

func TestInvalidate(t *testing.T) {
	index := NewMemoryIndex()
	index.Replace("alice", []domain.Bookmark{{ID: "1"}})
	index.Invalidate("alice")

	if _, ok := index.Get("alice"); ok {
		t.Error("Invalidate() should drop the view")
	}
	if _, ok := index.LoadedAt("alice"); ok {
		t.Error("LoadedAt() should report no view")
	}

	// Invalidating an unknown user should not panic
	index.Invalidate("nobody")
}

func TestGetReturnsSnapshot(t *testing.T) {
	index := NewMemoryIndex()
	input := []domain.Bookmark{{ID: "1", Title: "original"}}
	index.Replace("alice", input)

	input[0].Title = "mutated input"
	snapshot, _ := index.Get("alice")
	snapshot[0].Title = "mutated snapshot"

	again, _ := index.Get("alice")
	if again[0].Title != "original" {
		t.Errorf("view should not share memory with callers, got %q", again[0].Title)
	}
}

func TestConcurrentAccess(t *testing.T) {
	index := NewMemoryIndex()

	var wg sync.WaitGroup

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = index.Get("alice")
			_ = index.Count()
		}()
	}

	// Concurrent replaces
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			index.Replace("alice", []domain.Bookmark{{ID: "1"}, {ID: "2"}})
		}()
	}

	wg.Wait()

	if got, _ := index.Get("alice"); len(got) != 2 {
		t.Errorf("concurrent Replace() left %v bookmarks, want 2", len(got))
	}
}
