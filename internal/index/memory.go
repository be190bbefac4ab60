package index

import (
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// view is one user's cached collection, in store order.
type view struct {
	bookmarks []domain.Bookmark
	loadedAt  time.Time
}

// MemoryIndex keeps the last listed collection of each user.
// A view is only ever replaced as a whole, never patched.
type MemoryIndex struct {
	mu         sync.RWMutex
	views      map[string]*view // userID -> view
	lastReload time.Time        // Timestamp of the last Replace on any view
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		views: make(map[string]*view),
	}
}

// Replace swaps the user's view for a copy of bookmarks.
func (idx *MemoryIndex) Replace(userID string, bookmarks []domain.Bookmark) {
	now := time.Now()
	cp := slices.Clone(bookmarks)
	if cp == nil {
		cp = []domain.Bookmark{}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.views[userID] = &view{bookmarks: cp, loadedAt: now}
	idx.lastReload = now
}

// Get returns a copy of the user's view and whether one is cached.
func (idx *MemoryIndex) Get(userID string) ([]domain.Bookmark, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	v, ok := idx.views[userID]
	if !ok {
		return nil, false
	}
	return slices.Clone(v.bookmarks), true
}

// Find looks up one bookmark in the user's view.
func (idx *MemoryIndex) Find(userID, id string) (domain.Bookmark, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	v, ok := idx.views[userID]
	if !ok {
		return domain.Bookmark{}, false
	}
	for _, b := range v.bookmarks {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

// Invalidate drops the user's view. The next read lists again.
func (idx *MemoryIndex) Invalidate(userID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.views, userID)
}

// Users returns the ids with a cached view.
func (idx *MemoryIndex) Users() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	users := make([]string, 0, len(idx.views))
	for id := range idx.views {
		users = append(users, id)
	}
	slices.Sort(users)
	return users
}

// Count returns the number of bookmarks cached across all users
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, v := range idx.views {
		n += len(v.bookmarks)
	}
	return n
}

// LoadedAt returns when the user's view was last replaced.
func (idx *MemoryIndex) LoadedAt(userID string) (time.Time, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	v, ok := idx.views[userID]
	if !ok {
		return time.Time{}, false
	}
	return v.loadedAt, true
}

// GetLastReload returns the timestamp of the last reload of any view
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
