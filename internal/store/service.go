package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
	"github.com/MrSnakeDoc/marky/internal/index"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/search"
)

// BulkSaver is implemented by backends that can write many bookmarks in
// one round trip. Callers validate first.
type BulkSaver interface {
	SaveBookmarksMany(ctx context.Context, s domain.Session, bookmarks []domain.Bookmark) error
}

// Service fronts a Store with per-user cached views. Reads come from the
// cache; every mutation is followed by a full re-list of the owner.
type Service struct {
	store Store
	index *index.MemoryIndex
	log   logger.Logger

	// refreshMu orders List+Replace pairs so an older listing never
	// overwrites a newer one.
	refreshMu sync.Mutex
}

// NewService creates a service over st.
func NewService(st Store, idx *index.MemoryIndex, log logger.Logger) *Service {
	return &Service{store: st, index: idx, log: log}
}

// Index exposes the cached views.
func (s *Service) Index() *index.MemoryIndex {
	return s.index
}

// Refresh lists userID's collection and replaces the cached view.
func (s *Service) Refresh(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	bookmarks, err := s.store.List(ctx, SystemSession(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks for %q: %w", userID, err)
	}
	s.index.Replace(userID, bookmarks)
	return bookmarks, nil
}

// Collection returns the session owner's cached view, loading it on a
// cold cache.
func (s *Service) Collection(ctx context.Context, sess domain.Session) ([]domain.Bookmark, error) {
	if bookmarks, ok := s.index.Get(sess.UserID); ok {
		return bookmarks, nil
	}
	return s.Refresh(ctx, sess.UserID)
}

// View filters the owner's collection.
func (s *Service) View(ctx context.Context, sess domain.Session, q search.Query) (search.Result, error) {
	bookmarks, err := s.Collection(ctx, sess)
	if err != nil {
		return search.Result{}, err
	}
	return search.Filter(bookmarks, q), nil
}

// Get prefers the cached view and falls back to the store.
func (s *Service) Get(ctx context.Context, sess domain.Session, id string) (domain.Bookmark, error) {
	if b, ok := s.index.Find(sess.UserID, id); ok {
		return b, nil
	}
	return s.store.Get(ctx, sess, id)
}

// Create persists a new bookmark and re-lists the owner.
func (s *Service) Create(ctx context.Context, sess domain.Session, f domain.Fields) (domain.Bookmark, error) {
	b, err := s.store.Create(ctx, sess, f)
	if err != nil {
		return domain.Bookmark{}, err
	}
	s.refreshAfterWrite(ctx, sess.UserID)
	return b, nil
}

// Update persists new fields and re-lists the owner.
func (s *Service) Update(ctx context.Context, sess domain.Session, id string, f domain.Fields) (domain.Bookmark, error) {
	b, err := s.store.Update(ctx, sess, id, f)
	if err != nil {
		return domain.Bookmark{}, err
	}
	s.refreshAfterWrite(ctx, sess.UserID)
	return b, nil
}

// Delete removes a bookmark and re-lists the owner.
func (s *Service) Delete(ctx context.Context, sess domain.Session, id string) error {
	if err := s.store.Delete(ctx, sess, id); err != nil {
		return err
	}
	s.refreshAfterWrite(ctx, sess.UserID)
	return nil
}

// refreshAfterWrite keeps the write successful when the re-list fails;
// the view is dropped so the next read lists again.
func (s *Service) refreshAfterWrite(ctx context.Context, userID string) {
	if _, err := s.Refresh(ctx, userID); err != nil {
		s.log.Warn("failed to refresh bookmarks after write",
			logger.String("user_id", userID),
			logger.Error(err))
		s.index.Invalidate(userID)
	}
}

// Tags lists the distinct tags of the owner's collection.
func (s *Service) Tags(ctx context.Context, sess domain.Session) ([]search.TagCount, error) {
	bookmarks, err := s.Collection(ctx, sess)
	if err != nil {
		return nil, err
	}
	return search.Tags(bookmarks), nil
}

// SuggestTags fuzzy matches prefix against the owner's tags.
func (s *Service) SuggestTags(ctx context.Context, sess domain.Session, prefix string, limit int) ([]search.TagCount, error) {
	bookmarks, err := s.Collection(ctx, sess)
	if err != nil {
		return nil, err
	}
	return search.SuggestTags(bookmarks, prefix, limit), nil
}

// ImportResult reports what Import did.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportError is one rejected entry, by its position in the input.
type ImportError struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Import validates every entry, skips URLs the owner already has and
// writes the rest, in bulk when the backend supports it.
func (s *Service) Import(ctx context.Context, sess domain.Session, entries []domain.Fields) (ImportResult, error) {
	existing, err := s.Collection(ctx, sess)
	if err != nil {
		return ImportResult{}, err
	}
	known := make(map[string]bool, len(existing))
	for _, b := range existing {
		known[b.URL] = true
	}

	var res ImportResult
	valid := make([]domain.Fields, 0, len(entries))
	for i, f := range entries {
		if err := form.ValidateFields(f); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, ImportError{Index: i, URL: f.URL, Reason: err.Error()})
			continue
		}
		if known[f.URL] {
			res.Skipped++
			continue
		}
		known[f.URL] = true
		valid = append(valid, f)
	}

	if bulk, ok := s.store.(BulkSaver); ok && len(valid) > 0 {
		now := nowFunc()
		bookmarks := make([]domain.Bookmark, len(valid))
		for i, f := range valid {
			// later entries sort newer, as with one Create per entry
			bookmarks[i] = domain.NewBookmark(f, now.Add(time.Duration(i)))
		}
		if err := bulk.SaveBookmarksMany(ctx, sess, bookmarks); err != nil {
			return res, err
		}
		res.Imported = len(valid)
	} else {
		for _, f := range valid {
			if _, err := s.store.Create(ctx, sess, f); err != nil {
				return res, err
			}
			res.Imported++
		}
	}

	if res.Imported > 0 {
		s.refreshAfterWrite(ctx, sess.UserID)
	}
	return res, nil
}
