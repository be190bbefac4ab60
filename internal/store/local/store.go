// Package local is the single-owner bookmark store kept under one key
// of a persistent slot. It mirrors browser local storage: the whole
// collection is read, changed and written back on every mutation.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
	"github.com/MrSnakeDoc/marky/internal/notify"
)

// Store implements store.Store over a Slot. Owner fields are ignored:
// every session sees the same collection.
type Store struct {
	mu     sync.Mutex
	slot   Slot
	broker notify.Broker
	now    func() time.Time
	lastID int64
}

// Option configures a Store.
type Option func(*Store)

// WithBroker publishes a reload change after every mutation.
func WithBroker(b notify.Broker) Option {
	return func(s *Store) { s.broker = b }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a local store.
func New(slot Slot, opts ...Option) *Store {
	s := &Store{slot: slot, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) load() ([]domain.Bookmark, error) {
	data, ok, err := s.slot.Get(SlotKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return []domain.Bookmark{}, nil
	}

	var bookmarks []domain.Bookmark
	if err := json.Unmarshal(data, &bookmarks); err != nil {
		return nil, fmt.Errorf("failed to decode %s slot: %w", SlotKey, err)
	}
	for i := range bookmarks {
		if bookmarks[i].Tags == nil {
			bookmarks[i].Tags = []string{}
		}
	}
	return bookmarks, nil
}

func (s *Store) save(bookmarks []domain.Bookmark) error {
	data, err := json.Marshal(bookmarks)
	if err != nil {
		return fmt.Errorf("failed to encode %s slot: %w", SlotKey, err)
	}
	return s.slot.Set(SlotKey, data)
}

func (s *Store) publish(ctx context.Context, op notify.Op, id string) {
	if s.broker == nil {
		return
	}
	// the local collection is shared, so the change targets every user
	_ = s.broker.Publish(ctx, notify.Change{Op: op, BookmarkID: id, At: s.now()})
}

// nextID returns a nanosecond timestamp, bumped when two creates land on
// the same tick.
func (s *Store) nextID(existing []domain.Bookmark) string {
	id := s.now().UnixNano()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	taken := make(map[string]bool, len(existing))
	for _, b := range existing {
		taken[b.ID] = true
	}
	for taken[strconv.FormatInt(id, 10)] {
		id++
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// List returns the stored order, which is newest first.
func (s *Store) List(_ context.Context, _ domain.Session) ([]domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Get returns one bookmark.
func (s *Store) Get(_ context.Context, _ domain.Session, id string) (domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookmarks, err := s.load()
	if err != nil {
		return domain.Bookmark{}, err
	}
	for _, b := range bookmarks {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bookmark{}, &domain.NotFoundError{ID: id}
}

// Create prepends a new bookmark and writes the collection.
func (s *Store) Create(ctx context.Context, _ domain.Session, f domain.Fields) (domain.Bookmark, error) {
	if err := form.ValidateFields(f); err != nil {
		return domain.Bookmark{}, err
	}

	s.mu.Lock()
	bookmarks, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return domain.Bookmark{}, err
	}

	b := domain.NewBookmark(f, s.now())
	b.ID = s.nextID(bookmarks)

	updated := make([]domain.Bookmark, 0, len(bookmarks)+1)
	updated = append(updated, b)
	updated = append(updated, bookmarks...)

	err = s.save(updated)
	s.mu.Unlock()
	if err != nil {
		return domain.Bookmark{}, err
	}

	s.publish(ctx, notify.OpInsert, b.ID)
	return b, nil
}

// Update replaces the fields of an existing bookmark in place.
func (s *Store) Update(ctx context.Context, _ domain.Session, id string, f domain.Fields) (domain.Bookmark, error) {
	if err := form.ValidateFields(f); err != nil {
		return domain.Bookmark{}, err
	}

	s.mu.Lock()
	bookmarks, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return domain.Bookmark{}, err
	}

	idx := -1
	for i := range bookmarks {
		if bookmarks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.Bookmark{}, &domain.NotFoundError{ID: id}
	}

	bookmarks[idx].Apply(f, s.now())
	b := bookmarks[idx]

	err = s.save(bookmarks)
	s.mu.Unlock()
	if err != nil {
		return domain.Bookmark{}, err
	}

	s.publish(ctx, notify.OpUpdate, id)
	return b, nil
}

// Delete removes id. Deleting an absent id succeeds without writing.
func (s *Store) Delete(ctx context.Context, _ domain.Session, id string) error {
	s.mu.Lock()
	bookmarks, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	kept := make([]domain.Bookmark, 0, len(bookmarks))
	removed := false
	for _, b := range bookmarks {
		if !removed && b.ID == id {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	if !removed {
		s.mu.Unlock()
		return nil
	}

	err = s.save(kept)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, notify.OpDelete, id)
	return nil
}
