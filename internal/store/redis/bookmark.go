// Package redis is the key-value remote bookmark store. Each bookmark is
// a JSON value under a per-user key, indexed by a per-user set of IDs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
	"github.com/MrSnakeDoc/marky/internal/notify"
	"github.com/MrSnakeDoc/marky/internal/store"
)

// Store implements store.Store on Redis
type Store struct {
	client       *redis.Client
	broker       notify.Broker
	strictDelete bool
	now          func() time.Time
	newID        func() string
}

// Option configures a Store.
type Option func(*Store)

// WithBroker publishes one change per successful mutation.
func WithBroker(b notify.Broker) Option {
	return func(s *Store) { s.broker = b }
}

// WithStrictDelete makes deleting an absent id a NotFoundError.
func WithStrictDelete(strict bool) Option {
	return func(s *Store) { s.strictDelete = strict }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:       client,
		strictDelete: true,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) publish(ctx context.Context, userID string, op notify.Op, id string) {
	if s.broker == nil {
		return
	}
	_ = s.broker.Publish(ctx, notify.Change{UserID: userID, Op: op, BookmarkID: id, At: s.now()})
}

func decode(data []byte) (domain.Bookmark, error) {
	var bookmark domain.Bookmark
	if err := json.Unmarshal(data, &bookmark); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	if bookmark.Tags == nil {
		bookmark.Tags = []string{}
	}
	return bookmark, nil
}

// save writes the bookmark and its set membership in one MULTI block
func (s *Store) save(ctx context.Context, bookmark domain.Bookmark) error {
	data, err := json.Marshal(bookmark)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(bookmark.UserID, bookmark.ID), data, 0)
		pipe.SAdd(ctx, UserBookmarksKey(bookmark.UserID), bookmark.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// List retrieves all of the owner's bookmarks, newest first
func (s *Store) List(ctx context.Context, sess domain.Session) ([]domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return nil, err
	}

	ids, err := s.client.SMembers(ctx, UserBookmarksKey(sess.UserID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(sess.UserID, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]domain.Bookmark, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Skip ids whose value is gone
			continue
		}
		bookmark, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, bookmark)
	}

	store.SortNewestFirst(bookmarks)
	return bookmarks, nil
}

// Get retrieves one of the owner's bookmarks by ID
func (s *Store) Get(ctx context.Context, sess domain.Session, id string) (domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return domain.Bookmark{}, err
	}

	data, err := s.client.Get(ctx, BookmarkKey(sess.UserID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bookmark{}, &domain.NotFoundError{ID: id}
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return decode(data)
}

// Create stores a new bookmark owned by the session user
func (s *Store) Create(ctx context.Context, sess domain.Session, f domain.Fields) (domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return domain.Bookmark{}, err
	}
	if err := form.ValidateFields(f); err != nil {
		return domain.Bookmark{}, err
	}

	bookmark := domain.NewBookmark(f, s.now().UTC())
	bookmark.ID = s.newID()
	bookmark.UserID = sess.UserID

	if err := s.save(ctx, bookmark); err != nil {
		return domain.Bookmark{}, err
	}

	s.publish(ctx, bookmark.UserID, notify.OpInsert, bookmark.ID)
	return bookmark, nil
}

// updateRetries bounds how often Update restarts after a concurrent
// write to the same key.
const updateRetries = 5

// Update rewrites the fields of one of the owner's bookmarks. The read and
// the write run under WATCH, so a bookmark deleted in between stays deleted.
func (s *Store) Update(ctx context.Context, sess domain.Session, id string, f domain.Fields) (domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return domain.Bookmark{}, err
	}
	if err := form.ValidateFields(f); err != nil {
		return domain.Bookmark{}, err
	}

	key := BookmarkKey(sess.UserID, id)
	var bookmark domain.Bookmark
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return &domain.NotFoundError{ID: id}
			}
			return fmt.Errorf("failed to get bookmark: %w", err)
		}
		if bookmark, err = decode(data); err != nil {
			return err
		}
		bookmark.Apply(f, s.now().UTC())

		value, err := json.Marshal(bookmark)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark: %w", err)
		}
		// fails with TxFailedErr if key changed since WATCH
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, 0)
			pipe.SAdd(ctx, UserBookmarksKey(sess.UserID), id)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if domain.IsNotFound(err) {
				return domain.Bookmark{}, err
			}
			return domain.Bookmark{}, fmt.Errorf("failed to update bookmark: %w", err)
		}

		s.publish(ctx, bookmark.UserID, notify.OpUpdate, bookmark.ID)
		return bookmark, nil
	}
	return domain.Bookmark{}, fmt.Errorf("failed to update bookmark %s: too many concurrent writes", id)
}

// Delete removes one of the owner's bookmarks
func (s *Store) Delete(ctx context.Context, sess domain.Session, id string) error {
	if err := store.RequireUser(sess); err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, BookmarkKey(sess.UserID, id))
		pipe.SRem(ctx, UserBookmarksKey(sess.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	if del.Val() == 0 {
		if s.strictDelete {
			return &domain.NotFoundError{ID: id}
		}
		return nil
	}

	s.publish(ctx, sess.UserID, notify.OpDelete, id)
	return nil
}

// SaveBookmarksMany stores bookmarks for one user in a single pipeline,
// assigning IDs where missing. It publishes one reload change.
func (s *Store) SaveBookmarksMany(ctx context.Context, sess domain.Session, bookmarks []domain.Bookmark) error {
	if err := store.RequireUser(sess); err != nil {
		return err
	}
	if len(bookmarks) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, bookmark := range bookmarks {
		if bookmark.ID == "" {
			bookmark.ID = s.newID()
		}
		bookmark.UserID = sess.UserID

		data, err := json.Marshal(bookmark)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark %s: %w", bookmark.ID, err)
		}
		pipe.Set(ctx, BookmarkKey(sess.UserID, bookmark.ID), data, 0)
		pipe.SAdd(ctx, UserBookmarksKey(sess.UserID), bookmark.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}

	s.publish(ctx, sess.UserID, notify.OpReload, "")
	return nil
}
