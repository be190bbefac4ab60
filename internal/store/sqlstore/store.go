// Package sqlstore is the relational remote bookmark table. Every row
// belongs to one user and every query is scoped by the session owner.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/marky/internal/database"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
	"github.com/MrSnakeDoc/marky/internal/notify"
	"github.com/MrSnakeDoc/marky/internal/store"
)

// Migrations creates the bookmarks table.
var Migrations = []database.Migration{
	{
		Name: "001_bookmarks",
		SQL: `
CREATE TABLE IF NOT EXISTS bookmarks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	url         TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	favorite    INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookmarks_user_created ON bookmarks (user_id, created_at);`,
	},
}

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `id, user_id, title, url, description, tags, favorite, created_at, updated_at`

// Store implements store.Store on a sqlite table.
type Store struct {
	db           *sql.DB
	broker       notify.Broker
	strictDelete bool
	now          func() time.Time
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

// New runs the table migrations and returns a store. Delete is strict
// unless WithStrictDelete(false) is given.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if err := database.Migrate(ctx, db, Migrations); err != nil {
		return nil, err
	}

	s := &Store{db: db, strictDelete: true, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (domain.Bookmark, error) {
	var (
		b                    domain.Bookmark
		id                   int64
		tags                 string
		favorite             int
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &b.UserID, &b.Title, &b.URL, &b.Description, &tags, &favorite, &createdAt, &updatedAt); err != nil {
		return domain.Bookmark{}, err
	}

	b.ID = strconv.FormatInt(id, 10)
	b.Favorite = favorite != 0

	if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to decode tags of bookmark %s: %w", b.ID, err)
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}

	var err error
	if b.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to parse created_at of bookmark %s: %w", b.ID, err)
	}
	if b.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to parse updated_at of bookmark %s: %w", b.ID, err)
	}
	return b, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseID rejects ids that cannot be a row id. Such ids can never exist.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Store) publish(ctx context.Context, userID string, op notify.Op, id string) {
	if s.broker == nil {
		return
	}
	_ = s.broker.Publish(ctx, notify.Change{UserID: userID, Op: op, BookmarkID: id, At: s.now()})
}

// List returns the owner's rows, newest first.
func (s *Store) List(ctx context.Context, sess domain.Session) ([]domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM bookmarks WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return bookmarks, nil
}

// Get returns one of the owner's rows.
func (s *Store) Get(ctx context.Context, sess domain.Session, id string) (domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return domain.Bookmark{}, err
	}
	n, ok := parseID(id)
	if !ok {
		return domain.Bookmark{}, &domain.NotFoundError{ID: id}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM bookmarks WHERE id = ? AND user_id = ?`, n, sess.UserID)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bookmark{}, &domain.NotFoundError{ID: id}
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return b, nil
}

// Create inserts a row owned by the session user.
func (s *Store) Create(ctx context.Context, sess domain.Session, f domain.Fields) (domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return domain.Bookmark{}, err
	}
	if err := form.ValidateFields(f); err != nil {
		return domain.Bookmark{}, err
	}

	b := domain.NewBookmark(f, s.now().UTC())
	b.UserID = sess.UserID

	tags, err := encodeTags(b.Tags)
	if err != nil {
		return domain.Bookmark{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bookmarks (user_id, title, url, description, tags, favorite, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.Title, b.URL, b.Description, tags, boolToInt(b.Favorite),
		b.CreatedAt.Format(timeLayout), b.UpdatedAt.Format(timeLayout))
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to read bookmark id: %w", err)
	}
	b.ID = strconv.FormatInt(id, 10)

	s.publish(ctx, b.UserID, notify.OpInsert, b.ID)
	return b, nil
}

// Update rewrites the fields of one of the owner's rows.
func (s *Store) Update(ctx context.Context, sess domain.Session, id string, f domain.Fields) (domain.Bookmark, error) {
	if err := store.RequireUser(sess); err != nil {
		return domain.Bookmark{}, err
	}
	if err := form.ValidateFields(f); err != nil {
		return domain.Bookmark{}, err
	}
	n, ok := parseID(id)
	if !ok {
		return domain.Bookmark{}, &domain.NotFoundError{ID: id}
	}

	tags, err := encodeTags(f.Tags)
	if err != nil {
		return domain.Bookmark{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE bookmarks
		    SET title = ?, url = ?, description = ?, tags = ?, favorite = ?, updated_at = ?
		  WHERE id = ? AND user_id = ?
		 RETURNING `+selectColumns,
		f.Title, f.URL, f.Description, tags, boolToInt(f.Favorite), s.now().UTC().Format(timeLayout),
		n, sess.UserID)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bookmark{}, &domain.NotFoundError{ID: id}
		}
		return domain.Bookmark{}, fmt.Errorf("failed to update bookmark: %w", err)
	}

	s.publish(ctx, b.UserID, notify.OpUpdate, b.ID)
	return b, nil
}

// Delete removes one of the owner's rows.
func (s *Store) Delete(ctx context.Context, sess domain.Session, id string) error {
	if err := store.RequireUser(sess); err != nil {
		return err
	}

	n, ok := parseID(id)
	var affected int64
	if ok {
		res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ? AND user_id = ?`, n, sess.UserID)
		if err != nil {
			return fmt.Errorf("failed to delete bookmark: %w", err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read deleted rows: %w", err)
		}
	}

	if affected == 0 {
		if s.strictDelete {
			return &domain.NotFoundError{ID: id}
		}
		return nil
	}

	s.publish(ctx, sess.UserID, notify.OpDelete, id)
	return nil
}
