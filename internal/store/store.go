// Package store defines bookmark persistence and keeps per-user views
// in sync with it.
package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// Store is CRUD over one owner's bookmarks. Implementations validate
// fields again before persisting.
type Store interface {
	// List returns the session owner's bookmarks, newest first.
	List(ctx context.Context, s domain.Session) ([]domain.Bookmark, error)
	Get(ctx context.Context, s domain.Session, id string) (domain.Bookmark, error)
	Create(ctx context.Context, s domain.Session, f domain.Fields) (domain.Bookmark, error)
	Update(ctx context.Context, s domain.Session, id string, f domain.Fields) (domain.Bookmark, error)
	Delete(ctx context.Context, s domain.Session, id string) error
}

var nowFunc = time.Now

// Backend names accepted by MARKY_BACKEND.
const (
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ValidBackend reports whether name is a known backend.
func ValidBackend(name string) bool {
	switch name {
	case BackendLocal, BackendSQLite, BackendRedis:
		return true
	}
	return false
}

// SortNewestFirst orders by CreatedAt descending, then ID descending,
// in place.
func SortNewestFirst(bs []domain.Bookmark) {
	slices.SortStableFunc(bs, func(a, b domain.Bookmark) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

// SystemSession is the session used by background reconciliation to
// list a user's collection.
func SystemSession(userID string) domain.Session {
	return domain.Session{UserID: userID}
}

// RequireUser rejects sessions without an owner. Remote backends call it
// before touching any row.
func RequireUser(s domain.Session) error {
	if s.UserID == "" {
		return &domain.AuthError{Code: domain.AuthSessionExpired, Err: fmt.Errorf("no user in session")}
	}
	return nil
}
