// Package notify carries bookmark change notifications from the stores
// to whoever reconciles views.
package notify

import (
	"context"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpReload is emitted when the whole collection may have changed
	// (external edit of the local slot, import).
	OpReload Op = "reload"
)

// Change is one notification. Receivers must not rely on the fields
// beyond UserID: every change triggers a full re-list.
type Change struct {
	UserID     string    `json:"user_id"`
	Op         Op        `json:"op"`
	BookmarkID string    `json:"bookmark_id,omitempty"`
	At         time.Time `json:"at"`
}

// Broker publishes and fans out changes.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe streams changes for userID, or for every user when userID
	// is empty. The channel closes when ctx is done.
	Subscribe(ctx context.Context, userID string) (<-chan Change, error)
	Close() error
}
