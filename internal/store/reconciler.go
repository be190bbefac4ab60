package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/notify"
)

// ReloadFunc is called after a user's view was replaced.
type ReloadFunc func(userID string, bookmarks []domain.Bookmark)

// Reconciler keeps cached views in step with the store. Every change it
// receives leads to a full re-list of the affected user; changes are
// never merged into a view.
type Reconciler struct {
	svc    *Service
	broker notify.Broker
	logger logger.Logger

	mu        sync.RWMutex
	listeners []ReloadFunc
	started   bool

	stopCh chan struct{}
	done   chan struct{}
}

// NewReconciler creates a reconciler for svc fed by broker.
func NewReconciler(svc *Service, broker notify.Broker, log logger.Logger) *Reconciler {
	return &Reconciler{
		svc:    svc,
		broker: broker,
		logger: log,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// OnReload registers fn to run after every reload.
func (r *Reconciler) OnReload(fn ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, fn)
}

// Start subscribes to every user's changes and applies them until ctx is
// done or Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	changes, err := r.broker.Subscribe(ctx, "")
	if err != nil {
		cancel()
		close(r.done)
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	go func() {
		defer close(r.done)
		defer cancel()
		for {
			select {
			case c, ok := <-changes:
				if !ok {
					return
				}
				if err := r.Apply(ctx, c); err != nil {
					r.logger.Error("failed to reconcile change",
						logger.String("user_id", c.UserID),
						logger.String("op", string(c.Op)),
						logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the loop and waits for it to exit.
func (r *Reconciler) Stop() {
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if !started {
		return
	}

	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.done
}

// Apply reloads the user named by c, or every cached user when the
// change has no owner.
func (r *Reconciler) Apply(ctx context.Context, c notify.Change) error {
	if c.UserID == "" {
		return r.ReloadAll(ctx)
	}
	return r.Reload(ctx, c.UserID)
}

// Reload re-lists one user.
func (r *Reconciler) Reload(ctx context.Context, userID string) error {
	bookmarks, err := r.svc.Refresh(ctx, userID)
	if err != nil {
		return err
	}

	r.logger.Debug("reconciled bookmarks",
		logger.String("user_id", userID),
		logger.Int("count", len(bookmarks)))

	r.mu.RLock()
	listeners := append([]ReloadFunc(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(userID, bookmarks)
	}
	return nil
}

// ReloadAll re-lists every user with a cached view.
func (r *Reconciler) ReloadAll(ctx context.Context) error {
	var firstErr error
	for _, userID := range r.svc.Index().Users() {
		if err := r.Reload(ctx, userID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
