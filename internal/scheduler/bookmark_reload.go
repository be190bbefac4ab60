package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marky/internal/logger"
)

// Reloader re-lists every cached bookmark view.
type Reloader interface {
	ReloadAll(ctx context.Context) error
}

// BookmarkReloader handles periodic and manual reconciliation of cached
// bookmark views
type BookmarkReloader struct {
	reloader      Reloader
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewBookmarkReloader creates a new bookmark reloader. A zero interval
// disables the periodic pass; manual triggers still work.
func NewBookmarkReloader(
	reloader Reloader,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *BookmarkReloader {
	return &BookmarkReloader{
		reloader:      reloader,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the reload loop
func (br *BookmarkReloader) Start(ctx context.Context) error {
	// Reconcile immediately on start
	if err := br.Reload(ctx); err != nil {
		return fmt.Errorf("initial bookmark reload failed: %w", err)
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if br.interval > 0 {
		ticker = time.NewTicker(br.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := br.Reload(ctx); err != nil {
					br.logger.Error("failed to reload bookmarks",
						logger.Error(err))
				}
			case <-br.manualTrigger:
				br.logger.Info("manual bookmark reload triggered")
				if err := br.Reload(ctx); err != nil {
					br.logger.Error("failed to reload bookmarks",
						logger.Error(err))
				}
			case <-br.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (br *BookmarkReloader) Stop() {
	close(br.stopCh)
}

// Reload re-lists every cached view
func (br *BookmarkReloader) Reload(ctx context.Context) error {
	start := time.Now()
	if err := br.reloader.ReloadAll(ctx); err != nil {
		return err
	}
	br.logger.Debug("bookmark views reconciled",
		logger.Duration("took", time.Since(start)))
	return nil
}

// Trigger asks a running reloader for a pass without blocking. It
// reports false when a pass is already pending.
func Trigger(ch chan struct{}) bool {
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}
