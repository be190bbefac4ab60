package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/notify"
)

// DefaultDebounce groups the events of one atomic slot write.
const DefaultDebounce = 100 * time.Millisecond

// SlotWatcher publishes a reload change when the local slot file is
// written by anything, including another process sharing the directory.
type SlotWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	broker   notify.Broker
	logger   logger.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSlotWatcher watches path, the file backing the local slot.
func NewSlotWatcher(path string, broker notify.Broker, log logger.Logger, debounce time.Duration) (*SlotWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &SlotWatcher{
		watcher:  watcher,
		path:     filepath.Clean(path),
		broker:   broker,
		logger:   log,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the slot directory. The file itself is replaced by
// rename on every write, so the directory is what gets watched.
func (sw *SlotWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.running {
		return nil
	}

	dir := filepath.Dir(sw.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create slot dir: %w", err)
	}
	if err := sw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	sw.running = true
	go sw.run(ctx)

	sw.logger.Info("watching local slot",
		logger.String("path", sw.path))
	return nil
}

// Stop ends the watch loop and releases the watcher.
func (sw *SlotWatcher) Stop() {
	sw.mu.Lock()
	running := sw.running
	sw.running = false
	sw.mu.Unlock()

	if running {
		close(sw.stopCh)
		<-sw.doneCh
	}
	if err := sw.watcher.Close(); err != nil {
		sw.logger.Warn("failed to close slot watcher", logger.Error(err))
	}
}

func (sw *SlotWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopCh:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !sw.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(sw.debounce)
			} else {
				timer.Reset(sw.debounce)
			}
			pending = timer.C

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Error("slot watcher error", logger.Error(err))

		case <-pending:
			pending = nil
			sw.publish(ctx)
		}
	}
}

func (sw *SlotWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != sw.path {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func (sw *SlotWatcher) publish(ctx context.Context) {
	sw.logger.Debug("local slot changed",
		logger.String("path", sw.path))

	// the local collection is shared, so no user is named
	err := sw.broker.Publish(ctx, notify.Change{Op: notify.OpReload, At: time.Now()})
	if err != nil {
		sw.logger.Warn("failed to publish slot change", logger.Error(err))
	}
}
