package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marky/internal/logger"
)

const (
	// DefaultSessionGCInterval is used when no interval is configured
	DefaultSessionGCInterval = 10 * time.Minute
)

// SessionPurger deletes expired sessions and reports how many.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// SessionCollector handles cleanup of expired sessions
type SessionCollector struct {
	purger   SessionPurger
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSessionCollector creates a new session collector
func NewSessionCollector(
	purger SessionPurger,
	log logger.Logger,
	interval time.Duration,
) *SessionCollector {
	if interval <= 0 {
		interval = DefaultSessionGCInterval
	}

	return &SessionCollector{
		purger:   purger,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection process
func (sc *SessionCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if err := sc.Collect(ctx); err != nil {
		sc.logger.Warn("initial session collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(sc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sc.Collect(ctx); err != nil {
					sc.logger.Error("session collection failed",
						logger.Error(err))
				}
			case <-sc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the collector
func (sc *SessionCollector) Stop() {
	close(sc.stopCh)
}

// Collect removes sessions past their expiry
func (sc *SessionCollector) Collect(ctx context.Context) error {
	n, err := sc.purger.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	if n > 0 {
		sc.logger.Info("expired sessions collected",
			logger.Int("sessions_deleted", n))
	} else {
		sc.logger.Debug("no sessions to collect")
	}
	return nil
}
