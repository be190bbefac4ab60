package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/notify"
)

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (r *countingReloader) ReloadAll(context.Context) error {
	r.calls.Add(1)
	return r.err
}

type stubPurger struct {
	n     int
	err   error
	calls atomic.Int32
}

func (p *stubPurger) PurgeExpired(context.Context) (int, error) {
	p.calls.Add(1)
	return p.n, p.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBookmarkReloader_StartReloadsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &countingReloader{}
	trigger := make(chan struct{}, 1)
	br := NewBookmarkReloader(r, logger.Nop(), 0, trigger)

	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer br.Stop()

	if r.calls.Load() != 1 {
		t.Errorf("Start() reloads = %d, want 1", r.calls.Load())
	}
}

func TestBookmarkReloader_ManualTrigger(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &countingReloader{}
	trigger := make(chan struct{}, 1)
	br := NewBookmarkReloader(r, logger.Nop(), time.Hour, trigger)
	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer br.Stop()

	if !Trigger(trigger) {
		t.Fatal("Trigger() on an empty channel should succeed")
	}
	waitFor(t, func() bool { return r.calls.Load() == 2 })
}

func TestBookmarkReloader_InitialFailure(t *testing.T) {
	r := &countingReloader{err: errors.New("store down")}
	br := NewBookmarkReloader(r, logger.Nop(), time.Hour, make(chan struct{}, 1))

	if err := br.Start(context.Background()); err == nil {
		t.Fatal("Start() should report the initial reload failure")
	}
}

func TestTriggerDoesNotBlock(t *testing.T) {
	trigger := make(chan struct{}, 1)
	if !Trigger(trigger) {
		t.Fatal("first Trigger() should queue")
	}
	if Trigger(trigger) {
		t.Error("second Trigger() should report a pending pass")
	}
}

func TestSessionCollector_Collect(t *testing.T) {
	p := &stubPurger{n: 3}
	sc := NewSessionCollector(p, logger.Nop(), time.Hour)

	if err := sc.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("PurgeExpired calls = %d, want 1", p.calls.Load())
	}

	p.err = errors.New("db locked")
	if err := sc.Collect(context.Background()); err == nil {
		t.Error("Collect should surface purge errors")
	}
}

func TestSessionCollector_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &stubPurger{err: errors.New("first run fails")}
	sc := NewSessionCollector(p, logger.Nop(), 0)
	if sc.interval != DefaultSessionGCInterval {
		t.Errorf("zero interval = %v, want default", sc.interval)
	}

	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("a failed initial collection must not fail Start: %v", err)
	}
	sc.Stop()
}

func TestSlotWatcher_PublishesOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := notify.NewMemoryBroker()
	defer broker.Close()
	changes, err := broker.Subscribe(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bookmarks.json")
	sw, err := NewSlotWatcher(path, broker, logger.Nop(), 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer sw.Stop()

	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.Op != notify.OpReload || c.UserID != "" {
			t.Errorf("change = %+v, want ownerless reload", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change published for slot write")
	}
}
