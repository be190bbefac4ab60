package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/index"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/notify"
	"github.com/MrSnakeDoc/marky/internal/search"
	"github.com/MrSnakeDoc/marky/internal/store/local"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type reloads struct {
	mu    sync.Mutex
	users []string
}

func (r *reloads) record(userID string, _ []domain.Bookmark) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *reloads) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.users...)
}

func TestReconcilerReloadsOnExternalChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := notify.NewMemoryBroker()
	defer broker.Close()

	slot := local.NewFileSlot(t.TempDir())
	// writer stands in for another process sharing the slot
	writer := local.New(slot, local.WithBroker(broker))
	svc := NewService(local.New(slot), index.NewMemoryIndex(), logger.Nop())

	// warm two users' views
	for _, u := range []string{"alice", "bob"} {
		_, err := svc.View(ctx, domain.Session{UserID: u}, search.Query{})
		require.NoError(t, err)
	}

	rec := &reloads{}
	r := NewReconciler(svc, broker, logger.Nop())
	r.OnReload(rec.record)
	require.NoError(t, r.Start(ctx))

	_, err := writer.Create(ctx, alice, domain.Fields{Title: "t", URL: "https://t.io"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.seen()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"alice", "bob"}, rec.seen()[:2], "ownerless change reloads every cached user")
	for _, u := range []string{"alice", "bob"} {
		got, ok := svc.Index().Get(u)
		require.True(t, ok)
		assert.Len(t, got, 1)
	}

	r.Stop()
}

func TestReconcilerApplyTargetsOneUser(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	rec := &reloads{}
	r := NewReconciler(svc, notify.NewMemoryBroker(), logger.Nop())
	r.OnReload(rec.record)

	require.NoError(t, r.Apply(ctx, notify.Change{UserID: "carol", Op: notify.OpInsert}))
	assert.Equal(t, []string{"carol"}, rec.seen())
	assert.Equal(t, 1, st.lists)

	_, ok := svc.Index().Get("carol")
	assert.True(t, ok)
}

func TestReconcilerStopsWhenContextEnds(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, _ := newTestService(t)
	broker := notify.NewMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewReconciler(svc, broker, logger.Nop())
	require.NoError(t, r.Start(ctx))

	cancel()
	r.Stop()
}

func TestReconcilerStopWithoutStart(t *testing.T) {
	svc, _ := newTestService(t)
	r := NewReconciler(svc, notify.NewMemoryBroker(), logger.Nop())
	r.Stop()
}
