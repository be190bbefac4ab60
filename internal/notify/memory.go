package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a closed broker.
var ErrClosed = errors.New("notify: broker closed")

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 16

type subscriber struct {
	userID string
	ch     chan Change
}

// MemoryBroker fans out changes inside one process.
// A subscriber whose buffer is full misses the change; since every change
// means "re-list", the buffered ones still trigger a reload.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
	closed bool
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[*subscriber]struct{}),
		buffer: DefaultBuffer,
	}
}

// Publish delivers c to every matching subscriber without blocking.
func (b *MemoryBroker) Publish(_ context.Context, c Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for s := range b.subs {
		if s.userID != "" && s.userID != c.UserID {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *MemoryBroker) Subscribe(ctx context.Context, userID string) (<-chan Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	s := &subscriber{userID: userID, ch: make(chan Change, b.buffer)}
	b.subs[s] = struct{}{}

	go func() {
		<-ctx.Done()
		b.remove(s)
	}()

	return s.ch, nil
}

func (b *MemoryBroker) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Close closes every subscriber channel.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	return nil
}
