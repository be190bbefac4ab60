package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces change channels: marky:changes:<user_id>.
const ChannelPrefix = "marky:changes:"

// ChannelFor returns the pub/sub channel of one user.
func ChannelFor(userID string) string {
	return ChannelPrefix + userID
}

// RedisBroker publishes changes over redis pub/sub so that several
// marky processes sharing one backend reconcile each other's writes.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker wraps an existing client. The broker does not own it.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish sends c on the owner's channel.
func (b *RedisBroker) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelFor(c.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe listens on one user's channel, or on every channel when
// userID is empty.
func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (<-chan Change, error) {
	var ps *redis.PubSub
	if userID == "" {
		ps = b.client.PSubscribe(ctx, ChannelPrefix+"*")
	} else {
		ps = b.client.Subscribe(ctx, ChannelFor(userID))
	}

	// wait for the subscription to be confirmed before returning
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan Change, DefaultBuffer)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the client is closed by its owner.
func (b *RedisBroker) Close() error { return nil }
