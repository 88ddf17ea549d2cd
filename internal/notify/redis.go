package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "frontdesk:changes:"

// RedisFeed delivers change signals across clients over Redis pub/sub.
// Signals carry no payload beyond the collection name; delivery is
// at-least-once from the engine's perspective because local writes also
// signal through the write coordinator.
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed wraps an existing client.
func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// Ping verifies the connection.
func (f *RedisFeed) Ping(ctx context.Context) error {
	if f.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if _, err := f.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Publish signals a collection change to all subscribed clients.
func (f *RedisFeed) Publish(ctx context.Context, collection string) error {
	if f.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := f.client.Publish(ctx, channelPrefix+collection, "").Err(); err != nil {
		return fmt.Errorf("publish change for %s: %w", collection, err)
	}
	return nil
}

// Subscribe returns a channel of collection names. The channel closes when
// ctx is cancelled.
func (f *RedisFeed) Subscribe(ctx context.Context, collections ...string) (<-chan string, error) {
	if f.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	channels := make([]string, len(collections))
	for i, c := range collections {
		channels[i] = channelPrefix + c
	}

	pubsub := f.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				collection := strings.TrimPrefix(msg.Channel, channelPrefix)
				select {
				case out <- collection:
				default:
					// Subscriber is behind; a coalesced signal is
					// equivalent since the payload is always "re-fetch".
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying client.
func (f *RedisFeed) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
