package notify

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process change feed. It gives a single client
// loopback signalling when Redis is unavailable; cross-client delivery
// then relies on the polling fallback.
type MemoryFeed struct {
	mu      sync.Mutex
	subs    []*memorySub
	closed  bool
	bufSize int
}

type memorySub struct {
	collections map[string]bool
	ch          chan string
}

// NewMemoryFeed builds an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{bufSize: 16}
}

// Publish signals every subscriber interested in the collection. Slow
// subscribers drop the signal rather than block; dropped signals are
// recovered by the reconciliation poll.
func (f *MemoryFeed) Publish(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	for _, sub := range f.subs {
		if !sub.collections[collection] {
			continue
		}
		select {
		case sub.ch <- collection:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving collection names. The channel is
// closed when ctx is cancelled or the feed is closed.
func (f *MemoryFeed) Subscribe(ctx context.Context, collections ...string) (<-chan string, error) {
	sub := &memorySub{
		collections: make(map[string]bool, len(collections)),
		ch:          make(chan string, f.bufSize),
	}
	for _, c := range collections {
		sub.collections[c] = true
	}

	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(sub)
	}()

	return sub.ch, nil
}

func (f *MemoryFeed) remove(sub *memorySub) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Close tears down every subscription.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, sub := range f.subs {
		close(sub.ch)
	}
	f.subs = nil
	return nil
}
