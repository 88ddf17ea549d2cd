package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"frontdesk/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverFeed publishes through the primary feed while it is healthy and
// drops to the fallback when it fails, probing the primary again after a
// cooldown. Subscriptions are merged from both feeds so signals are not
// lost across the switch; duplicate signals are harmless because handlers
// only re-fetch.
type FailoverFeed struct {
	primary  domain.ChangeFeed
	fallback domain.ChangeFeed
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverFeed wires the two feeds.
func NewFailoverFeed(primary, fallback domain.ChangeFeed, logger *zerolog.Logger) *FailoverFeed {
	return &FailoverFeed{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Publish tries the primary feed first; the fallback always receives the
// signal so local subscribers stay current even when the primary is down.
func (f *FailoverFeed) Publish(ctx context.Context, collection string) error {
	defer func() {
		_ = f.fallback.Publish(ctx, collection)
	}()

	if !f.isDown.Load() {
		if err := f.primary.Publish(ctx, collection); err != nil {
			f.logger.Error().Err(err).Str("collection", collection).
				Msg("primary change feed failed, falling back to memory")
			f.markDown()
			return nil
		}
		return nil
	}

	// Probe for recovery after a minute.
	if f.shouldProbe() {
		if err := f.primary.Publish(ctx, collection); err == nil {
			f.isDown.Store(false)
		}
	}
	return nil
}

func (f *FailoverFeed) markDown() {
	f.isDown.Store(true)
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverFeed) shouldProbe() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) < time.Minute {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

// Subscribe merges signals from both feeds into one channel.
func (f *FailoverFeed) Subscribe(ctx context.Context, collections ...string) (<-chan string, error) {
	fallbackCh, err := f.fallback.Subscribe(ctx, collections...)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	var wg sync.WaitGroup

	forward := func(in <-chan string) {
		defer wg.Done()
		for c := range in {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}

	wg.Add(1)
	go forward(fallbackCh)

	if primaryCh, err := f.primary.Subscribe(ctx, collections...); err != nil {
		f.logger.Warn().Err(err).Msg("primary change feed subscription unavailable")
		f.markDown()
	} else {
		wg.Add(1)
		go forward(primaryCh)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Close closes both feeds.
func (f *FailoverFeed) Close() error {
	err := f.primary.Close()
	if ferr := f.fallback.Close(); err == nil {
		err = ferr
	}
	return err
}
