package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
	"frontdesk/internal/state"

	"github.com/rs/zerolog"
)

// Reconciler converges the local snapshot on the remote store by replacing
// it wholesale. It is the engine's only repair mechanism: optimistic writes
// are never rolled back, so any divergence (failed remote writes, changes
// from other clients, missed notifications) is fixed by the next fetch.
//
// Fetches are tagged with a monotonic sequence number; a fetch superseded
// by a newer one discards its result instead of applying it out of order.
type Reconciler struct {
	state  *state.Store
	store  domain.RemoteStore
	logger *zerolog.Logger

	debounce     time.Duration
	pollInterval time.Duration
	retry        RetryPolicy

	// postApply, when set, runs after a fetch is applied; the invoice
	// service uses it to re-derive the revenue aggregate.
	postApply func(ctx context.Context) error

	seq   atomic.Uint64
	kicks chan string
}

// Options tunes the reconciler; zero values get defaults.
type Options struct {
	Debounce     time.Duration
	PollInterval time.Duration
	Retry        RetryPolicy
	PostApply    func(ctx context.Context) error
}

// New builds a reconciler around the state store and remote store.
func New(st *state.Store, remote domain.RemoteStore, opts Options, logger *zerolog.Logger) *Reconciler {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2}
	}

	return &Reconciler{
		state:        st,
		store:        remote,
		logger:       logger,
		debounce:     opts.Debounce,
		pollInterval: opts.PollInterval,
		retry:        opts.Retry,
		postApply:    opts.PostApply,
		kicks:        make(chan string, 64),
	}
}

// Schedule requests a debounced reconciliation. Never blocks; a full kick
// queue means a fetch is already pending, which is equivalent.
func (r *Reconciler) Schedule(reason string) {
	select {
	case r.kicks <- reason:
	default:
	}
}

// Run drives the loop: change feed signals and scheduled kicks coalesce
// behind a debounce timer, and a polling ticker bounds staleness when push
// notifications are missed. Blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context, feed <-chan string) {
	r.logger.Info().
		Dur("debounce", r.debounce).
		Dur("poll_interval", r.pollInterval).
		Msg("reconciler started")
	defer r.logger.Info().Msg("reconciler stopped")

	poll := time.NewTicker(r.pollInterval)
	defer poll.Stop()

	var timer *time.Timer
	var fire <-chan time.Time

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(r.debounce)
			fire = timer.C
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case reason := <-r.kicks:
			r.logger.Debug().Str("reason", reason).Msg("reconciliation requested")
			arm()

		case collection, ok := <-feed:
			if !ok {
				feed = nil
				continue
			}
			r.logger.Debug().Str("collection", collection).Msg("change signal")
			arm()

		case <-poll.C:
			arm()

		case <-fire:
			timer = nil
			fire = nil
			if err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("reconciliation failed")
			}
		}
	}
}

// Reconcile fetches rooms and reservations and replaces the snapshot,
// unless a newer fetch started in the meantime. Idempotent: running it
// twice against an unchanged remote yields the same snapshot contents.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	mySeq := r.seq.Add(1)

	rooms, err := r.fetchRooms(ctx)
	if err != nil {
		metrics.IncReconciliation("failed")
		return err
	}
	reservations, err := r.store.ListReservations(ctx)
	if err != nil {
		metrics.IncReconciliation("failed")
		return fmt.Errorf("fetch reservations: %w", err)
	}

	_, applied, err := r.state.DispatchIf(
		func(state.Snapshot) bool { return r.seq.Load() == mySeq },
		state.Action{
			Type:         state.ActionReplaceAll,
			Rooms:        rooms,
			Reservations: reservations,
			FetchedAt:    time.Now(),
		},
	)
	if err != nil {
		metrics.IncReconciliation("failed")
		return err
	}
	if !applied {
		metrics.IncReconciliation("dropped")
		r.logger.Debug().Uint64("seq", mySeq).Msg("stale fetch result dropped")
		return nil
	}

	metrics.IncReconciliation("applied")
	r.logger.Debug().
		Uint64("seq", mySeq).
		Int("rooms", len(rooms)).
		Int("reservations", len(reservations)).
		Msg("snapshot replaced")

	if r.postApply != nil {
		if err := r.postApply(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("post-apply hook failed")
		}
	}
	return nil
}

func (r *Reconciler) fetchRooms(ctx context.Context) ([]models.Room, error) {
	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxRetries; attempt++ {
		rooms, err := r.store.ListRooms(ctx)
		if err == nil {
			return rooms, nil
		}
		lastErr = err
		delay := r.retry.NextDelay(attempt)
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("room fetch failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("fetch rooms: %w", lastErr)
}
