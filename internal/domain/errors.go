package domain

import "errors"

var (
	// ErrInvalidTransition is a lifecycle guard rejection. The operation
	// had no side effects, locally or remotely.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrRemoteWriteFailed means the optimistic local mutation is in
	// place but the remote store call failed; the snapshot is marked
	// stale and a reconciliation fetch is scheduled. The caller must not
	// blindly retry the original payload.
	ErrRemoteWriteFailed = errors.New("remote write failed")

	// ErrStaleReadConflict means a mutation's precondition no longer
	// held by the time it reached the store; the user should re-issue
	// the action after reconciliation shows the true state.
	ErrStaleReadConflict = errors.New("stale read conflict")

	// ErrNotFound means the referenced room, reservation, guest or
	// invoice is absent from the current snapshot or store.
	ErrNotFound = errors.New("not found")
)
