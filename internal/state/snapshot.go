package state

import (
	"fmt"
	"sync"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"

	"github.com/rs/zerolog"
)

// Snapshot is the engine's in-memory view of rooms and reservations. It is
// a value: Reduce never mutates its input, so a snapshot handed to a reader
// stays stable while newer versions are produced behind it.
type Snapshot struct {
	Rooms        []models.Room
	Reservations []models.Reservation
	IsFresh      bool
	LastFetch    time.Time
	Version      uint64
}

// RoomByID returns the room or nil.
func (s Snapshot) RoomByID(id int64) *models.Room {
	for i := range s.Rooms {
		if s.Rooms[i].ID == id {
			r := s.Rooms[i]
			return &r
		}
	}
	return nil
}

// ReservationByID returns the reservation keyed by local id, or nil.
func (s Snapshot) ReservationByID(id string) *models.Reservation {
	for i := range s.Reservations {
		if s.Reservations[i].ID == id {
			r := s.Reservations[i]
			return &r
		}
	}
	return nil
}

// ActiveReservationForRoom returns the reservation currently claiming the
// room, or nil.
func (s Snapshot) ActiveReservationForRoom(roomID int64) *models.Reservation {
	for i := range s.Reservations {
		if s.Reservations[i].RoomID == roomID && s.Reservations[i].Active() {
			r := s.Reservations[i]
			return &r
		}
	}
	return nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Rooms = append([]models.Room(nil), s.Rooms...)
	out.Reservations = append([]models.Reservation(nil), s.Reservations...)
	return out
}

// normalizeRoom applies the occupied-wins half of the guest-presence rule:
// a non-empty guest name forces occupied status no matter what status the
// input carries. Guest clearing on non-occupied statuses happens in the
// ActionUpdateRoomStatus case, which always overwrites the guest field.
// Returns true when the input had to be corrected.
func normalizeRoom(r *models.Room) bool {
	if r.Guest != "" && r.Status != models.RoomOccupied {
		r.Status = models.RoomOccupied
		return true
	}
	return false
}

// Reduce is the pure state-transition function. It returns a new snapshot;
// the input is never modified. Unknown rooms and reservations yield
// domain.ErrNotFound, and transitions that would break the guest-presence
// invariant yield domain.ErrInvalidTransition.
func Reduce(s Snapshot, a Action, logger *zerolog.Logger) (Snapshot, error) {
	switch a.Type {
	case ActionReplaceAll:
		next := Snapshot{
			Rooms:        append([]models.Room(nil), a.Rooms...),
			Reservations: append([]models.Reservation(nil), a.Reservations...),
			IsFresh:      true,
			LastFetch:    a.FetchedAt,
			Version:      s.Version,
		}
		if next.LastFetch.IsZero() {
			next.LastFetch = time.Now()
		}
		for i := range next.Rooms {
			if normalizeRoom(&next.Rooms[i]) && logger != nil {
				logger.Warn().
					Int64("room_id", next.Rooms[i].ID).
					Str("guest", next.Rooms[i].Guest).
					Msg("remote row carried a guest with non-occupied status; occupied wins")
			}
		}
		return next, nil

	case ActionMarkStale:
		next := s.clone()
		next.IsFresh = false
		return next, nil

	case ActionMarkFresh:
		next := s.clone()
		next.IsFresh = true
		return next, nil

	case ActionUpdateRoomStatus:
		if !models.ValidRoomStatus(a.Status) && a.Guest == "" {
			return s, fmt.Errorf("%w: unknown room status %q", domain.ErrInvalidTransition, a.Status)
		}
		next := s.clone()
		for i := range next.Rooms {
			if next.Rooms[i].ID != a.RoomID {
				continue
			}
			room := &next.Rooms[i]
			room.Status = a.Status
			room.Guest = a.Guest
			room.UpdatedAt = time.Now()
			if a.Guest == "" && a.Status == models.RoomOccupied {
				return s, fmt.Errorf("%w: occupied room %d requires a guest", domain.ErrInvalidTransition, a.RoomID)
			}
			if normalizeRoom(room) && logger != nil {
				logger.Warn().
					Int64("room_id", room.ID).
					Str("offered_status", string(a.Status)).
					Msg("status update would leave a guest in a non-occupied room; occupied wins")
			}
			return next, nil
		}
		return s, fmt.Errorf("%w: room %d", domain.ErrNotFound, a.RoomID)

	case ActionAddReservation:
		if a.Reservation == nil {
			return s, fmt.Errorf("%w: missing reservation payload", domain.ErrInvalidTransition)
		}
		next := s.clone()
		next.Reservations = append(next.Reservations, *a.Reservation)
		return next, nil

	case ActionUpdateReservation:
		if a.Reservation == nil {
			return s, fmt.Errorf("%w: missing reservation payload", domain.ErrInvalidTransition)
		}
		next := s.clone()
		for i := range next.Reservations {
			if next.Reservations[i].ID == a.Reservation.ID {
				next.Reservations[i] = *a.Reservation
				return next, nil
			}
		}
		return s, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, a.Reservation.ID)

	case ActionDeleteReservation:
		next := s.clone()
		for i := range next.Reservations {
			if next.Reservations[i].ID == a.ReservationID {
				next.Reservations = append(next.Reservations[:i], next.Reservations[i+1:]...)
				return next, nil
			}
		}
		return s, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, a.ReservationID)

	case ActionConfirmReservationID:
		next := s.clone()
		for i := range next.Reservations {
			if next.Reservations[i].ID == a.ReservationID {
				next.Reservations[i].RemoteID = a.RemoteID
				return next, nil
			}
		}
		// The reservation may already have been replaced by a
		// reconciliation fetch; confirming a gone placeholder is a no-op.
		return next, nil

	default:
		return s, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidTransition, a.Type)
	}
}

// Store owns the current snapshot. It is the single shared mutable resource
// in the engine; all mutation goes through the write lock, and Apply lets a
// caller run its transition guards under that same lock, so two interleaved
// optimistic writes observe each other's effects (the second reserve on a
// room sees the first one's reserved status and is rejected).
type Store struct {
	mu     sync.RWMutex
	snap   Snapshot
	logger *zerolog.Logger
}

// NewStore builds a store holding an empty, stale snapshot.
func NewStore(logger *zerolog.Logger) *Store {
	return &Store{
		snap:   Snapshot{IsFresh: false},
		logger: logger,
	}
}

// Snapshot returns the current snapshot value.
func (st *Store) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snap
}

// Dispatch runs the reducer under the write lock and installs the result.
// The returned snapshot is the post-transition state.
func (st *Store) Dispatch(a Action) (Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	next, err := Reduce(st.snap, a, st.logger)
	if err != nil {
		return st.snap, err
	}
	next.Version = st.snap.Version + 1
	st.snap = next
	return next, nil
}

// Apply evaluates plan under the write lock and folds the actions it
// returns through the reducer, installing the result as one transition.
// Guards inside plan therefore see every previously committed optimistic
// write; an error from plan or from any action discards the whole
// transition and leaves the snapshot untouched.
func (st *Store) Apply(plan func(Snapshot) ([]Action, error)) (Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	actions, err := plan(st.snap)
	if err != nil {
		return st.snap, err
	}
	next := st.snap
	for _, a := range actions {
		next, err = Reduce(next, a, st.logger)
		if err != nil {
			return st.snap, err
		}
	}
	next.Version = st.snap.Version + 1
	st.snap = next
	return next, nil
}

// DispatchIf runs the reducer only when cond, evaluated under the write
// lock against the current snapshot, returns true. Used by the reconciler
// to drop fetches that were superseded while in flight.
func (st *Store) DispatchIf(cond func(Snapshot) bool, a Action) (Snapshot, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !cond(st.snap) {
		return st.snap, false, nil
	}
	next, err := Reduce(st.snap, a, st.logger)
	if err != nil {
		return st.snap, false, err
	}
	next.Version = st.snap.Version + 1
	st.snap = next
	return next, true, nil
}
