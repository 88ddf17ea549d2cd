package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/events"
	"frontdesk/internal/lifecycle"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
	"frontdesk/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeskService is the optimistic write coordinator: every mutating operation
// validates and applies its effect locally as one state transition,
// issues the remote store call, and on remote failure leaves the optimistic
// state in place, marks the snapshot stale and schedules a reconciliation
// fetch. A failed write therefore never makes the UI flicker back; the next
// fetch is the repair.
type DeskService struct {
	state      *state.Store
	store      domain.RemoteStore
	bus        domain.EventPublisher
	reconciler domain.ReconcileScheduler
	logger     *zerolog.Logger
}

// NewDeskService wires the coordinator.
func NewDeskService(st *state.Store, remote domain.RemoteStore, bus domain.EventPublisher, reconciler domain.ReconcileScheduler, logger *zerolog.Logger) *DeskService {
	return &DeskService{
		state:      st,
		store:      remote,
		bus:        bus,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RoomFilter narrows GetRooms output. Zero fields match everything.
type RoomFilter struct {
	Status models.RoomStatus
	Type   string
	Block  string
}

// GetRooms returns rooms from the current snapshot, filtered and sorted.
// sortBy accepts "number" (default), "rate" and "status".
func (s *DeskService) GetRooms(filter RoomFilter, sortBy string) []models.Room {
	snap := s.state.Snapshot()

	out := make([]models.Room, 0, len(snap.Rooms))
	for _, room := range snap.Rooms {
		if filter.Status != "" && room.Status != filter.Status {
			continue
		}
		if filter.Type != "" && room.Type != filter.Type {
			continue
		}
		if filter.Block != "" && room.Block != filter.Block {
			continue
		}
		out = append(out, room)
	}

	switch sortBy {
	case "rate":
		sort.Slice(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	case "status":
		sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	}
	return out
}

// GetRoomByID returns one room from the snapshot.
func (s *DeskService) GetRoomByID(id int64) (*models.Room, error) {
	room := s.state.Snapshot().RoomByID(id)
	if room == nil {
		return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, id)
	}
	return room, nil
}

// GetReservations returns every tracked reservation.
func (s *DeskService) GetReservations() []models.Reservation {
	snap := s.state.Snapshot()
	return append([]models.Reservation(nil), snap.Reservations...)
}

// GetActiveReservationForRoom returns the reservation claiming the room,
// or nil.
func (s *DeskService) GetActiveReservationForRoom(roomID int64) *models.Reservation {
	return s.state.Snapshot().ActiveReservationForRoom(roomID)
}

// Reserve books a room. The lifecycle guards and the optimistic local
// commit run as one transition under the state store's write lock, so an
// interleaved reserve on the same room observes this one's effect and is
// rejected. The remote store is deliberately not consulted before commit;
// desks racing through separate engine instances are resolved by
// reconciliation instead.
func (s *DeskService) Reserve(ctx context.Context, res models.Reservation) (*models.Reservation, error) {
	const op = "reserve"

	res.ID = uuid.NewString()
	res.RemoteID = 0
	if res.Status != models.ReservationConfirmed {
		res.Status = models.ReservationReserved
	}
	now := time.Now()
	res.CreatedAt = now
	res.UpdatedAt = now

	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		room := snap.RoomByID(res.RoomID)
		if room == nil {
			return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, res.RoomID)
		}
		if err := lifecycle.ValidateDates(res); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		if err := lifecycle.CanReserve(*room); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		if err := lifecycle.ValidateExclusive(snap.Reservations, res.RoomID, ""); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		return []state.Action{
			{Type: state.ActionAddReservation, Reservation: &res},
			{Type: state.ActionUpdateRoomStatus, RoomID: res.RoomID, Status: models.RoomReserved},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncMutation(op)

	if _, err := s.store.CreateReservation(ctx, &res); err != nil {
		return &res, s.remoteFailed(op, err)
	}
	if _, err := s.state.Dispatch(state.Action{Type: state.ActionConfirmReservationID, ReservationID: res.ID, RemoteID: res.RemoteID}); err != nil {
		s.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("confirm placeholder id")
	}
	if err := s.store.UpdateRoomState(ctx, res.RoomID, models.RoomReserved, ""); err != nil {
		return &res, s.remoteFailed(op, err)
	}

	s.markFresh()
	s.publishRoomStatus(res.RoomID, models.RoomReserved, false)
	return &res, nil
}

// CheckInRoom is a direct walk-in check-in: the room goes occupied with the
// given guest and a directory entry is created remotely.
func (s *DeskService) CheckInRoom(ctx context.Context, roomID int64, guestName, contact string) error {
	const op = "check_in"
	if guestName == "" {
		return fmt.Errorf("%w: check-in requires a guest name", domain.ErrInvalidTransition)
	}

	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		room := snap.RoomByID(roomID)
		if room == nil {
			return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, roomID)
		}
		if err := lifecycle.CanCheckIn(*room); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		return []state.Action{
			{Type: state.ActionUpdateRoomStatus, RoomID: roomID, Status: models.RoomOccupied, Guest: guestName},
		}, nil
	})
	if err != nil {
		return err
	}
	metrics.IncMutation(op)

	guest := models.Guest{Name: guestName, Contact: contact, RoomID: roomID, StayStatus: "checked_in"}
	if _, err := s.store.CreateGuest(ctx, &guest); err != nil {
		return s.remoteFailed(op, err)
	}
	if err := s.store.UpdateRoomState(ctx, roomID, models.RoomOccupied, guestName); err != nil {
		return s.remoteFailed(op, err)
	}

	s.markFresh()
	s.publishCheckIn(roomID, guestName)
	return nil
}

// CheckInReservation converts a reservation to an in-house guest. This is a
// compound operation: create the guest record, delete the reservation,
// occupy the room. The three remote calls are not transactional; a partial
// failure is reported without compensation, and the reconciliation fetch
// that always follows this operation is the recovery mechanism.
func (s *DeskService) CheckInReservation(ctx context.Context, reservationID string) error {
	const op = "check_in_reservation"
	// Compound operation: reconcile regardless of outcome.
	defer s.reconciler.Schedule(op)

	var res models.Reservation
	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		tracked := snap.ReservationByID(reservationID)
		if tracked == nil {
			return nil, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, reservationID)
		}
		if err := lifecycle.CanCheckInReservation(*tracked); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		room := snap.RoomByID(tracked.RoomID)
		if room == nil {
			return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, tracked.RoomID)
		}
		if err := lifecycle.CanCheckIn(*room); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		res = *tracked
		return []state.Action{
			{Type: state.ActionDeleteReservation, ReservationID: tracked.ID},
			{Type: state.ActionUpdateRoomStatus, RoomID: tracked.RoomID, Status: models.RoomOccupied, Guest: tracked.GuestName},
		}, nil
	})
	if err != nil {
		return err
	}
	metrics.IncMutation(op)

	var remoteErrs []error
	guest := models.Guest{Name: res.GuestName, Contact: res.Contact, RoomID: res.RoomID, StayStatus: "checked_in"}
	if _, err := s.store.CreateGuest(ctx, &guest); err != nil {
		remoteErrs = append(remoteErrs, fmt.Errorf("create guest: %w", err))
	}
	if res.RemoteID != 0 {
		if err := s.store.DeleteReservation(ctx, res.RemoteID); err != nil {
			remoteErrs = append(remoteErrs, fmt.Errorf("delete reservation: %w", err))
		}
	} else {
		s.logger.Warn().Str("reservation_id", res.ID).Msg("reservation never synced; nothing to delete remotely")
	}
	if err := s.store.UpdateRoomState(ctx, res.RoomID, models.RoomOccupied, res.GuestName); err != nil {
		remoteErrs = append(remoteErrs, fmt.Errorf("occupy room: %w", err))
	}
	if len(remoteErrs) > 0 {
		return s.remoteFailed(op, errors.Join(remoteErrs...))
	}

	s.markFresh()
	s.publishCheckIn(res.RoomID, res.GuestName)
	return nil
}

// CheckOut vacates an occupied room. If an active reservation is still
// tracked for the room it is closed out as well; when none exists the
// reservation side is a no-op, not an error.
func (s *DeskService) CheckOut(ctx context.Context, roomID int64) error {
	const op = "check_out"

	var active *models.Reservation
	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		room := snap.RoomByID(roomID)
		if room == nil {
			return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, roomID)
		}
		if err := lifecycle.CanCheckOut(*room); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}

		var actions []state.Action
		active = snap.ActiveReservationForRoom(roomID)
		if active != nil {
			actions = append(actions, state.Action{Type: state.ActionDeleteReservation, ReservationID: active.ID})
		}
		actions = append(actions, state.Action{Type: state.ActionUpdateRoomStatus, RoomID: roomID, Status: models.RoomAvailable})
		return actions, nil
	})
	if err != nil {
		return err
	}
	metrics.IncMutation(op)

	if active != nil && active.RemoteID != 0 {
		closed := *active
		closed.Status = models.ReservationCheckedOut
		if err := s.store.UpdateReservation(ctx, closed); err != nil {
			return s.remoteFailed(op, err)
		}
	}
	if err := s.store.UpdateRoomState(ctx, roomID, models.RoomAvailable, ""); err != nil {
		return s.remoteFailed(op, err)
	}

	s.markFresh()
	s.publishRoomStatus(roomID, models.RoomAvailable, false)
	s.publishOccupancy(roomID, models.RoomAvailable, "")
	return nil
}

// CancelReservation cancels a pre-arrival reservation and releases its
// room.
func (s *DeskService) CancelReservation(ctx context.Context, reservationID string) error {
	const op = "cancel_reservation"

	var res models.Reservation
	var releaseRoom bool
	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		tracked := snap.ReservationByID(reservationID)
		if tracked == nil {
			return nil, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, reservationID)
		}
		if err := lifecycle.CanCancel(*tracked); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		res = *tracked

		actions := []state.Action{{Type: state.ActionDeleteReservation, ReservationID: tracked.ID}}
		room := snap.RoomByID(tracked.RoomID)
		releaseRoom = room != nil && room.Status == models.RoomReserved
		if releaseRoom {
			actions = append(actions, state.Action{Type: state.ActionUpdateRoomStatus, RoomID: tracked.RoomID, Status: models.RoomAvailable})
		}
		return actions, nil
	})
	if err != nil {
		return err
	}
	metrics.IncMutation(op)

	if res.RemoteID != 0 {
		if err := s.store.DeleteReservation(ctx, res.RemoteID); err != nil {
			return s.remoteFailed(op, err)
		}
	}
	if releaseRoom {
		if err := s.store.UpdateRoomState(ctx, res.RoomID, models.RoomAvailable, ""); err != nil {
			return s.remoteFailed(op, err)
		}
		s.publishRoomStatus(res.RoomID, models.RoomAvailable, false)
	}

	s.markFresh()
	return nil
}

// UpdateReservation edits guest, date and room fields of a pre-arrival
// reservation. expectedVersion, when non-zero, must match the tracked
// version or the edit is rejected as a stale read. Changing the room
// releases the old one and reserves the new one.
func (s *DeskService) UpdateReservation(ctx context.Context, updated models.Reservation, expectedVersion int64) error {
	const op = "update_reservation"

	var current models.Reservation
	var roomChanged bool
	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		tracked := snap.ReservationByID(updated.ID)
		if tracked == nil {
			return nil, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, updated.ID)
		}
		if err := lifecycle.CanEdit(*tracked); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		if expectedVersion != 0 && tracked.Version != expectedVersion {
			return nil, fmt.Errorf("%w: reservation %s changed from version %d to %d, re-check and retry",
				domain.ErrStaleReadConflict, updated.ID, expectedVersion, tracked.Version)
		}
		if err := lifecycle.ValidateDates(updated); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		current = *tracked

		roomChanged = updated.RoomID != tracked.RoomID
		if roomChanged {
			newRoom := snap.RoomByID(updated.RoomID)
			if newRoom == nil {
				return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, updated.RoomID)
			}
			if err := lifecycle.CanReserve(*newRoom); err != nil {
				metrics.IncGuardRejection(op)
				return nil, err
			}
			if err := lifecycle.ValidateExclusive(snap.Reservations, updated.RoomID, updated.ID); err != nil {
				metrics.IncGuardRejection(op)
				return nil, err
			}
		}

		updated.RemoteID = tracked.RemoteID
		updated.CreatedAt = tracked.CreatedAt
		updated.Version = tracked.Version
		if updated.Status == "" {
			updated.Status = tracked.Status
		}
		if updated.Status != models.ReservationReserved && updated.Status != models.ReservationConfirmed {
			metrics.IncGuardRejection(op)
			return nil, fmt.Errorf("%w: edit cannot move reservation to %s", domain.ErrInvalidTransition, updated.Status)
		}
		updated.UpdatedAt = time.Now()

		actions := []state.Action{{Type: state.ActionUpdateReservation, Reservation: &updated}}
		if roomChanged {
			actions = append(actions,
				state.Action{Type: state.ActionUpdateRoomStatus, RoomID: tracked.RoomID, Status: models.RoomAvailable},
				state.Action{Type: state.ActionUpdateRoomStatus, RoomID: updated.RoomID, Status: models.RoomReserved},
			)
		}
		return actions, nil
	})
	if err != nil {
		return err
	}
	metrics.IncMutation(op)

	if updated.RemoteID != 0 {
		if err := s.store.UpdateReservationWithVersion(ctx, updated, current.Version); err != nil {
			if errors.Is(err, domain.ErrStaleReadConflict) {
				s.markStaleAndSchedule(op)
				return err
			}
			return s.remoteFailed(op, err)
		}
	}
	if roomChanged {
		if err := s.store.UpdateRoomState(ctx, current.RoomID, models.RoomAvailable, ""); err != nil {
			return s.remoteFailed(op, err)
		}
		if err := s.store.UpdateRoomState(ctx, updated.RoomID, models.RoomReserved, ""); err != nil {
			return s.remoteFailed(op, err)
		}
		s.publishRoomStatus(current.RoomID, models.RoomAvailable, false)
		s.publishRoomStatus(updated.RoomID, models.RoomReserved, false)
	}

	s.markFresh()
	return nil
}

// UpdateRoomStatus applies an administrative status change (maintenance,
// cleaning, available). Available always clears the guest; occupied is not
// reachable this way.
func (s *DeskService) UpdateRoomStatus(ctx context.Context, roomID int64, status models.RoomStatus) error {
	const op = "update_room_status"

	_, err := s.state.Apply(func(snap state.Snapshot) ([]state.Action, error) {
		room := snap.RoomByID(roomID)
		if room == nil {
			return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, roomID)
		}
		if err := lifecycle.CanSetStatus(*room, status); err != nil {
			metrics.IncGuardRejection(op)
			return nil, err
		}
		return []state.Action{{Type: state.ActionUpdateRoomStatus, RoomID: roomID, Status: status}}, nil
	})
	if err != nil {
		return err
	}
	metrics.IncMutation(op)

	if err := s.store.UpdateRoomState(ctx, roomID, status, ""); err != nil {
		return s.remoteFailed(op, err)
	}

	s.markFresh()
	s.publishRoomStatus(roomID, status, false)
	return nil
}

// remoteFailed records a failed remote write: the optimistic local state
// stays, the snapshot is marked stale and a fetch is scheduled. The
// original payload is not retried; the user re-issues the action once
// reconciliation shows the true state.
func (s *DeskService) remoteFailed(op string, err error) error {
	metrics.IncRemoteWriteFailure(op)
	s.logger.Error().Err(err).Str("op", op).Msg("remote write failed, optimistic state kept")
	s.markStaleAndSchedule(op)
	return fmt.Errorf("%w: %s: %v", domain.ErrRemoteWriteFailed, op, err)
}

func (s *DeskService) markStaleAndSchedule(op string) {
	if _, err := s.state.Dispatch(state.Action{Type: state.ActionMarkStale}); err != nil {
		s.logger.Warn().Err(err).Msg("mark stale")
	}
	if s.reconciler != nil {
		s.reconciler.Schedule(op)
	}
}

func (s *DeskService) markFresh() {
	if _, err := s.state.Dispatch(state.Action{Type: state.ActionMarkFresh}); err != nil {
		s.logger.Warn().Err(err).Msg("mark fresh")
	}
}

func (s *DeskService) publishRoomStatus(roomID int64, status models.RoomStatus, forceRefresh bool) {
	s.publish(events.EventRoomStatusChanged, events.RoomStatusPayload{
		RoomID: roomID, Status: status, ForceRefresh: forceRefresh,
	})
}

func (s *DeskService) publishCheckIn(roomID int64, guestName string) {
	s.publish(events.EventGuestCheckedIn, events.CheckInPayload{RoomID: roomID, GuestName: guestName})
	s.publishRoomStatus(roomID, models.RoomOccupied, false)
	s.publishOccupancy(roomID, models.RoomOccupied, guestName)
}

func (s *DeskService) publishOccupancy(roomID int64, status models.RoomStatus, guestName string) {
	s.publish(events.EventOccupancyChanged, events.OccupancyPayload{
		RoomID: roomID, Status: status, GuestName: guestName,
	})
}

func (s *DeskService) publish(eventType string, payload interface{}) {
	if s.bus == nil {
		return
	}
	metrics.IncEvent(eventType)
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
