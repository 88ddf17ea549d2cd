package lifecycle

import (
	"fmt"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// Room transition guards. Each guard is evaluated against a snapshot value
// before the corresponding optimistic write is applied; a rejection here
// means the operation had no side effects at all.

// CanReserve allows Available → Reserved.
func CanReserve(room models.Room) error {
	if room.Status != models.RoomAvailable {
		return fmt.Errorf("%w: room %d is %s, reserve requires available", domain.ErrInvalidTransition, room.ID, room.Status)
	}
	return nil
}

// CanCheckIn allows {Available, Reserved} → Occupied.
func CanCheckIn(room models.Room) error {
	switch room.Status {
	case models.RoomAvailable, models.RoomReserved:
		return nil
	}
	return fmt.Errorf("%w: room %d is %s, check-in requires available or reserved", domain.ErrInvalidTransition, room.ID, room.Status)
}

// CanCheckOut allows Occupied → Available.
func CanCheckOut(room models.Room) error {
	if room.Status != models.RoomOccupied {
		return fmt.Errorf("%w: room %d is %s, check-out requires occupied", domain.ErrInvalidTransition, room.ID, room.Status)
	}
	return nil
}

// CanSetStatus covers the administrative transitions: maintenance,
// cleaning and available are reachable from any state. Occupied cannot be
// entered this way; it is only reachable through check-in, which supplies
// the guest.
func CanSetStatus(room models.Room, status models.RoomStatus) error {
	if !models.ValidRoomStatus(status) {
		return fmt.Errorf("%w: unknown room status %q", domain.ErrInvalidTransition, status)
	}
	if status == models.RoomOccupied {
		return fmt.Errorf("%w: room %d cannot be set occupied directly, use check-in", domain.ErrInvalidTransition, room.ID)
	}
	return nil
}
