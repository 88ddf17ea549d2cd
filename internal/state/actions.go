package state

import (
	"time"

	"frontdesk/internal/models"
)

// ActionType tags a state transition. All snapshot mutation goes through
// Reduce with one of these tags; nothing patches snapshot fields directly.
type ActionType string

const (
	ActionReplaceAll           ActionType = "REPLACE_ALL"
	ActionMarkStale            ActionType = "MARK_STALE"
	ActionMarkFresh            ActionType = "MARK_FRESH"
	ActionUpdateRoomStatus     ActionType = "UPDATE_ROOM_STATUS"
	ActionAddReservation       ActionType = "ADD_RESERVATION"
	ActionUpdateReservation    ActionType = "UPDATE_RESERVATION"
	ActionDeleteReservation    ActionType = "DELETE_RESERVATION"
	ActionConfirmReservationID ActionType = "CONFIRM_RESERVATION_ID"
)

// Action carries the payload for one transition. Only the fields relevant
// to the tag are read.
type Action struct {
	Type ActionType

	// ReplaceAll
	Rooms        []models.Room
	Reservations []models.Reservation
	FetchedAt    time.Time

	// UpdateRoomStatus
	RoomID int64
	Status models.RoomStatus
	Guest  string

	// AddReservation / UpdateReservation
	Reservation *models.Reservation

	// DeleteReservation / ConfirmReservationID
	ReservationID string
	RemoteID      int64
}
