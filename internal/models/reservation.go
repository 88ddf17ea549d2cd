package models

import "time"

// Reservation is a booking for a future or current stay.
//
// ID is the engine's key: a locally generated placeholder until the remote
// store assigns RemoteID on the first successful write, after which the two
// are linked. Version increments on every remote update and backs the
// stale-read conflict check.
type Reservation struct {
	ID            string            `json:"id"`
	RemoteID      int64             `json:"remote_id,omitempty"`
	RoomID        int64             `json:"room_id"`
	GuestName     string            `json:"guest_name"`
	Contact       string            `json:"contact"`
	CheckIn       time.Time         `json:"check_in"`
	CheckOut      time.Time         `json:"check_out"`
	Adults        int               `json:"adults"`
	Children      int               `json:"children"`
	Status        ReservationStatus `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	Requests      string            `json:"requests,omitempty"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Active reports whether the reservation still claims its room.
func (r Reservation) Active() bool {
	return ActiveReservationStatus(r.Status)
}
