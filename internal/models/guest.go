package models

import "time"

// Guest is a directory entry for a person staying (or having stayed) at the
// hotel, distinct from any reservation. Created when a reservation converts
// to a check-in or on direct walk-in check-in.
type Guest struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Contact    string    `json:"contact"`
	RoomID     int64     `json:"room_id,omitempty"` // 0 when not in house
	StayStatus string    `json:"stay_status"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
