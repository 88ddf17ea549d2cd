package models

import "time"

// Room is a physical room in inventory. Rooms are provisioned once from
// configuration and never deleted by the engine; only their status and
// occupying guest change.
//
// Invariant: Guest != "" exactly when Status == RoomOccupied.
type Room struct {
	ID        int64      `json:"id" yaml:"id"`
	Number    string     `json:"number" yaml:"number"`
	Name      string     `json:"name" yaml:"name"`
	Type      string     `json:"type" yaml:"type"`
	Rate      float64    `json:"rate" yaml:"rate"`
	Capacity  int        `json:"capacity" yaml:"capacity"`
	Block     string     `json:"block" yaml:"block"`
	Status    RoomStatus `json:"status" yaml:"status"`
	Guest     string     `json:"guest,omitempty" yaml:"guest,omitempty"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// Occupied reports whether a guest is present.
func (r Room) Occupied() bool {
	return r.Guest != ""
}
