package models

// RoomStatus is the closed set of room occupancy states.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomReserved    RoomStatus = "reserved"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
	RoomCleaning    RoomStatus = "cleaning"
)

// ValidRoomStatus reports whether s is a known room status.
func ValidRoomStatus(s RoomStatus) bool {
	switch s {
	case RoomAvailable, RoomReserved, RoomOccupied, RoomMaintenance, RoomCleaning:
		return true
	}
	return false
}

// ReservationStatus is the closed set of reservation states.
type ReservationStatus string

const (
	ReservationReserved   ReservationStatus = "reserved"
	ReservationConfirmed  ReservationStatus = "confirmed"
	ReservationCheckedIn  ReservationStatus = "checked_in"
	ReservationCheckedOut ReservationStatus = "checked_out"
	ReservationCancelled  ReservationStatus = "cancelled"
)

// ActiveReservationStatus reports whether a reservation in status s still
// lays claim to its room.
func ActiveReservationStatus(s ReservationStatus) bool {
	switch s {
	case ReservationReserved, ReservationConfirmed, ReservationCheckedIn:
		return true
	}
	return false
}

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceRefunded  InvoiceStatus = "refunded"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

const (
	// DefaultPollIntervalSeconds bounds staleness when change
	// notifications are missed.
	DefaultPollIntervalSeconds = 60

	// DefaultDebounceMillis coalesces reconciliation triggers.
	DefaultDebounceMillis = 250

	// RateLimitRPS and RateLimitBurst are the HTTP API defaults.
	RateLimitRPS   = 10
	RateLimitBurst = 20
)
