package lifecycle

import (
	"fmt"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// preArrival reports whether the reservation is still editable, i.e. the
// guest has not arrived and it has not been cancelled.
func preArrival(res models.Reservation) bool {
	return res.Status == models.ReservationReserved || res.Status == models.ReservationConfirmed
}

// CanCheckInReservation requires a pre-arrival reservation.
func CanCheckInReservation(res models.Reservation) error {
	if !preArrival(res) {
		return fmt.Errorf("%w: reservation %s is %s, check-in requires reserved or confirmed", domain.ErrInvalidTransition, res.ID, res.Status)
	}
	return nil
}

// CanCancel requires a pre-arrival reservation; checked-in and checked-out
// stays can no longer be cancelled.
func CanCancel(res models.Reservation) error {
	if !preArrival(res) {
		return fmt.Errorf("%w: reservation %s is %s, cancel requires reserved or confirmed", domain.ErrInvalidTransition, res.ID, res.Status)
	}
	return nil
}

// CanEdit requires a pre-arrival reservation. Guest, date and room fields
// are frozen once the stay begins.
func CanEdit(res models.Reservation) error {
	if !preArrival(res) {
		return fmt.Errorf("%w: reservation %s is %s, edits require reserved or confirmed", domain.ErrInvalidTransition, res.ID, res.Status)
	}
	return nil
}

// ValidateDates rejects reservations whose check-out does not follow
// check-in.
func ValidateDates(res models.Reservation) error {
	if res.CheckOut.IsZero() || res.CheckIn.IsZero() {
		return fmt.Errorf("%w: reservation requires check-in and check-out dates", domain.ErrInvalidTransition)
	}
	if !res.CheckOut.After(res.CheckIn) {
		return fmt.Errorf("%w: check-out must be after check-in", domain.ErrInvalidTransition)
	}
	return nil
}

// ValidateExclusive enforces the one-active-reservation-per-room rule
// against a reservation list, ignoring the reservation identified by
// exceptID (so edits do not conflict with themselves).
func ValidateExclusive(reservations []models.Reservation, roomID int64, exceptID string) error {
	for i := range reservations {
		r := &reservations[i]
		if r.RoomID == roomID && r.Active() && r.ID != exceptID {
			return fmt.Errorf("%w: room %d already has active reservation %s", domain.ErrInvalidTransition, roomID, r.ID)
		}
	}
	return nil
}
