package billing

import (
	"fmt"
	"math"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// Nights returns the billable night count for a stay: the day span between
// check-in and check-out rounded up, never less than one.
func Nights(checkIn, checkOut time.Time) int {
	hours := checkOut.Sub(checkIn).Hours()
	nights := int(math.Ceil(hours / 24))
	if nights < 1 {
		nights = 1
	}
	return nights
}

// Recalculate rewrites every derived field of the invoice from its inputs.
// It is the only writer of Nights, RoomTotal, ServiceTotal and TotalAmount,
// so callers never observe partial totals.
func Recalculate(inv *models.Invoice) {
	inv.Nights = Nights(inv.CheckIn, inv.CheckOut)
	inv.RoomTotal = inv.RoomRate * float64(inv.Nights)

	var serviceTotal float64
	for _, item := range inv.Services {
		serviceTotal += item.Price
	}
	inv.ServiceTotal = serviceTotal
	inv.TotalAmount = inv.RoomTotal + inv.ServiceTotal
}

// ValidateStatusTransition enforces the invoice payment machine:
// pending may become paid or cancelled, paid may become refunded or
// cancelled; refunded and cancelled are terminal.
func ValidateStatusTransition(from, to models.InvoiceStatus) error {
	if from == to {
		return nil
	}
	switch from {
	case models.InvoicePending:
		if to == models.InvoicePaid || to == models.InvoiceCancelled {
			return nil
		}
	case models.InvoicePaid:
		if to == models.InvoiceRefunded || to == models.InvoiceCancelled {
			return nil
		}
	}
	return fmt.Errorf("%w: invoice cannot move from %s to %s", domain.ErrInvalidTransition, from, to)
}
