package billing

import (
	"sync"

	"frontdesk/internal/models"
)

// RevenueTracker maintains the running sum of paid invoice totals. The
// transition rule keeps it equal to Σ TotalAmount over invoices whose
// status is paid: entering paid adds the total, leaving paid subtracts it,
// every other transition is neutral.
type RevenueTracker struct {
	mu    sync.Mutex
	total float64

	// onChange, when set, is called with the new total after every
	// adjustment. Used to publish revenue_changed and update the gauge.
	onChange func(total float64)
}

// NewRevenueTracker builds a tracker starting at zero. onChange may be nil.
func NewRevenueTracker(onChange func(total float64)) *RevenueTracker {
	return &RevenueTracker{onChange: onChange}
}

// ApplyTransition adjusts the aggregate for one invoice status change.
// Returns the delta applied.
func (t *RevenueTracker) ApplyTransition(from, to models.InvoiceStatus, totalAmount float64) float64 {
	var delta float64
	switch {
	case from != models.InvoicePaid && to == models.InvoicePaid:
		delta = totalAmount
	case from == models.InvoicePaid && to != models.InvoicePaid:
		delta = -totalAmount
	default:
		return 0
	}

	t.mu.Lock()
	t.total += delta
	total := t.total
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(total)
	}
	return delta
}

// Add shifts the aggregate by amount. Exposed for the revenue-stats surface
// that patches the displayed figure directly.
func (t *RevenueTracker) Add(amount float64) float64 {
	t.mu.Lock()
	t.total += amount
	total := t.total
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(total)
	}
	return total
}

// Reset replaces the aggregate, typically after recomputing it from the
// full invoice set during reconciliation.
func (t *RevenueTracker) Reset(total float64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(total)
	}
}

// Total returns the current aggregate.
func (t *RevenueTracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// SumPaid recomputes the aggregate from scratch; reconciliation uses it to
// reset the tracker from the authoritative invoice set.
func SumPaid(invoices []models.Invoice) float64 {
	var total float64
	for i := range invoices {
		if invoices[i].Status == models.InvoicePaid {
			total += invoices[i].TotalAmount
		}
	}
	return total
}
