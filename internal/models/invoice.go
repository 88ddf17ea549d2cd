package models

import "time"

// ServiceItem is a single billable extra on an invoice.
type ServiceItem struct {
	Name  string    `json:"name"`
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

// Invoice is the bill for a stay. Nights, RoomTotal, ServiceTotal and
// TotalAmount are derived fields; billing.Recalculate is the only writer,
// so partial totals are never observable. Once Paid, an invoice is
// immutable except for status transitions.
type Invoice struct {
	ID           int64         `json:"id"`
	GuestName    string        `json:"guest_name"`
	RoomID       int64         `json:"room_id"`
	CheckIn      time.Time     `json:"check_in"`
	CheckOut     time.Time     `json:"check_out"`
	Nights       int           `json:"nights"`
	RoomRate     float64       `json:"room_rate"`
	RoomTotal    float64       `json:"room_total"`
	Services     []ServiceItem `json:"services,omitempty"`
	ServiceTotal float64       `json:"service_total"`
	TotalAmount  float64       `json:"total_amount"`
	Status       InvoiceStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
