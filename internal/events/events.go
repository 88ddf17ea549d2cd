package events

import (
	"encoding/json"
	"sync"
	"time"

	"frontdesk/internal/models"
)

// The closed set of domain events broadcast to UI surfaces. Handlers must
// be idempotent: the change feed and the write coordinator can both emit
// overlapping events for the same underlying change.
const (
	EventRoomStatusChanged = "room_status_changed"
	EventGuestCheckedIn    = "guest_checked_in"
	EventOccupancyChanged  = "occupancy_changed"
	EventRevenueChanged    = "revenue_changed"
)

// RoomStatusPayload accompanies room_status_changed.
type RoomStatusPayload struct {
	RoomID       int64             `json:"room_id"`
	Status       models.RoomStatus `json:"status"`
	ForceRefresh bool              `json:"force_refresh,omitempty"`
}

// CheckInPayload accompanies guest_checked_in.
type CheckInPayload struct {
	RoomID    int64  `json:"room_id"`
	GuestName string `json:"guest_name"`
}

// OccupancyPayload accompanies occupancy_changed.
type OccupancyPayload struct {
	RoomID       int64             `json:"room_id"`
	Status       models.RoomStatus `json:"status"`
	GuestName    string            `json:"guest_name,omitempty"`
	ForceRefresh bool              `json:"force_refresh,omitempty"`
}

// RevenuePayload accompanies revenue_changed.
type RevenuePayload struct {
	Amount float64 `json:"amount"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for domain events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
