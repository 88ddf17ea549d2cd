package domain

import (
	"context"

	"frontdesk/internal/models"
)

// Collection names used by the remote store and the change feed.
const (
	CollectionRooms        = "rooms"
	CollectionReservations = "reservations"
	CollectionGuests       = "guests"
	CollectionInvoices     = "invoices"
)

// RemoteStore is the authoritative backend for all four collections. It can
// change underneath the engine from other clients and background jobs; the
// engine treats it as the single source of truth during reconciliation.
type RemoteStore interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	UpsertRoom(ctx context.Context, room models.Room) error
	UpdateRoomState(ctx context.Context, id int64, status models.RoomStatus, guest string) error

	ListReservations(ctx context.Context) ([]models.Reservation, error)
	CreateReservation(ctx context.Context, res *models.Reservation) (int64, error)
	UpdateReservation(ctx context.Context, res models.Reservation) error
	UpdateReservationWithVersion(ctx context.Context, res models.Reservation, version int64) error
	DeleteReservation(ctx context.Context, remoteID int64) error

	ListGuests(ctx context.Context) ([]models.Guest, error)
	CreateGuest(ctx context.Context, guest *models.Guest) (int64, error)
	UpdateGuest(ctx context.Context, guest models.Guest) error

	ListInvoices(ctx context.Context) ([]models.Invoice, error)
	CreateInvoice(ctx context.Context, inv *models.Invoice) (int64, error)
	UpdateInvoice(ctx context.Context, inv models.Invoice) error
}

// ChangeFeed is a push subscription per collection. Signals mean only
// "something changed, re-fetch": delivery is at-least-once, unordered, and
// carries no payload.
type ChangeFeed interface {
	Publish(ctx context.Context, collection string) error
	Subscribe(ctx context.Context, collections ...string) (<-chan string, error)
	Close() error
}

// EventPublisher broadcasts domain events to UI surfaces.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReconcileScheduler requests a debounced full re-fetch of the snapshot.
type ReconcileScheduler interface {
	Schedule(reason string)
}
