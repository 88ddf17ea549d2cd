package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// ListReservations returns every reservation row. The engine-side key is
// the client id written at creation time, so reconciliation preserves the
// ids local surfaces already hold; rows created by clients that never sent
// one fall back to the server id.
func (db *DB) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	query := `SELECT id, client_id, room_id, guest_name, contact, check_in, check_out,
                     adults, children, status, payment_method, requests, version,
                     created_at, updated_at
              FROM reservations ORDER BY check_in`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		var res models.Reservation
		var clientID, contact, payment, requests sql.NullString
		var status string
		err := rows.Scan(&res.RemoteID, &clientID, &res.RoomID, &res.GuestName, &contact,
			&res.CheckIn, &res.CheckOut, &res.Adults, &res.Children, &status,
			&payment, &requests, &res.Version, &res.CreatedAt, &res.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.ID = clientID.String
		if res.ID == "" {
			res.ID = strconv.FormatInt(res.RemoteID, 10)
		}
		res.Contact = contact.String
		res.PaymentMethod = payment.String
		res.Requests = requests.String
		res.Status = models.ReservationStatus(status)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// CreateReservation inserts the reservation and returns the server id.
func (db *DB) CreateReservation(ctx context.Context, res *models.Reservation) (int64, error) {
	query := `INSERT INTO reservations (
                client_id, room_id, guest_name, contact, check_in, check_out,
                adults, children, status, payment_method, requests, version,
                created_at, updated_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query,
		res.ID, res.RoomID, res.GuestName, res.Contact, res.CheckIn, res.CheckOut,
		res.Adults, res.Children, string(res.Status), res.PaymentMethod, res.Requests,
		1, now, now)
	if err != nil {
		return 0, fmt.Errorf("create reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create reservation: %w", err)
	}
	res.RemoteID = id
	res.Version = 1
	db.notify(ctx, domain.CollectionReservations)
	return id, nil
}

// UpdateReservation writes the mutable reservation fields without a
// version precondition, bumping the version column.
func (db *DB) UpdateReservation(ctx context.Context, res models.Reservation) error {
	query := `UPDATE reservations SET
                room_id = ?, guest_name = ?, contact = ?, check_in = ?, check_out = ?,
                adults = ?, children = ?, status = ?, payment_method = ?, requests = ?,
                version = version + 1, updated_at = ?
              WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query,
		res.RoomID, res.GuestName, res.Contact, res.CheckIn, res.CheckOut,
		res.Adults, res.Children, string(res.Status), res.PaymentMethod, res.Requests,
		time.Now(), res.RemoteID)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", res.RemoteID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", res.RemoteID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: reservation %d", domain.ErrNotFound, res.RemoteID)
	}
	db.notify(ctx, domain.CollectionReservations)
	return nil
}

// UpdateReservationWithVersion is the guarded variant: the write only lands
// when the row still carries the expected version, otherwise the caller
// raced another client and gets domain.ErrStaleReadConflict.
func (db *DB) UpdateReservationWithVersion(ctx context.Context, res models.Reservation, version int64) error {
	query := `UPDATE reservations SET
                room_id = ?, guest_name = ?, contact = ?, check_in = ?, check_out = ?,
                adults = ?, children = ?, status = ?, payment_method = ?, requests = ?,
                version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.db.ExecContext(ctx, query,
		res.RoomID, res.GuestName, res.Contact, res.CheckIn, res.CheckOut,
		res.Adults, res.Children, string(res.Status), res.PaymentMethod, res.Requests,
		time.Now(), res.RemoteID, version)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", res.RemoteID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", res.RemoteID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: reservation %d at version %d", domain.ErrStaleReadConflict, res.RemoteID, version)
	}
	db.notify(ctx, domain.CollectionReservations)
	return nil
}

// DeleteReservation removes the row. Cancellation and conversion to a
// checked-in guest both end here; deleting an already-gone row is not an
// error, since at-least-once signalling means a second client may have
// removed it first.
func (db *DB) DeleteReservation(ctx context.Context, remoteID int64) error {
	result, err := db.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, remoteID)
	if err != nil {
		return fmt.Errorf("delete reservation %d: %w", remoteID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		db.notify(ctx, domain.CollectionReservations)
	}
	return nil
}
