package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// ListRooms returns the full room inventory ordered by room number.
func (db *DB) ListRooms(ctx context.Context) ([]models.Room, error) {
	query := `SELECT id, number, name, type, rate, capacity, block, status, guest, updated_at
              FROM rooms ORDER BY number`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return out, nil
}

// GetRoom returns a single room or domain.ErrNotFound.
func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	query := `SELECT id, number, name, type, rate, capacity, block, status, guest, updated_at
              FROM rooms WHERE id = ?`
	row := db.db.QueryRowContext(ctx, query, id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// UpsertRoom inserts or replaces a room row. Used at provisioning time to
// sync the configured inventory into the store.
func (db *DB) UpsertRoom(ctx context.Context, room models.Room) error {
	query := `INSERT INTO rooms (id, number, name, type, rate, capacity, block, status, guest, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                number = excluded.number,
                name = excluded.name,
                type = excluded.type,
                rate = excluded.rate,
                capacity = excluded.capacity,
                block = excluded.block`
	status := room.Status
	if status == "" {
		status = models.RoomAvailable
	}
	_, err := db.db.ExecContext(ctx, query,
		room.ID, room.Number, room.Name, room.Type, room.Rate,
		room.Capacity, room.Block, string(status), room.Guest, time.Now())
	if err != nil {
		return fmt.Errorf("upsert room %d: %w", room.ID, err)
	}
	db.notify(ctx, domain.CollectionRooms)
	return nil
}

// UpdateRoomState writes the status and guest columns of one room.
func (db *DB) UpdateRoomState(ctx context.Context, id int64, status models.RoomStatus, guest string) error {
	query := `UPDATE rooms SET status = ?, guest = ?, updated_at = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, string(status), guest, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update room %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update room %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: room %d", domain.ErrNotFound, id)
	}
	db.notify(ctx, domain.CollectionRooms)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (models.Room, error) {
	var room models.Room
	var block, guest sql.NullString
	var status string
	err := row.Scan(&room.ID, &room.Number, &room.Name, &room.Type, &room.Rate,
		&room.Capacity, &block, &status, &guest, &room.UpdatedAt)
	if err != nil {
		return models.Room{}, err
	}
	room.Block = block.String
	room.Guest = guest.String
	room.Status = models.RoomStatus(status)
	return room, nil
}
