package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// ListGuests returns the guest directory.
func (db *DB) ListGuests(ctx context.Context) ([]models.Guest, error) {
	query := `SELECT id, name, contact, room_id, stay_status, tags, created_at, updated_at
              FROM guests ORDER BY name`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()

	var out []models.Guest
	for rows.Next() {
		var g models.Guest
		var contact, tags sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &contact, &g.RoomID, &g.StayStatus,
			&tags, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan guest: %w", err)
		}
		g.Contact = contact.String
		if tags.String != "" {
			g.Tags = strings.Split(tags.String, ",")
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return out, nil
}

// CreateGuest inserts a directory entry and returns its id.
func (db *DB) CreateGuest(ctx context.Context, guest *models.Guest) (int64, error) {
	query := `INSERT INTO guests (name, contact, room_id, stay_status, tags, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query,
		guest.Name, guest.Contact, guest.RoomID, guest.StayStatus,
		strings.Join(guest.Tags, ","), now, now)
	if err != nil {
		return 0, fmt.Errorf("create guest: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create guest: %w", err)
	}
	guest.ID = id
	db.notify(ctx, domain.CollectionGuests)
	return id, nil
}

// UpdateGuest rewrites a directory entry.
func (db *DB) UpdateGuest(ctx context.Context, guest models.Guest) error {
	query := `UPDATE guests SET name = ?, contact = ?, room_id = ?, stay_status = ?,
                tags = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query,
		guest.Name, guest.Contact, guest.RoomID, guest.StayStatus,
		strings.Join(guest.Tags, ","), time.Now(), guest.ID)
	if err != nil {
		return fmt.Errorf("update guest %d: %w", guest.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update guest %d: %w", guest.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: guest %d", domain.ErrNotFound, guest.ID)
	}
	db.notify(ctx, domain.CollectionGuests)
	return nil
}
