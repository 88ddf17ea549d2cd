package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
)

// ListInvoices returns every invoice with its service line-items.
func (db *DB) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	query := `SELECT id, guest_name, room_id, check_in, check_out, nights, room_rate,
                     room_total, services, service_total, total_amount, status,
                     created_at, updated_at
              FROM invoices ORDER BY created_at`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var services sql.NullString
		var status string
		err := rows.Scan(&inv.ID, &inv.GuestName, &inv.RoomID, &inv.CheckIn, &inv.CheckOut,
			&inv.Nights, &inv.RoomRate, &inv.RoomTotal, &services, &inv.ServiceTotal,
			&inv.TotalAmount, &status, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		if services.String != "" {
			if err := json.Unmarshal([]byte(services.String), &inv.Services); err != nil {
				return nil, fmt.Errorf("decode services for invoice %d: %w", inv.ID, err)
			}
		}
		inv.Status = models.InvoiceStatus(status)
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// CreateInvoice inserts the invoice and returns its id.
func (db *DB) CreateInvoice(ctx context.Context, inv *models.Invoice) (int64, error) {
	services, err := json.Marshal(inv.Services)
	if err != nil {
		return 0, fmt.Errorf("encode services: %w", err)
	}

	query := `INSERT INTO invoices (
                guest_name, room_id, check_in, check_out, nights, room_rate,
                room_total, services, service_total, total_amount, status,
                created_at, updated_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query,
		inv.GuestName, inv.RoomID, inv.CheckIn, inv.CheckOut, inv.Nights, inv.RoomRate,
		inv.RoomTotal, string(services), inv.ServiceTotal, inv.TotalAmount,
		string(inv.Status), now, now)
	if err != nil {
		return 0, fmt.Errorf("create invoice: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create invoice: %w", err)
	}
	inv.ID = id
	db.notify(ctx, domain.CollectionInvoices)
	return id, nil
}

// UpdateInvoice rewrites the invoice row including derived totals.
func (db *DB) UpdateInvoice(ctx context.Context, inv models.Invoice) error {
	services, err := json.Marshal(inv.Services)
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}

	query := `UPDATE invoices SET
                guest_name = ?, room_id = ?, check_in = ?, check_out = ?, nights = ?,
                room_rate = ?, room_total = ?, services = ?, service_total = ?,
                total_amount = ?, status = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query,
		inv.GuestName, inv.RoomID, inv.CheckIn, inv.CheckOut, inv.Nights,
		inv.RoomRate, inv.RoomTotal, string(services), inv.ServiceTotal,
		inv.TotalAmount, string(inv.Status), time.Now(), inv.ID)
	if err != nil {
		return fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: invoice %d", domain.ErrNotFound, inv.ID)
	}
	db.notify(ctx, domain.CollectionInvoices)
	return nil
}
