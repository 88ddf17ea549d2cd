package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"frontdesk/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the authoritative remote store for all four collections. Several
// front-desk clients and background jobs share it; after every successful
// write it signals the change feed so the other clients re-fetch.
type DB struct {
	db     *sql.DB
	feed   domain.ChangeFeed
	logger *zerolog.Logger
}

// Open creates the database file (and its directory) if needed and applies
// the schema. feed may be nil when change signalling is not wanted.
func Open(path string, feed domain.ChangeFeed, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("store initialized")
	return &DB{db: db, feed: feed, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY,
            number TEXT NOT NULL,
            name TEXT NOT NULL,
            type TEXT NOT NULL,
            rate REAL NOT NULL DEFAULT 0,
            capacity INTEGER NOT NULL DEFAULT 1,
            block TEXT,
            status TEXT NOT NULL DEFAULT 'available',
            guest TEXT NOT NULL DEFAULT '',
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            client_id TEXT NOT NULL DEFAULT '',
            room_id INTEGER NOT NULL,
            guest_name TEXT NOT NULL,
            contact TEXT,
            check_in DATETIME NOT NULL,
            check_out DATETIME NOT NULL,
            adults INTEGER NOT NULL DEFAULT 1,
            children INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'reserved',
            payment_method TEXT,
            requests TEXT,
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS guests (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            contact TEXT,
            room_id INTEGER NOT NULL DEFAULT 0,
            stay_status TEXT NOT NULL DEFAULT 'checked_in',
            tags TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS invoices (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            guest_name TEXT NOT NULL,
            room_id INTEGER NOT NULL,
            check_in DATETIME NOT NULL,
            check_out DATETIME NOT NULL,
            nights INTEGER NOT NULL DEFAULT 1,
            room_rate REAL NOT NULL DEFAULT 0,
            room_total REAL NOT NULL DEFAULT 0,
            services TEXT,
            service_total REAL NOT NULL DEFAULT 0,
            total_amount REAL NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room ON reservations(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec %q: %w", query[:40], err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// notify signals the change feed that a collection changed. Failures are
// logged and swallowed: the polling fallback covers missed signals.
func (db *DB) notify(ctx context.Context, collection string) {
	if db.feed == nil {
		return
	}
	if err := db.feed.Publish(ctx, collection); err != nil {
		db.logger.Warn().Err(err).Str("collection", collection).Msg("change feed publish failed")
	}
}
