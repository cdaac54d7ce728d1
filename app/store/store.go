// Package store persists users, daily usage, billing mirrors and history
// through database/sql. Postgres is the production driver; SQLite serves
// local runs and tests. Queries stick to the subset both dialects accept.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a versioned write lost to another writer.
	ErrConflict = errors.New("version conflict")
)

// Store is the SQL-backed repository for every remote table.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects and pings the configured database.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	d, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if driver == "sqlite" {
		// a second connection to ":memory:" would see an empty database
		d.SetMaxOpenConns(1)
	}
	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return &Store{db: d, driver: driver}, nil
}

// New wraps an existing handle.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Driver() string { return s.driver }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		email       TEXT NOT NULL DEFAULT '',
		name        TEXT NOT NULL DEFAULT '',
		last_login  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS usage_daily (
		user_id           TEXT NOT NULL,
		usage_date        TEXT NOT NULL,
		total_operations  INTEGER NOT NULL DEFAULT 0,
		operation_counts  TEXT NOT NULL DEFAULT '{}',
		updated_at        BIGINT NOT NULL,
		version           BIGINT NOT NULL DEFAULT 1,
		PRIMARY KEY (user_id, usage_date)
	)`,
	`CREATE TABLE IF NOT EXISTS billing_customers (
		user_id      TEXT PRIMARY KEY,
		customer_id  TEXT NOT NULL UNIQUE,
		created_at   BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS billing_subscriptions (
		subscription_id     TEXT PRIMARY KEY,
		customer_id         TEXT NOT NULL,
		price_id            TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL,
		current_period_end  BIGINT NOT NULL DEFAULT 0,
		updated_at          BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS billing_subscriptions_customer_idx
		ON billing_subscriptions (customer_id)`,
	`CREATE TABLE IF NOT EXISTS history_entries (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		entry_type       TEXT NOT NULL,
		original_text    TEXT NOT NULL,
		result_text      TEXT NOT NULL,
		mode             TEXT NOT NULL DEFAULT '',
		source_language  TEXT NOT NULL DEFAULT '',
		target_language  TEXT NOT NULL DEFAULT '',
		quality          DOUBLE PRECISION NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS history_entries_user_type_idx
		ON history_entries (user_id, entry_type, created_at)`,
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
