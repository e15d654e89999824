// Package store provides the SQLite-backed record store for the activity
// pipeline: activities, buildings, citizens, contracts, and the fee ledger.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps a SQLite connection for world record storage.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer; keeping a single connection avoids
	// SQLITE_BUSY between the pool and an open transaction.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// DB exposes the underlying connection for read paths outside a transaction.
func (s *Store) DB() *sqlx.DB {
	return s.conn
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) WithTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		citizen TEXT NOT NULL,
		from_building TEXT,
		to_building TEXT,
		transporter TEXT,
		path_json TEXT NOT NULL DEFAULT '',
		resources_json TEXT NOT NULL DEFAULT '',
		contract_id TEXT,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'created',
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resource_stacks (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		holder_id TEXT NOT NULL,
		holder_kind TEXT NOT NULL,
		owner TEXT NOT NULL,
		count INTEGER NOT NULL CHECK (count > 0)
	);

	CREATE TABLE IF NOT EXISTS buildings (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		operator TEXT NOT NULL DEFAULT '',
		position_json TEXT NOT NULL DEFAULT '',
		storage_capacity INTEGER NOT NULL DEFAULT 0,
		construction_minutes_remaining INTEGER NOT NULL DEFAULT 0,
		is_constructed INTEGER NOT NULL DEFAULT 1,
		arrives_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS citizens (
		username TEXT PRIMARY KEY,
		ducats TEXT NOT NULL DEFAULT '0',
		influence INTEGER NOT NULL DEFAULT 0,
		position_json TEXT NOT NULL DEFAULT '',
		carry_capacity INTEGER NOT NULL DEFAULT 0,
		in_venice INTEGER NOT NULL DEFAULT 1,
		ate_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL DEFAULT '',
		buyer TEXT NOT NULL,
		seller TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		price_per_resource TEXT NOT NULL DEFAULT '0',
		target_amount INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		last_executed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		buyer TEXT NOT NULL,
		seller TEXT NOT NULL,
		price TEXT NOT NULL,
		asset TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		executed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activities_due ON activities(status, end_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_stacks_key
		ON resource_stacks(type, holder_id, holder_kind, owner);
	CREATE INDEX IF NOT EXISTS idx_stacks_holder ON resource_stacks(holder_id, holder_kind);
	CREATE INDEX IF NOT EXISTS idx_buildings_arrival ON buildings(is_constructed, arrives_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// notFound maps sql.ErrNoRows onto the store's lookup error.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return err
}
