// Package sqlite implements the repository interfaces on SQLite via the
// pure-Go modernc.org/sqlite driver (no CGo, single-file deployments).
//
// All the cross-request guarantees the voting engine needs (one-way status
// transitions, the has-voted compare-and-set, the vote tally increment)
// are enforced here with conditional UPDATEs and transactions rather than
// in-process locks, so they hold even with multiple server processes
// sharing the database file.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB pool and implements every repository interface. One DB
// value is shared by all services; the server owns its lifecycle.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// A single pooled connection: SQLite allows one writer at a time anyway,
	// and a second pooled connection to ":memory:" would silently get its
	// own empty database. Concurrent requests queue at the pool instead of
	// surfacing SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. The server defers this on shutdown so
// the WAL is flushed and the file lock released.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id               TEXT PRIMARY KEY,
			code             TEXT NOT NULL UNIQUE,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			max_participants INTEGER NOT NULL DEFAULT 0,
			creator_id       TEXT NOT NULL REFERENCES users(id),
			status           TEXT NOT NULL DEFAULT 'lobby',
			tiebreaker       TEXT NOT NULL DEFAULT '',
			final_decision   TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			resolved_at      DATETIME
		);
	`)
	if err != nil {
		return fmt.Errorf("creating rooms table: %w", err)
	}

	// Options and participants belong to exactly one room; ON DELETE CASCADE
	// keeps the ownership contract even though no current operation deletes
	// rooms.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS options (
			id         TEXT PRIMARY KEY,
			room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			text       TEXT NOT NULL,
			created_by TEXT NOT NULL REFERENCES users(id),
			votes      INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_options_room_id ON options(room_id);
	`)
	if err != nil {
		return fmt.Errorf("creating options table: %w", err)
	}

	// UNIQUE(room_id, user_id) backs the idempotent-join contract.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS participants (
			id        TEXT PRIMARY KEY,
			room_id   TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			user_id   TEXT NOT NULL REFERENCES users(id),
			has_voted INTEGER NOT NULL DEFAULT 0,
			joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(room_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_participants_room_id ON participants(room_id);
		CREATE INDEX IF NOT EXISTS idx_participants_user_id ON participants(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating participants table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. modernc.org/sqlite doesn't export a typed error for this, so we
// match on the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
