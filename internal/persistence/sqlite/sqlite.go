// Package sqlite implements the persistence repositories on top of SQLite via
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/team-channel/internal/persistence"
	_ "modernc.org/sqlite"
)

// Store owns the database handle and implements the persistence repositories.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database identified by dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite supports one writer; a single connection avoids busy errors from
	// the driver-level pool and makes write transactions serialize naturally.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id TEXT NOT NULL REFERENCES teams(id),
	user_id TEXT NOT NULL REFERENCES users(id),
	role    TEXT NOT NULL CHECK (role IN ('leader', 'member')),
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS schedules (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL DEFAULT '',
	start_datetime TEXT NOT NULL,
	end_datetime   TEXT NOT NULL,
	schedule_type  TEXT NOT NULL CHECK (schedule_type IN ('personal', 'team')),
	creator_id     TEXT NOT NULL,
	team_id        TEXT,
	CHECK (start_datetime < end_datetime)
);

CREATE TABLE IF NOT EXISTS schedule_participants (
	schedule_id          INTEGER NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	user_id              TEXT NOT NULL,
	participation_status TEXT NOT NULL CHECK (participation_status IN ('confirmed', 'pending', 'declined')),
	PRIMARY KEY (schedule_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	team_id             TEXT NOT NULL,
	sender_id           TEXT NOT NULL,
	content             TEXT NOT NULL CHECK (length(content) BETWEEN 1 AND 500),
	target_date         TEXT NOT NULL,
	message_type        TEXT NOT NULL CHECK (message_type IN ('normal', 'schedule_request', 'schedule_approved', 'schedule_rejected')),
	related_schedule_id INTEGER REFERENCES schedules(id),
	related_request_id  INTEGER REFERENCES messages(id),
	requested_start     TEXT,
	requested_end       TEXT,
	ack_state           TEXT,
	negotiation_status  TEXT,
	sent_at             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_channel
	ON messages(team_id, target_date, id);

CREATE INDEX IF NOT EXISTS idx_participants_user
	ON schedule_participants(user_id, participation_status);
`

// Migrate applies the schema. Safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapError translates driver errors to persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

// timeLayout is fixed width, zero padded to nanoseconds. RFC3339Nano trims
// trailing fractional zeros, which breaks the string comparisons behind
// ORDER BY sent_at and the schedule interval CHECK for sub-second instants.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime normalizes instants to UTC in the fixed-width layout so stored
// strings compare lexicographically in chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", value, err)
	}
	return t, nil
}
