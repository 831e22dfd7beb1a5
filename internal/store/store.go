// Package store persists per-account session records in SQLite so
// status queries and restarts can report accounts without touching the
// messaging platform.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tgsitter/tgsitter/internal/platform"
)

// Record is the last known auth state of one account.
type Record struct {
	ID         string
	Phone      string
	ProfileID  int64
	Username   string
	FirstName  string
	LastName   string
	Authorized bool
	UpdatedAt  time.Time
}

// DisplayName mirrors platform.Profile's naming rules.
func (r Record) DisplayName() string {
	p := platform.Profile{Username: r.Username, FirstName: r.FirstName, LastName: r.LastName}
	return p.DisplayName()
}

// Store is a SQLite-backed session record store.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and
// migrates the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL,
		profile_id INTEGER NOT NULL DEFAULT 0,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		authorized INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveProfile upserts the record for id. Implements session.Recorder.
func (s *Store) SaveProfile(ctx context.Context, id, phone string, p platform.Profile, authorized bool) error {
	query := `
		INSERT INTO sessions (id, phone, profile_id, username, first_name, last_name, authorized, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone = excluded.phone,
			profile_id = excluded.profile_id,
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			authorized = excluded.authorized,
			updated_at = excluded.updated_at`

	auth := 0
	if authorized {
		auth = 1
	}
	_, err := s.db.ExecContext(ctx, query, id, phone, p.ID, p.Username, p.FirstName, p.LastName, auth, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

// Get returns the record for id; ok is false when none exists.
func (s *Store) Get(ctx context.Context, id string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone, profile_id, username, first_name, last_name, authorized, updated_at
		FROM sessions WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("scan session record: %w", err)
	}
	return rec, true, nil
}

// All returns every record, newest first.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, profile_id, username, first_name, last_name, authorized, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var auth int
	var updated int64
	if err := row.Scan(&rec.ID, &rec.Phone, &rec.ProfileID, &rec.Username,
		&rec.FirstName, &rec.LastName, &auth, &updated); err != nil {
		return Record{}, err
	}
	rec.Authorized = auth == 1
	rec.UpdatedAt = time.Unix(updated, 0)
	return rec, nil
}
