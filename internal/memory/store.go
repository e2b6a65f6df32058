// Package memory persists what modes choose to keep: the interaction log
// written when a mode sets save_interactions, and the locations recorded
// by the remember_location action.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
	"github.com/rs/zerolog/log"
)

// Store is a SQLite-backed store for interactions and locations.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path. The caller owns Close.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate memory db: %w", err)
	}

	log.Info().Str("path", path).Msg("memory store opened")
	return s, nil
}

// NewWithDB wraps an existing database handle, running migrations.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate memory db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mode TEXT NOT NULL,
	prompt TEXT NOT NULL,
	reply TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_mode ON interactions(mode);

CREATE TABLE IF NOT EXISTS locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	detail TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Interaction is one saved perception/reasoning exchange.
type Interaction struct {
	ID        int64
	Mode      string
	Prompt    string
	Reply     string
	CreatedAt time.Time
}

// SaveInteraction records one tick's prompt and reply for a mode.
func (s *Store) SaveInteraction(ctx context.Context, mode, prompt, reply string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (mode, prompt, reply, created_at) VALUES (?, ?, ?, ?)`,
		mode, prompt, reply, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save interaction: %w", err)
	}
	return nil
}

// RecentInteractions returns the most recent n interactions for a mode.
func (s *Store) RecentInteractions(ctx context.Context, mode string, n int) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, prompt, reply, created_at FROM interactions
		 WHERE mode = ? ORDER BY id DESC LIMIT ?`, mode, n)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		if err := rows.Scan(&it.ID, &it.Mode, &it.Prompt, &it.Reply, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Location is a remembered named place.
type Location struct {
	ID        int64
	Name      string
	Detail    string
	Mode      string
	CreatedAt time.Time
}

// RememberLocation stores or replaces a named location.
func (s *Store) RememberLocation(ctx context.Context, name, detail, mode string) error {
	if name == "" {
		return fmt.Errorf("location name is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (name, detail, mode, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET detail = excluded.detail, mode = excluded.mode`,
		name, detail, mode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("remember location: %w", err)
	}
	return nil
}

// Locations lists all remembered locations.
func (s *Store) Locations(ctx context.Context) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, detail, mode, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Detail, &loc.Mode, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
