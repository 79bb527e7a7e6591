// Package session persists the login identity (token, role, team) across
// client restarts, the way the browser build kept it in local storage. It is
// read once at startup and written on login/logout.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token TEXT NOT NULL,
	role TEXT NOT NULL,
	team_id TEXT NOT NULL DEFAULT '',
	team_name TEXT NOT NULL DEFAULT '',
	team_color TEXT NOT NULL DEFAULT ''
);
`

// Session is the persisted login identity. Role is "admin" or "team"; the
// team fields are only set for team sessions.
type Session struct {
	Token     string
	Role      string
	TeamID    string
	TeamName  string
	TeamColor string
}

// Store is an SQLite-backed single-row session store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at path, with WAL
// and a busy timeout applied.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	return open(path)
}

// OpenMemory opens a throwaway in-memory store for tests.
func OpenMemory() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the stored session, with ok=false when none exists.
func (s *Store) Load(ctx context.Context) (Session, bool, error) {
	var sess Session
	row := s.db.QueryRowContext(ctx,
		`SELECT token, role, team_id, team_name, team_color FROM session WHERE id = 1`)
	err := row.Scan(&sess.Token, &sess.Role, &sess.TeamID, &sess.TeamName, &sess.TeamColor)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}
	return sess, true, nil
}

// Save stores the session, replacing any previous one.
func (s *Store) Save(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, token, role, team_id, team_name, team_color)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			token = excluded.token,
			role = excluded.role,
			team_id = excluded.team_id,
			team_name = excluded.team_name,
			team_color = excluded.team_color`,
		sess.Token, sess.Role, sess.TeamID, sess.TeamName, sess.TeamColor)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session (logout).
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
