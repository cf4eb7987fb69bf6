// Package session holds the persisted bearer credential and guards
// protected views by resolving it into an identity before anything renders.
package session

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Store persists the single bearer credential for this installation,
// plus the last identity resolved from it. The identity columns are display
// state only; authentication decisions always go back to the backend.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the local session database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	// Single-row table: this layer holds exactly one credential at a time.
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		plan TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	)`)
	return err
}

// Token returns the stored credential, or "" when logged out.
func (s *Store) Token() (string, error) {
	var token string
	err := s.conn.QueryRow("SELECT token FROM session WHERE id = 1").Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SetToken stores the credential, replacing any previous one.
func (s *Store) SetToken(token string) error {
	_, err := s.conn.Exec(`
		INSERT INTO session (id, token, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, time.Now(),
	)
	return err
}

// SetIdentity records the last identity resolved for the stored credential.
func (s *Store) SetIdentity(email, plan string) error {
	_, err := s.conn.Exec(
		"UPDATE session SET email = ?, plan = ?, updated_at = ? WHERE id = 1",
		email, plan, time.Now(),
	)
	return err
}

// Identity returns the last recorded identity. Both values are "" when no
// session exists or none was recorded.
func (s *Store) Identity() (email, plan string, err error) {
	err = s.conn.QueryRow("SELECT email, plan FROM session WHERE id = 1").Scan(&email, &plan)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return email, plan, nil
}

// Clear removes the credential and identity. Used on logout and whenever
// the backend rejects the stored token.
func (s *Store) Clear() error {
	_, err := s.conn.Exec("DELETE FROM session WHERE id = 1")
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}
