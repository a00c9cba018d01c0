// Package storage persists browser sessions in a local SQLite
// database. The stored token is the bearer token issued by the remote
// backend; keeping it here is what lets a session survive restarts
// until logout or rejection.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"homebudget/internal/log"
)

// ErrNotFound is returned when no session row exists for a sid.
var ErrNotFound = errors.New("session not found")

// Session is one browser session row.
type Session struct {
	SID       string
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the row's lifetime has elapsed.
func (s Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore is the SQLite-backed session repository.
type SessionStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSessionStore opens (creating if needed) the session database and
// runs pending migrations.
func NewSessionStore(dbPath string, logger *log.Logger) (*SessionStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SessionStore{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put inserts or replaces a session row.
func (s *SessionStore) Put(ctx context.Context, sess Session) error {
	const q = `INSERT OR REPLACE INTO sessions (sid, token, username, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.SID, sess.Token, sess.Username, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Get returns the session for sid, or ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, sid string) (Session, error) {
	const q = `SELECT sid, token, username, created_at, expires_at FROM sessions WHERE sid = ?`
	var sess Session
	err := s.db.QueryRowContext(ctx, q, sid).Scan(&sess.SID, &sess.Token, &sess.Username, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Delete removes a session row and returns how many rows were
// affected. Deleting an absent row is not an error; the count lets the
// caller tell the one delete that actually cleared the row apart from
// repeats.
func (s *SessionStore) Delete(ctx context.Context, sid string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = ?`, sid)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted sessions: %w", err)
	}
	return n, nil
}

// DeleteExpired prunes rows past their expiry and returns how many
// were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned sessions: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Pruned expired sessions", "count", n)
	}
	return n, nil
}
