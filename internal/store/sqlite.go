// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Session state is stored as a JSON column; create races resolve via INSERT OR IGNORE

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			namespace  TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			session_id TEXT NOT NULL,
			state      TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (namespace, user_id, session_id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetSession returns the session under key, or ErrSessionNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, key Key) (*Session, error) {
	var stateJSON string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT state, created_at FROM sessions
		 WHERE namespace = ? AND user_id = ? AND session_id = ?`,
		key.Namespace, key.UserID, key.SessionID,
	).Scan(&stateJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	state := make(map[string]any)
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("decoding session state: %w", err)
	}

	return &Session{Key: key, State: state, CreatedAt: createdAt}, nil
}

// CreateSession inserts the session unless the key is already taken, in
// which case the existing row is returned. The INSERT OR IGNORE plus
// re-read guarantees at most one session per key under concurrent creates.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return nil, fmt.Errorf("encoding session state: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (namespace, user_id, session_id, state, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.Key.Namespace, sess.Key.UserID, sess.Key.SessionID, string(stateJSON), sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking insert result: %w", err)
	}
	if rows == 0 {
		// Lost the create race; adopt the winner's session.
		existing, err := s.GetSession(ctx, sess.Key)
		if err != nil {
			return nil, fmt.Errorf("adopting existing session: %w", err)
		}
		s.logger.Debug("create race resolved, adopted existing session",
			"namespace", sess.Key.Namespace, "session_id", sess.Key.SessionID)
		return existing, nil
	}
	return sess, nil
}

// SaveState replaces the state of an existing session.
func (s *SQLiteStore) SaveState(ctx context.Context, key Key, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?
		 WHERE namespace = ? AND user_id = ? AND session_id = ?`,
		string(stateJSON), key.Namespace, key.UserID, key.SessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session state: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
