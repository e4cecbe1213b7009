// Package sqlite provides a SQLite-backed implementation of the social storage contract.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
	"os"
	"path/filepath"
	"social-backend/internal/storage"
	"strings"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	username    TEXT NOT NULL UNIQUE,
	known_as    TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	last_active INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id          INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	sender_username    TEXT NOT NULL,
	recipient_id       INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	recipient_username TEXT NOT NULL,
	content            TEXT NOT NULL,
	sent_at            INTEGER NOT NULL,
	read_at            INTEGER,
	sender_deleted     INTEGER NOT NULL DEFAULT 0,
	recipient_deleted  INTEGER NOT NULL DEFAULT 0,
	CHECK (sender_id <> recipient_id)
);

CREATE INDEX IF NOT EXISTS messages_recipient_idx ON messages (recipient_username, sent_at);
CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_username, sent_at);

CREATE TABLE IF NOT EXISTS likes (
	source_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	target_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	PRIMARY KEY (source_id, target_id),
	CHECK (source_id <> target_id)
);

CREATE INDEX IF NOT EXISTS likes_target_idx ON likes (target_id);
CREATE INDEX IF NOT EXISTS users_last_active_idx ON users (last_active);
`

// Store persists users, messages and likes in SQLite.
type Store struct {
	logger *zap.SugaredLogger
	db     *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, logger *zap.SugaredLogger, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{logger: logger, db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate applies the schema; statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates user and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, knownAs string) (int64, error) {
	username = storage.NormalizeUsername(username)
	s.logger.Debugf("Creating user (%s)", username)

	now := toMillis(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, known_as, created_at, last_active) VALUES (?, ?, ?, ?)`,
		username, knownAs, now, now)
	if err != nil {
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE) {
			return 0, storage.ErrUserExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UserByID returns user with provided id.
func (s *Store) UserByID(ctx context.Context, id int64) (storage.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, known_as, created_at, last_active FROM users WHERE id = ?`, id))
}

// UserByUsername returns user with provided username ignoring case.
func (s *Store) UserByUsername(ctx context.Context, username string) (storage.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, known_as, created_at, last_active FROM users WHERE username = ?`,
		storage.NormalizeUsername(username)))
}

// TouchLastActive sets last_active of the user to current time.
func (s *Store) TouchLastActive(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_active = ? WHERE id = ?`, toMillis(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrUserNotExist
	}
	return nil
}

// SeedUsers inserts users in one transaction and returns number of inserted rows.
func (s *Store) SeedUsers(ctx context.Context, users []storage.User) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO users (username, known_as, created_at, last_active) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	var n int64
	for _, u := range users {
		created := u.CreatedAt
		if created.IsZero() {
			created = now
		}
		active := u.LastActive
		if active.IsZero() {
			active = created
		}
		if _, err := stmt.ExecContext(ctx, storage.NormalizeUsername(u.Username), u.KnownAs,
			toMillis(created), toMillis(active)); err != nil {
			if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE) {
				return 0, storage.ErrUserExists
			}
			return 0, err
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row *sql.Row) (storage.User, error) {
	var (
		u               storage.User
		created, active int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.KnownAs, &created, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrUserNotExist
		}
		return storage.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	u.LastActive = fromMillis(active)
	return u, nil
}

func isConstraint(err error, codes ...int) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}
