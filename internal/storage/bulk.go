package storage

import (
	"context"
	"errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"time"
)

type userRow struct {
	username, knownAs     string
	createdAt, lastActive time.Time
}

type userBulk struct {
	rows []userRow
	idx  int
}

func (r userRow) toInterface() []interface{} {
	return []interface{}{r.username, r.knownAs, r.createdAt, r.lastActive}
}

func copyFromBulk(rows []userRow) pgx.CopyFromSource {
	return &userBulk{
		rows: rows,
		idx:  -1,
	}
}

func (b *userBulk) Next() bool {
	b.idx++
	return b.idx < len(b.rows)
}

func (b *userBulk) Values() ([]interface{}, error) {
	return b.rows[b.idx].toInterface(), nil
}

func (b *userBulk) Err() error {
	return nil
}

// seedRows normalizes usernames and fills missing timestamps
func seedRows(users []User) []userRow {
	now := time.Now().UTC()
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		row := userRow{
			username:   NormalizeUsername(u.Username),
			knownAs:    u.KnownAs,
			createdAt:  u.CreatedAt,
			lastActive: u.LastActive,
		}
		if row.createdAt.IsZero() {
			row.createdAt = now
		}
		if row.lastActive.IsZero() {
			row.lastActive = row.createdAt
		}
		rows = append(rows, row)
	}
	return rows
}

// SeedUsers bulk inserts users with COPY and returns number of inserted rows.
// The whole batch fails with ErrUserExists if any username is taken.
func (s *Store) SeedUsers(ctx context.Context, users []User) (int64, error) {
	s.logger.Debugf("Seeding %d users", len(users))

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"users"},
		[]string{"username", "known_as", "created_at", "last_active"}, copyFromBulk(seedRows(users)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrUserExists
		}
		return 0, err
	}

	s.logger.Debugf("Seeded %d users", n)

	return n, nil
}
