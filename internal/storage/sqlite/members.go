package sqlite

import (
	"context"
	"database/sql"
	"social-backend/internal/storage"
)

func memberOrderBy(order storage.MemberOrder) string {
	if order == storage.MembersByCreated {
		return ` ORDER BY created_at DESC, id DESC`
	}
	return ` ORDER BY last_active DESC, id DESC`
}

// CountMembers returns number of users other than exclude.
func (s *Store) CountMembers(ctx context.Context, exclude int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id <> ?`, exclude).Scan(&n)
	return n, err
}

// ListMembers returns a window of users other than exclude sorted by order from latest to oldest.
func (s *Store) ListMembers(ctx context.Context, exclude int64, order storage.MemberOrder, offset, limit int) ([]storage.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, known_as, created_at, last_active FROM users WHERE id <> ?`+
			memberOrderBy(order)+` LIMIT ? OFFSET ?`,
		exclude, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]storage.User, error) {
	defer rows.Close()

	var users []storage.User
	for rows.Next() {
		var (
			u               storage.User
			created, active int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.KnownAs, &created, &active); err != nil {
			return nil, err
		}
		u.CreatedAt = fromMillis(created)
		u.LastActive = fromMillis(active)
		users = append(users, u)
	}
	return users, rows.Err()
}
