package sqlite

import (
	"context"
	sqlite3lib "modernc.org/sqlite/lib"
	"social-backend/internal/storage"
)

func likedUsersQuery(p storage.LikePredicate) (string, int) {
	switch p {
	case storage.LikesLiked:
		return `FROM likes JOIN users ON users.id = likes.target_id WHERE likes.source_id = ?`, 1
	case storage.LikesLikedBy:
		return `FROM likes JOIN users ON users.id = likes.source_id WHERE likes.target_id = ?`, 1
	default:
		return `FROM likes JOIN users ON users.id = likes.source_id
		        WHERE likes.target_id = ?
		          AND likes.source_id IN (SELECT target_id FROM likes WHERE source_id = ?)`, 2
	}
}

func repeatArg(v int64, n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = v
	}
	return args
}

// ToggleLike removes like edge from source to target if it exists and creates it otherwise.
// It returns true when the edge exists after the call.
func (s *Store) ToggleLike(ctx context.Context, source, target int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE source_id = ? AND target_id = ?`, source, target)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	liked := removed == 0
	if liked {
		_, err = tx.ExecContext(ctx, `INSERT INTO likes (source_id, target_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, source, target)
		if err != nil {
			if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) {
				return false, storage.ErrUserNotExist
			}
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return liked, nil
}

// CountLikedUsers returns number of users related to user by predicate.
func (s *Store) CountLikedUsers(ctx context.Context, user int64, p storage.LikePredicate) (int, error) {
	from, n := likedUsersQuery(p)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, repeatArg(user, n)...).Scan(&count)
	return count, err
}

// ListLikedUsers returns a window of users related to user by predicate ordered by username.
func (s *Store) ListLikedUsers(ctx context.Context, user int64, p storage.LikePredicate, offset, limit int) ([]storage.User, error) {
	from, n := likedUsersQuery(p)
	args := append(repeatArg(user, n), limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT users.id, users.username, users.known_as, users.created_at, users.last_active `+from+
			` ORDER BY users.username LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// LikedIDs returns ids of users liked by user.
func (s *Store) LikedIDs(ctx context.Context, user int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target_id FROM likes WHERE source_id = ? ORDER BY target_id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
