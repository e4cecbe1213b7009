package storage

import (
	"context"
	"github.com/jackc/pgx/v4"
)

// likedUsersQuery returns from/where part selecting users related to $1 by predicate
func likedUsersQuery(p LikePredicate) string {
	switch p {
	case LikesLiked:
		return "from likes join users on users.id = likes.target_id where likes.source_id = $1"
	case LikesLikedBy:
		return "from likes join users on users.id = likes.source_id where likes.target_id = $1"
	default:
		return `from likes join users on users.id = likes.source_id
				where likes.target_id = $1
				  and likes.source_id in (select target_id from likes where source_id = $1)`
	}
}

// ToggleLike removes like edge from source to target if it exists and creates it otherwise.
// It returns true when the edge exists after the call.
// Concurrent toggles of one pair are ordered by the primary key: a statement that changes no row
// observed a toggle committed in the meantime and the other statement is tried again.
func (s *Store) ToggleLike(ctx context.Context, source, target int64) (bool, error) {
	s.logger.Debugf("Toggling like from user (id: %d) to user (id: %d)", source, target)

	for {
		tag, err := s.db.Exec(ctx, "insert into likes (source_id, target_id) values ($1, $2) on conflict do nothing", source, target)
		if err != nil {
			if isForeignKeyViolation(err) {
				return false, ErrUserNotExist
			}
			return false, err
		}
		if tag.RowsAffected() == 1 {
			return true, nil
		}

		tag, err = s.db.Exec(ctx, "delete from likes where source_id = $1 and target_id = $2", source, target)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() == 1 {
			return false, nil
		}
	}
}

// CountLikedUsers returns number of users related to user by predicate
func (s *Store) CountLikedUsers(ctx context.Context, user int64, p LikePredicate) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "select count(*) "+likedUsersQuery(p), user).Scan(&n)
	return n, err
}

// ListLikedUsers returns a window of users related to user by predicate ordered by username
func (s *Store) ListLikedUsers(ctx context.Context, user int64, p LikePredicate, offset, limit int) ([]User, error) {
	sql := "select users.id, users.username, users.known_as, users.created_at, users.last_active " +
		likedUsersQuery(p) + " order by users.username limit $2 offset $3"
	rows, err := s.db.Query(ctx, sql, user, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.KnownAs, &u.CreatedAt, &u.LastActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return users, nil
}

// LikedIDs returns ids of users liked by user
func (s *Store) LikedIDs(ctx context.Context, user int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, "select target_id from likes where source_id = $1 order by target_id", user)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
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
