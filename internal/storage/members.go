package storage

import "context"

// memberOrderBy returns order by clause of member listings; id breaks ties between equal timestamps
func memberOrderBy(order MemberOrder) string {
	if order == MembersByCreated {
		return " order by created_at desc, id desc"
	}
	return " order by last_active desc, id desc"
}

// CountMembers returns number of users other than exclude
func (s *Store) CountMembers(ctx context.Context, exclude int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "select count(*) from users where id <> $1", exclude).Scan(&n)
	return n, err
}

// ListMembers returns a window of users other than exclude sorted by order
func (s *Store) ListMembers(ctx context.Context, exclude int64, order MemberOrder, offset, limit int) ([]User, error) {
	s.logger.Debugf("Listing members for user (id: %d) by %s", exclude, order)

	sql := "select id, username, known_as, created_at, last_active from users where id <> $1" +
		memberOrderBy(order) + " limit $2 offset $3"
	rows, err := s.db.Query(ctx, sql, exclude, limit, offset)
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
