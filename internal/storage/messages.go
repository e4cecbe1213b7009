package storage

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"time"
)

const messageColumns = `id, sender_id, sender_username, recipient_id, recipient_username,
	content, sent_at, read_at, sender_deleted, recipient_deleted`

// folderCondition returns where clause of a mailbox folder with $1 bound to the username
func folderCondition(folder Folder) string {
	switch folder {
	case FolderInbox:
		return "recipient_username = $1 and recipient_deleted = false"
	case FolderOutbox:
		return "sender_username = $1 and sender_deleted = false"
	default:
		return "recipient_username = $1 and read_at is null and recipient_deleted = false"
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scanner) (Message, error) {
	var (
		m      Message
		readAt pgtype.Timestamptz
	)
	err := row.Scan(&m.ID, &m.SenderID, &m.SenderUsername, &m.RecipientID, &m.RecipientUsername,
		&m.Content, &m.SentAt, &readAt, &m.SenderDeleted, &m.RecipientDeleted)
	if err != nil {
		return Message{}, err
	}
	if readAt.Status == pgtype.Present {
		t := readAt.Time
		m.ReadAt = &t
	}
	return m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return messages, nil
}

// CreateMessage inserts m with both deleted flags cleared and sets its ID and SentAt
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	s.logger.Debugf("Creating message from user (id: %d) to user (id: %d)", m.SenderID, m.RecipientID)

	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	// stored precision
	m.SentAt = m.SentAt.UTC().Truncate(time.Microsecond)
	m.ReadAt = nil
	m.SenderDeleted = false
	m.RecipientDeleted = false

	sql := `insert into messages (sender_id, sender_username, recipient_id, recipient_username, content, sent_at)
			values ($1, $2, $3, $4, $5, $6) returning id`
	err := s.db.QueryRow(ctx, sql, m.SenderID, m.SenderUsername, m.RecipientID, m.RecipientUsername,
		m.Content, m.SentAt).Scan(&m.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotExist
		}
		return err
	}

	return nil
}

// MessageByID returns message with provided id
func (s *Store) MessageByID(ctx context.Context, id int64) (Message, error) {
	sql := "select " + messageColumns + " from messages where id = $1"
	m, err := scanMessage(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrMessageNotExist
		}
		return Message{}, err
	}
	return m, nil
}

// CountMessages returns number of messages in the folder
func (s *Store) CountMessages(ctx context.Context, f MessageFilter) (int, error) {
	var n int
	sql := "select count(*) from messages where " + folderCondition(f.Folder)
	err := s.db.QueryRow(ctx, sql, NormalizeUsername(f.Username)).Scan(&n)
	return n, err
}

// ListMessages returns a window of the folder sorted by sent time from latest to oldest
func (s *Store) ListMessages(ctx context.Context, f MessageFilter, offset, limit int) ([]Message, error) {
	s.logger.Debugf("Retrieving %s of user (%s), offset %d limit %d", f.Folder, f.Username, offset, limit)

	sql := "select " + messageColumns + " from messages where " + folderCondition(f.Folder) +
		" order by sent_at desc, id desc limit $2 offset $3"
	rows, err := s.db.Query(ctx, sql, NormalizeUsername(f.Username), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MessageThread returns messages between current and other which current has not deleted,
// sorted by sent time from earliest to latest
func (s *Store) MessageThread(ctx context.Context, current, other string) ([]Message, error) {
	s.logger.Debugf("Retrieving thread of user (%s) with user (%s)", current, other)

	sql := "select " + messageColumns + ` from messages
			where (recipient_username = $1 and recipient_deleted = false and sender_username = $2)
			   or (sender_username = $1 and sender_deleted = false and recipient_username = $2)
			order by sent_at asc, id asc`
	rows, err := s.db.Query(ctx, sql, NormalizeUsername(current), NormalizeUsername(other))
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MarkRead sets read_at of still unread messages with provided ids in a single statement
// and returns number of updated rows
func (s *Store) MarkRead(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, "update messages set read_at = $2 where id = any($1) and read_at is null", ids, at.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateMessage locks the message row, applies fn to it and stores the result in one transaction.
// The row is deleted instead when fn reports purge.
func (s *Store) UpdateMessage(ctx context.Context, id int64, fn func(m *Message) (purge bool, err error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	// error handling can be omitted for rollback according docs
	defer tx.Rollback(context.Background())

	sql := "select " + messageColumns + " from messages where id = $1 for update"
	m, err := scanMessage(tx.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotExist
		}
		return err
	}

	purge, err := fn(&m)
	if err != nil {
		return err
	}

	if purge {
		_, err = tx.Exec(ctx, "delete from messages where id = $1", id)
	} else {
		_, err = tx.Exec(ctx, "update messages set sender_deleted = $2, recipient_deleted = $3, read_at = $4 where id = $1",
			id, m.SenderDeleted, m.RecipientDeleted, m.ReadAt)
	}
	if err != nil {
		return fmt.Errorf("storing message %d: %w", id, err)
	}

	return tx.Commit(ctx)
}
