package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	sqlite3lib "modernc.org/sqlite/lib"
	"social-backend/internal/storage"
	"strings"
	"time"
)

const messageColumns = `id, sender_id, sender_username, recipient_id, recipient_username,
	content, sent_at, read_at, sender_deleted, recipient_deleted`

func folderCondition(folder storage.Folder) string {
	switch folder {
	case storage.FolderInbox:
		return "recipient_username = ? AND recipient_deleted = 0"
	case storage.FolderOutbox:
		return "sender_username = ? AND sender_deleted = 0"
	default:
		return "recipient_username = ? AND read_at IS NULL AND recipient_deleted = 0"
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (storage.Message, error) {
	var (
		m      storage.Message
		sentAt int64
		readAt sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.SenderID, &m.SenderUsername, &m.RecipientID, &m.RecipientUsername,
		&m.Content, &sentAt, &readAt, &m.SenderDeleted, &m.RecipientDeleted)
	if err != nil {
		return storage.Message{}, err
	}
	m.SentAt = fromMillis(sentAt)
	if readAt.Valid {
		t := fromMillis(readAt.Int64)
		m.ReadAt = &t
	}
	return m, nil
}

func collectMessages(rows *sql.Rows) ([]storage.Message, error) {
	defer rows.Close()

	var messages []storage.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateMessage inserts m with both deleted flags cleared and sets its ID and SentAt.
func (s *Store) CreateMessage(ctx context.Context, m *storage.Message) error {
	s.logger.Debugf("Creating message from user (id: %d) to user (id: %d)", m.SenderID, m.RecipientID)

	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	// stored precision
	m.SentAt = fromMillis(toMillis(m.SentAt))
	m.ReadAt = nil
	m.SenderDeleted = false
	m.RecipientDeleted = false

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, sender_username, recipient_id, recipient_username, content, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.SenderID, m.SenderUsername, m.RecipientID, m.RecipientUsername, m.Content, toMillis(m.SentAt))
	if err != nil {
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return storage.ErrUserNotExist
		}
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

// MessageByID returns message with provided id.
func (s *Store) MessageByID(ctx context.Context, id int64) (storage.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Message{}, storage.ErrMessageNotExist
		}
		return storage.Message{}, err
	}
	return m, nil
}

// CountMessages returns number of messages in the folder.
func (s *Store) CountMessages(ctx context.Context, f storage.MessageFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE `+folderCondition(f.Folder),
		storage.NormalizeUsername(f.Username)).Scan(&n)
	return n, err
}

// ListMessages returns a window of the folder sorted by sent time from latest to oldest.
func (s *Store) ListMessages(ctx context.Context, f storage.MessageFilter, offset, limit int) ([]storage.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE `+folderCondition(f.Folder)+
			` ORDER BY sent_at DESC, id DESC LIMIT ? OFFSET ?`,
		storage.NormalizeUsername(f.Username), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MessageThread returns messages between current and other which current has not deleted,
// sorted by sent time from earliest to latest.
func (s *Store) MessageThread(ctx context.Context, current, other string) ([]storage.Message, error) {
	current, other = storage.NormalizeUsername(current), storage.NormalizeUsername(other)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE (recipient_username = ? AND recipient_deleted = 0 AND sender_username = ?)
		    OR (sender_username = ? AND sender_deleted = 0 AND recipient_username = ?)
		 ORDER BY sent_at ASC, id ASC`,
		current, other, current, other)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// markReadChunk bounds the number of ids bound to one UPDATE, below SQLITE_MAX_VARIABLE_NUMBER
const markReadChunk = 500

// MarkRead sets read_at of still unread messages with provided ids in one transaction.
func (s *Store) MarkRead(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var marked int64
	for start := 0; start < len(ids); start += markReadChunk {
		chunk := ids[start:min(start+markReadChunk, len(ids))]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, toMillis(at))
		for _, id := range chunk {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		res, err := tx.ExecContext(ctx,
			`UPDATE messages SET read_at = ? WHERE read_at IS NULL AND id IN (`+placeholders+`)`, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		marked += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return marked, nil
}

// UpdateMessage applies fn to the message and stores the result in one transaction.
// The row is deleted instead when fn reports purge.
func (s *Store) UpdateMessage(ctx context.Context, id int64, fn func(m *storage.Message) (purge bool, err error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrMessageNotExist
		}
		return err
	}

	purge, err := fn(&m)
	if err != nil {
		return err
	}

	if purge {
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	} else {
		var readAt sql.NullInt64
		if m.ReadAt != nil {
			readAt = sql.NullInt64{Int64: toMillis(*m.ReadAt), Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET sender_deleted = ?, recipient_deleted = ?, read_at = ? WHERE id = ?`,
			m.SenderDeleted, m.RecipientDeleted, readAt, id)
	}
	if err != nil {
		return fmt.Errorf("storing message %d: %w", id, err)
	}

	return tx.Commit()
}
