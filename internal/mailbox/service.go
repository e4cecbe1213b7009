package mailbox

import (
	"context"
	"errors"
	"go.uber.org/zap"
	"social-backend/internal/metrics"
	"social-backend/internal/pagination"
	"social-backend/internal/storage"
	"strings"
	"time"
)

// Repository is the persistence needed by Service; implemented by storage.Store and sqlite.Store
type Repository interface {
	UserByID(ctx context.Context, id int64) (storage.User, error)
	UserByUsername(ctx context.Context, username string) (storage.User, error)
	CreateMessage(ctx context.Context, m *storage.Message) error
	MessageByID(ctx context.Context, id int64) (storage.Message, error)
	CountMessages(ctx context.Context, f storage.MessageFilter) (int, error)
	ListMessages(ctx context.Context, f storage.MessageFilter, offset, limit int) ([]storage.Message, error)
	MessageThread(ctx context.Context, current, other string) ([]storage.Message, error)
	MarkRead(ctx context.Context, ids []int64, at time.Time) (int64, error)
	UpdateMessage(ctx context.Context, id int64, fn func(m *storage.Message) (bool, error)) error
}

// Thread is the conversation of two users as seen by the requesting one
type Thread struct {
	Messages []storage.Message `json:"messages"`
	// MarkedRead is the number of messages this fetch acknowledged
	MarkedRead int `json:"marked_read"`
}

// DeleteResult describes the outcome of Delete
type DeleteResult struct {
	MessageID int64       `json:"id"`
	State     DeleteState `json:"state"`
}

// Service implements the direct message mailbox
type Service struct {
	logger *zap.SugaredLogger
	repo   Repository
	now    func() time.Time
}

// NewService returns Service over repo
func NewService(logger *zap.SugaredLogger, repo Repository) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ParseFolder maps request token to a folder; anything but Inbox and Outbox selects unread messages
func ParseFolder(token string) storage.Folder {
	switch storage.Folder(token) {
	case storage.FolderInbox:
		return storage.FolderInbox
	case storage.FolderOutbox:
		return storage.FolderOutbox
	default:
		return storage.FolderUnread
	}
}

// Send stores a new message from sender to recipient
func (s *Service) Send(ctx context.Context, senderID, recipientID int64, content string) (storage.Message, error) {
	if senderID == recipientID {
		return storage.Message{}, ErrSelfMessage
	}

	sender, err := s.repo.UserByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.Message{}, ErrNotFound
		}
		return storage.Message{}, err
	}

	recipient, err := s.repo.UserByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.Message{}, ErrUnknownRecipient
		}
		return storage.Message{}, err
	}

	return s.create(ctx, sender, recipient, content)
}

// SendTo stores a new message from sender to the user with recipientUsername
func (s *Service) SendTo(ctx context.Context, senderID int64, recipientUsername, content string) (storage.Message, error) {
	sender, err := s.repo.UserByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.Message{}, ErrNotFound
		}
		return storage.Message{}, err
	}

	if sender.Username == storage.NormalizeUsername(recipientUsername) {
		return storage.Message{}, ErrSelfMessage
	}

	recipient, err := s.repo.UserByUsername(ctx, recipientUsername)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.Message{}, ErrUnknownRecipient
		}
		return storage.Message{}, err
	}

	return s.create(ctx, sender, recipient, content)
}

func (s *Service) create(ctx context.Context, sender, recipient storage.User, content string) (storage.Message, error) {
	if strings.TrimSpace(content) == "" {
		return storage.Message{}, ErrEmptyContent
	}

	m := storage.Message{
		SenderID:          sender.ID,
		SenderUsername:    sender.Username,
		RecipientID:       recipient.ID,
		RecipientUsername: recipient.Username,
		Content:           content,
		SentAt:            s.now(),
	}
	if err := s.repo.CreateMessage(ctx, &m); err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.Message{}, ErrUnknownRecipient
		}
		return storage.Message{}, err
	}

	metrics.MessagesSent.Inc()
	s.logger.Debugf("User (%s) sent message %d to user (%s)", sender.Username, m.ID, recipient.Username)

	return m, nil
}

// FetchMailbox returns a page of the folder of username ordered from latest to oldest
func (s *Service) FetchMailbox(ctx context.Context, username string, folder storage.Folder, page, pageSize int) (pagination.Page[storage.Message], error) {
	filter := storage.MessageFilter{Username: storage.NormalizeUsername(username), Folder: folder}
	src := pagination.FuncSource[storage.Message]{
		CountFunc: func(ctx context.Context) (int, error) {
			return s.repo.CountMessages(ctx, filter)
		},
		SliceFunc: func(ctx context.Context, offset, limit int) ([]storage.Message, error) {
			return s.repo.ListMessages(ctx, filter, offset, limit)
		},
	}
	return pagination.Paginate[storage.Message](ctx, src, page, pageSize)
}

// FetchThread returns messages between userA and userB that userA has not deleted, oldest first.
// Unread messages addressed to userA are marked read in one update before the thread is returned.
// When a concurrent fetch marked some of them first, their ReadAt is reloaded from storage.
func (s *Service) FetchThread(ctx context.Context, userA, userB string) (Thread, error) {
	userA, userB = storage.NormalizeUsername(userA), storage.NormalizeUsername(userB)

	messages, err := s.repo.MessageThread(ctx, userA, userB)
	if err != nil {
		return Thread{}, err
	}

	var unread []int
	ids := make([]int64, 0)
	for i, m := range messages {
		if m.RecipientUsername == userA && m.ReadAt == nil {
			unread = append(unread, i)
			ids = append(ids, m.ID)
		}
	}

	thread := Thread{Messages: messages}
	if thread.Messages == nil {
		thread.Messages = []storage.Message{}
	}
	if len(ids) == 0 {
		return thread, nil
	}

	readAt := s.now()
	marked, err := s.repo.MarkRead(ctx, ids, readAt)
	if err != nil {
		return Thread{}, err
	}
	if int(marked) == len(ids) {
		for _, i := range unread {
			t := readAt
			thread.Messages[i].ReadAt = &t
		}
	} else if err := s.reloadReadAt(ctx, thread.Messages, unread); err != nil {
		return Thread{}, err
	}
	thread.MarkedRead = int(marked)

	metrics.MessagesMarkedRead.Add(float64(marked))
	s.logger.Debugf("User (%s) read %d messages from user (%s)", userA, marked, userB)

	return thread, nil
}

// reloadReadAt copies stored read time into messages at provided positions
func (s *Service) reloadReadAt(ctx context.Context, messages []storage.Message, positions []int) error {
	for _, i := range positions {
		stored, err := s.repo.MessageByID(ctx, messages[i].ID)
		if err != nil {
			// purged in the meantime
			if errors.Is(err, storage.ErrMessageNotExist) {
				continue
			}
			return err
		}
		messages[i].ReadAt = stored.ReadAt
	}
	return nil
}

// Delete hides the message from the requesting party and purges it once both parties deleted it
func (s *Service) Delete(ctx context.Context, messageID int64, requestingUsername string) (DeleteResult, error) {
	username := storage.NormalizeUsername(requestingUsername)
	result := DeleteResult{MessageID: messageID}

	err := s.repo.UpdateMessage(ctx, messageID, func(m *storage.Message) (bool, error) {
		side := sideOf(*m, username)
		if side == 0 {
			return false, ErrForbidden
		}
		next := StateOf(*m).Delete(side)
		next.apply(m)
		result.State = next
		return next.Purge(), nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotExist) {
			return DeleteResult{}, ErrNotFound
		}
		return DeleteResult{}, err
	}

	metrics.MessagesDeleted.WithLabelValues(result.State.String()).Inc()
	s.logger.Debugf("User (%s) deleted message %d, state %s", username, messageID, result.State)

	return result, nil
}
