package storage

import (
	"strings"
	"time"
)

type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	KnownAs    string    `json:"known_as"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type Message struct {
	ID                int64      `json:"id"`
	SenderID          int64      `json:"sender_id"`
	SenderUsername    string     `json:"sender_username"`
	RecipientID       int64      `json:"recipient_id"`
	RecipientUsername string     `json:"recipient_username"`
	Content           string     `json:"content"`
	SentAt            time.Time  `json:"sent_at"`
	ReadAt            *time.Time `json:"read_at"`
	SenderDeleted     bool       `json:"-"`
	RecipientDeleted  bool       `json:"-"`
}

// Folder selects a mailbox view
type Folder string

const (
	FolderUnread Folder = "Unread"
	FolderInbox  Folder = "Inbox"
	FolderOutbox Folder = "Outbox"
)

// MessageFilter selects messages of one mailbox folder of Username
type MessageFilter struct {
	Username string
	Folder   Folder
}

// LikePredicate selects a direction of like edges relative to a user
type LikePredicate string

const (
	LikesMutual  LikePredicate = "mutual"
	LikesLiked   LikePredicate = "liked"
	LikesLikedBy LikePredicate = "likedBy"
)

// MemberOrder selects the sort key of member listings; both keys sort from latest to oldest
type MemberOrder string

const (
	MembersByLastActive MemberOrder = "lastActive"
	MembersByCreated    MemberOrder = "created"
)

// NormalizeUsername returns the stored form of username; uniqueness is case-insensitive
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
