package mailbox

import "social-backend/internal/storage"

// Side is the party of a message acting on it
type Side int

const (
	Sender Side = iota + 1
	Recipient
)

// DeleteState tracks which parties have deleted a message.
// DeletedByBoth is terminal: the message row is purged on entering it.
type DeleteState int

const (
	Visible DeleteState = iota
	DeletedBySender
	DeletedByRecipient
	DeletedByBoth
)

var stateNames = [...]string{
	Visible:            "visible",
	DeletedBySender:    "deleted_by_sender",
	DeletedByRecipient: "deleted_by_recipient",
	DeletedByBoth:      "purged",
}

func (s DeleteState) String() string {
	if s < Visible || s > DeletedByBoth {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON responses
func (s DeleteState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateOf derives the state from the two stored flags
func StateOf(m storage.Message) DeleteState {
	switch {
	case m.SenderDeleted && m.RecipientDeleted:
		return DeletedByBoth
	case m.SenderDeleted:
		return DeletedBySender
	case m.RecipientDeleted:
		return DeletedByRecipient
	default:
		return Visible
	}
}

// Delete returns the state after side deletes the message; repeating a delete keeps the state
func (s DeleteState) Delete(side Side) DeleteState {
	switch side {
	case Sender:
		switch s {
		case Visible:
			return DeletedBySender
		case DeletedByRecipient:
			return DeletedByBoth
		}
	case Recipient:
		switch s {
		case Visible:
			return DeletedByRecipient
		case DeletedBySender:
			return DeletedByBoth
		}
	}
	return s
}

// VisibleTo reports whether side still sees the message
func (s DeleteState) VisibleTo(side Side) bool {
	switch side {
	case Sender:
		return s == Visible || s == DeletedByRecipient
	case Recipient:
		return s == Visible || s == DeletedBySender
	}
	return false
}

// Purge reports whether the message must be removed from storage
func (s DeleteState) Purge() bool {
	return s == DeletedByBoth
}

// apply writes the state back into the message flags
func (s DeleteState) apply(m *storage.Message) {
	m.SenderDeleted = s == DeletedBySender || s == DeletedByBoth
	m.RecipientDeleted = s == DeletedByRecipient || s == DeletedByBoth
}

// sideOf returns the side username plays in m, or 0 when it is not a party
func sideOf(m storage.Message, username string) Side {
	switch username {
	case m.SenderUsername:
		return Sender
	case m.RecipientUsername:
		return Recipient
	}
	return 0
}
