package mailbox

import "errors"

var (
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrUnknownRecipient = errors.New("recipient does not exist")
	ErrEmptyContent     = errors.New("message content is empty")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("not a party of the message")
)
