package mailbox

import (
	"github.com/stretchr/testify/require"
	"social-backend/internal/storage"
	"testing"
)

func TestDeleteTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		from  DeleteState
		side  Side
		wants DeleteState
	}{
		{"sender deletes visible", Visible, Sender, DeletedBySender},
		{"recipient deletes visible", Visible, Recipient, DeletedByRecipient},
		{"sender deletes again", DeletedBySender, Sender, DeletedBySender},
		{"recipient deletes again", DeletedByRecipient, Recipient, DeletedByRecipient},
		{"recipient after sender", DeletedBySender, Recipient, DeletedByBoth},
		{"sender after recipient", DeletedByRecipient, Sender, DeletedByBoth},
		{"terminal stays", DeletedByBoth, Sender, DeletedByBoth},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.wants, tt.from.Delete(tt.side))
		})
	}
}

func TestVisibleTo(t *testing.T) {
	t.Parallel()

	require.True(t, Visible.VisibleTo(Sender))
	require.True(t, Visible.VisibleTo(Recipient))
	require.False(t, DeletedBySender.VisibleTo(Sender))
	require.True(t, DeletedBySender.VisibleTo(Recipient))
	require.True(t, DeletedByRecipient.VisibleTo(Sender))
	require.False(t, DeletedByRecipient.VisibleTo(Recipient))
	require.False(t, DeletedByBoth.VisibleTo(Sender))
	require.False(t, DeletedByBoth.VisibleTo(Recipient))
	require.False(t, Visible.VisibleTo(0))
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []DeleteState{Visible, DeletedBySender, DeletedByRecipient, DeletedByBoth} {
		var m storage.Message
		s.apply(&m)
		require.Equal(t, s, StateOf(m))
	}
	require.True(t, DeletedByBoth.Purge())
	require.False(t, DeletedBySender.Purge())
}

func TestStateText(t *testing.T) {
	t.Parallel()

	text, err := DeletedByRecipient.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "deleted_by_recipient", string(text))
	require.Equal(t, "purged", DeletedByBoth.String())
	require.Equal(t, "unknown", DeleteState(42).String())
}

func TestSideOf(t *testing.T) {
	t.Parallel()

	m := storage.Message{SenderUsername: "alice", RecipientUsername: "bob"}
	require.Equal(t, Sender, sideOf(m, "alice"))
	require.Equal(t, Recipient, sideOf(m, "bob"))
	require.Equal(t, Side(0), sideOf(m, "carol"))
}
