package sqlite

import (
	"context"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"path/filepath"
	"social-backend/internal/storage"
	mytesting "social-backend/internal/testing"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	s, err := Open(context.Background(), logger.Sugar(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUsers(t *testing.T, s *Store, n int) []storage.User {
	t.Helper()

	users := make([]storage.User, 0, n)
	for _, name := range mytesting.RandStrings(n) {
		id, err := s.CreateUser(context.Background(), name, name)
		require.NoError(t, err)
		u, err := s.UserByID(context.Background(), id)
		require.NoError(t, err)
		users = append(users, u)
	}
	return users
}

func send(t *testing.T, s *Store, from, to storage.User, at time.Time) storage.Message {
	t.Helper()

	m := storage.Message{
		SenderID:          from.ID,
		SenderUsername:    from.Username,
		RecipientID:       to.ID,
		RecipientUsername: to.Username,
		Content:           mytesting.RandString(),
		SentAt:            at,
	}
	require.NoError(t, s.CreateMessage(context.Background(), &m))
	return m
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "social.db")
	s, err := Open(context.Background(), logger.Sugar(), path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	// schema is applied idempotently
	s, err = Open(context.Background(), logger.Sugar(), path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), logger.Sugar(), " ")
	require.Error(t, err)
}

func TestUsers(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	username := mytesting.RandString()
	id, err := s.CreateUser(ctx, strings.ToUpper(username), "Known")
	require.NoError(t, err)

	u, err := s.UserByUsername(ctx, username)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, username, u.Username)
	require.Equal(t, "Known", u.KnownAs)

	_, err = s.CreateUser(ctx, " "+username, "")
	require.Equal(t, storage.ErrUserExists, err)

	_, err = s.UserByID(ctx, id+1)
	require.Equal(t, storage.ErrUserNotExist, err)

	require.NoError(t, s.TouchLastActive(ctx, id))
	require.Equal(t, storage.ErrUserNotExist, s.TouchLastActive(ctx, id+1))
}

func TestSeedUsers(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	names := mytesting.RandStrings(3)
	created := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	n, err := s.SeedUsers(ctx, []storage.User{
		{Username: names[0], CreatedAt: created},
		{Username: names[1]},
		{Username: names[2], KnownAs: "x"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	u, err := s.UserByUsername(ctx, names[0])
	require.NoError(t, err)
	require.True(t, u.CreatedAt.Equal(created))
	require.True(t, u.LastActive.Equal(created))

	// a duplicate rolls back the whole batch
	_, err = s.SeedUsers(ctx, []storage.User{{Username: "fresh"}, {Username: names[1]}})
	require.Equal(t, storage.ErrUserExists, err)
	_, err = s.UserByUsername(ctx, "fresh")
	require.Equal(t, storage.ErrUserNotExist, err)
}

func TestMessageFolders(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)
	alice, bob := users[0], users[1]

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := send(t, s, alice, bob, base)
	second := send(t, s, alice, bob, base.Add(time.Minute))
	reply := send(t, s, bob, alice, base.Add(2*time.Minute))

	count, err := s.CountMessages(ctx, storage.MessageFilter{Username: bob.Username, Folder: storage.FolderUnread})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	list, err := s.ListMessages(ctx, storage.MessageFilter{Username: bob.Username, Folder: storage.FolderInbox}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []storage.Message{second, first}, list)

	list, err = s.ListMessages(ctx, storage.MessageFilter{Username: bob.Username, Folder: storage.FolderInbox}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, []storage.Message{first}, list)

	list, err = s.ListMessages(ctx, storage.MessageFilter{Username: bob.Username, Folder: storage.FolderOutbox}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []storage.Message{reply}, list)

	thread, err := s.MessageThread(ctx, alice.Username, bob.Username)
	require.NoError(t, err)
	require.Equal(t, []storage.Message{first, second, reply}, thread)
}

func TestMarkRead(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)

	now := time.Now()
	m1 := send(t, s, users[0], users[1], now)
	m2 := send(t, s, users[0], users[1], now)

	n, err := s.MarkRead(ctx, nil, now)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.MarkRead(ctx, []int64{m1.ID, m2.ID}, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = s.MarkRead(ctx, []int64{m1.ID, m2.ID}, now.Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	stored, err := s.MessageByID(ctx, m1.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReadAt)
	require.Equal(t, now.UnixMilli(), stored.ReadAt.UnixMilli())
}

func TestUpdateMessage(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)
	m := send(t, s, users[0], users[1], time.Now())

	err := s.UpdateMessage(ctx, m.ID, func(m *storage.Message) (bool, error) {
		m.SenderDeleted = true
		return false, nil
	})
	require.NoError(t, err)

	stored, err := s.MessageByID(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, stored.SenderDeleted)
	require.False(t, stored.RecipientDeleted)

	thread, err := s.MessageThread(ctx, users[0].Username, users[1].Username)
	require.NoError(t, err)
	require.Empty(t, thread)

	err = s.UpdateMessage(ctx, m.ID, func(m *storage.Message) (bool, error) {
		return false, storage.ErrMessageNotExist
	})
	require.ErrorIs(t, err, storage.ErrMessageNotExist)

	err = s.UpdateMessage(ctx, m.ID, func(m *storage.Message) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)

	_, err = s.MessageByID(ctx, m.ID)
	require.Equal(t, storage.ErrMessageNotExist, err)

	err = s.UpdateMessage(ctx, m.ID, func(m *storage.Message) (bool, error) {
		t.Fatal("called for missing message")
		return false, nil
	})
	require.Equal(t, storage.ErrMessageNotExist, err)
}

func TestCreateMessageUnknownUser(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	users := createUsers(t, s, 1)

	m := storage.Message{SenderID: users[0].ID, RecipientID: users[0].ID + 1, Content: "x"}
	require.Equal(t, storage.ErrUserNotExist, s.CreateMessage(context.Background(), &m))
}

func TestLikes(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	users := createUsers(t, s, 3)
	a, b, c := users[0].ID, users[1].ID, users[2].ID

	for _, pair := range [][2]int64{{a, b}, {b, a}, {a, c}} {
		liked, err := s.ToggleLike(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.True(t, liked)
	}

	ids, err := s.LikedIDs(ctx, a)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{b, c}, ids)

	count, err := s.CountLikedUsers(ctx, a, storage.LikesMutual)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	mutual, err := s.ListLikedUsers(ctx, a, storage.LikesMutual, 0, 10)
	require.NoError(t, err)
	require.Len(t, mutual, 1)
	require.Equal(t, b, mutual[0].ID)

	likedBy, err := s.ListLikedUsers(ctx, c, storage.LikesLikedBy, 0, 10)
	require.NoError(t, err)
	require.Len(t, likedBy, 1)
	require.Equal(t, a, likedBy[0].ID)

	liked, err := s.ToggleLike(ctx, a, b)
	require.NoError(t, err)
	require.False(t, liked)

	count, err = s.CountLikedUsers(ctx, b, storage.LikesMutual)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = s.ToggleLike(ctx, a, c+100)
	require.Equal(t, storage.ErrUserNotExist, err)

	ids, err = s.LikedIDs(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []int64{}, ids)
}

func TestMarkReadManyIDs(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)

	now := time.Now()
	var sent []int64
	for i := 0; i < 3; i++ {
		sent = append(sent, send(t, s, users[0], users[1], now).ID)
	}

	// more ids than SQLite binds in one statement, spanning every chunk
	ids := make([]int64, 0, 40000)
	for id := int64(1); id <= 40000; id++ {
		ids = append(ids, id)
	}
	n, err := s.MarkRead(ctx, ids, now)
	require.NoError(t, err)
	require.Equal(t, int64(len(sent)), n)

	for _, id := range sent {
		stored, err := s.MessageByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, stored.ReadAt)
	}
}

func TestListMembers(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	names := mytesting.RandStrings(4)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// created order is the reverse of activity order
	_, err := s.SeedUsers(ctx, []storage.User{
		{Username: names[0], CreatedAt: base, LastActive: base.Add(4 * time.Hour)},
		{Username: names[1], CreatedAt: base.Add(time.Hour), LastActive: base.Add(3 * time.Hour)},
		{Username: names[2], CreatedAt: base.Add(2 * time.Hour), LastActive: base.Add(2 * time.Hour)},
		{Username: names[3], CreatedAt: base.Add(3 * time.Hour), LastActive: base.Add(3 * time.Hour)},
	})
	require.NoError(t, err)

	current, err := s.UserByUsername(ctx, names[3])
	require.NoError(t, err)

	count, err := s.CountMembers(ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	byActivity, err := s.ListMembers(ctx, current.ID, storage.MembersByLastActive, 0, 10)
	require.NoError(t, err)
	require.Equal(t, names[:3], memberNames(byActivity))

	byCreated, err := s.ListMembers(ctx, current.ID, storage.MembersByCreated, 0, 10)
	require.NoError(t, err)
	require.Equal(t, mytesting.Reverse(names[:3]), memberNames(byCreated))

	window, err := s.ListMembers(ctx, current.ID, storage.MembersByLastActive, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []string{names[1]}, memberNames(window))
}

func memberNames(users []storage.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}
