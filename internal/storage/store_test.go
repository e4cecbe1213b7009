package storage

import (
	"context"
	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"os"
	mytesting "social-backend/internal/testing"
	"strings"
	"sync"
	"testing"
	"time"
)

// bootstrap connects to the database described by STORAGE_* variables.
// Tests are skipped unless STORAGE_TEST_POSTGRES is set.
func bootstrap(t *testing.T) *Store {
	if os.Getenv("STORAGE_TEST_POSTGRES") == "" {
		t.Skip("STORAGE_TEST_POSTGRES is not set")
	}

	var cfg Config
	require.NoError(t, env.Parse(&cfg))

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	s, err := New(context.Background(), logger.Sugar(), cfg, ConnectionTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(context.Background()))

	return s
}

func createUsers(t *testing.T, s *Store, n int) []User {
	users := make([]User, n)
	for i := range users {
		name := mytesting.RandString()
		id, err := s.CreateUser(context.Background(), name, name)
		require.NoError(t, err)
		users[i], err = s.UserByID(context.Background(), id)
		require.NoError(t, err)
	}
	return users
}

func TestCreateUser(t *testing.T) {
	s := bootstrap(t)

	username := mytesting.RandString()
	id, err := s.CreateUser(context.Background(), username, "")
	require.NoError(t, err)

	u, err := s.UserByUsername(context.Background(), username)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, NormalizeUsername(username), u.Username)
}

func TestCreateUserExistsIgnoringCase(t *testing.T) {
	s := bootstrap(t)

	username := mytesting.RandString()
	_, err := s.CreateUser(context.Background(), username, "")
	require.NoError(t, err)
	_, err = s.CreateUser(context.Background(), "  "+strings.ToUpper(username)+" ", "")
	require.Equal(t, ErrUserExists, err)
}

func TestUserNotExist(t *testing.T) {
	s := bootstrap(t)

	_, err := s.UserByID(context.Background(), -1)
	require.Equal(t, ErrUserNotExist, err)
	require.Equal(t, ErrUserNotExist, s.TouchLastActive(context.Background(), -1))
}

func TestMessageLifecycle(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)
	a, b := users[0], users[1]

	m := Message{
		SenderID: a.ID, SenderUsername: a.Username,
		RecipientID: b.ID, RecipientUsername: b.Username,
		Content: "hi",
	}
	require.NoError(t, s.CreateMessage(ctx, &m))
	require.NotZero(t, m.ID)

	n, err := s.CountMessages(ctx, MessageFilter{Username: b.Username, Folder: FolderUnread})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	marked, err := s.MarkRead(ctx, []int64{m.ID}, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)
	marked, err = s.MarkRead(ctx, []int64{m.ID}, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(0), marked)

	err = s.UpdateMessage(ctx, m.ID, func(m *Message) (bool, error) {
		m.SenderDeleted = true
		return false, nil
	})
	require.NoError(t, err)

	thread, err := s.MessageThread(ctx, a.Username, b.Username)
	require.NoError(t, err)
	require.Empty(t, thread)
	thread, err = s.MessageThread(ctx, b.Username, a.Username)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	require.NotNil(t, thread[0].ReadAt)

	err = s.UpdateMessage(ctx, m.ID, func(m *Message) (bool, error) {
		m.RecipientDeleted = true
		return true, nil
	})
	require.NoError(t, err)

	_, err = s.MessageByID(ctx, m.ID)
	require.Equal(t, ErrMessageNotExist, err)
}

func TestToggleLike(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)

	liked, err := s.ToggleLike(ctx, users[0].ID, users[1].ID)
	require.NoError(t, err)
	require.True(t, liked)

	ids, err := s.LikedIDs(ctx, users[0].ID)
	require.NoError(t, err)
	require.Equal(t, []int64{users[1].ID}, ids)

	liked, err = s.ToggleLike(ctx, users[0].ID, users[1].ID)
	require.NoError(t, err)
	require.False(t, liked)

	_, err = s.ToggleLike(ctx, users[0].ID, -1)
	require.Equal(t, ErrUserNotExist, err)
}

func TestToggleLikeConcurrent(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	users := createUsers(t, s, 2)

	const n = 31
	var wg sync.WaitGroup
	results := make([]bool, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ToggleLike(ctx, users[0].ID, users[1].ID)
		}(i)
	}
	wg.Wait()

	liked := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] {
			liked++
		}
	}
	require.Equal(t, n/2+1, liked)

	ids, err := s.LikedIDs(ctx, users[0].ID)
	require.NoError(t, err)
	require.Equal(t, []int64{users[1].ID}, ids)
}

func TestListMembers(t *testing.T) {
	s := bootstrap(t)
	ctx := context.Background()
	users := createUsers(t, s, 3)

	count, err := s.CountMembers(ctx, users[0].ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 2)

	members, err := s.ListMembers(ctx, users[0].ID, MembersByLastActive, 0, count)
	require.NoError(t, err)
	require.Len(t, members, count)
	for i, m := range members {
		require.NotEqual(t, users[0].ID, m.ID)
		if i > 0 {
			require.False(t, m.LastActive.After(members[i-1].LastActive))
		}
	}

	members, err = s.ListMembers(ctx, users[0].ID, MembersByCreated, 0, 2)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.False(t, members[1].CreatedAt.After(members[0].CreatedAt))
}

func TestMemberOrderBy(t *testing.T) {
	require.Contains(t, memberOrderBy(MembersByCreated), "created_at desc")
	require.Contains(t, memberOrderBy(MembersByLastActive), "last_active desc")
	require.Contains(t, memberOrderBy(MemberOrder("anything")), "last_active desc")
}

func TestSeedUsers(t *testing.T) {
	s := bootstrap(t)

	batch := []User{{Username: mytesting.RandString()}, {Username: mytesting.RandString(), KnownAs: "x"}}
	n, err := s.SeedUsers(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	_, err = s.SeedUsers(context.Background(), batch[:1])
	require.Equal(t, ErrUserExists, err)
}

func TestSeedRows(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := seedRows([]User{{Username: " Ann ", CreatedAt: created}, {Username: "bo"}})

	require.Equal(t, "ann", rows[0].username)
	require.Equal(t, created, rows[0].createdAt)
	require.Equal(t, created, rows[0].lastActive)
	require.False(t, rows[1].createdAt.IsZero())
}

func TestFolderCondition(t *testing.T) {
	require.Contains(t, folderCondition(FolderInbox), "recipient_deleted = false")
	require.Contains(t, folderCondition(FolderOutbox), "sender_deleted = false")
	require.Contains(t, folderCondition(Folder("anything")), "read_at is null")
}
