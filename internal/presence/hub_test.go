package presence

import (
	"fmt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"testing"
)

func newTestHub(t *testing.T, opts ...Option) *Hub {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return NewHub(logger.Sugar(), NewRegistry(), opts...)
}

// drain returns all events currently queued for sub
func drain(sub *Subscriber) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestHubConnectNotifiesOthersThenEveryone(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	alice := h.Connect("alice", "a1")

	events := drain(alice)
	require.Len(t, events, 1)
	require.Equal(t, OnlineUsers, events[0].Type)
	require.Equal(t, []string{"alice"}, events[0].Usernames)

	bob := h.Connect("bob", "b1")

	events = drain(alice)
	require.Len(t, events, 2)
	require.Equal(t, Event{Type: UserOnline, Username: "bob"}, events[0])
	require.Equal(t, OnlineUsers, events[1].Type)
	require.Equal(t, []string{"alice", "bob"}, events[1].Usernames)

	// the connecting party only gets the list
	events = drain(bob)
	require.Len(t, events, 1)
	require.Equal(t, OnlineUsers, events[0].Type)
	require.Equal(t, []string{"alice", "bob"}, events[0].Usernames)
}

func TestHubConnectNotifiesOwnOtherTabs(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	tab1 := h.Connect("carol", "t1")
	drain(tab1)

	tab2 := h.Connect("carol", "t2")
	events := drain(tab1)
	require.Len(t, events, 2)
	require.Equal(t, Event{Type: UserOnline, Username: "carol"}, events[0])
	require.Equal(t, []string{"carol"}, events[1].Usernames)

	events = drain(tab2)
	require.Len(t, events, 1)
	require.Equal(t, OnlineUsers, events[0].Type)
}

func TestHubDisconnectNotifiesRemaining(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	alice := h.Connect("alice", "a1")
	bob := h.Connect("bob", "b1")
	drain(alice)
	drain(bob)

	h.Disconnect(bob)

	events := drain(alice)
	require.Len(t, events, 2)
	require.Equal(t, Event{Type: UserOffline, Username: "bob"}, events[0])
	require.Equal(t, OnlineUsers, events[1].Type)
	require.Equal(t, []string{"alice"}, events[1].Usernames)

	_, ok := <-bob.Events()
	require.False(t, ok, "queue of disconnected subscriber must be closed")
	require.Equal(t, []string{"alice"}, h.Online())
}

func TestHubDisconnectOneOfSeveralTabsKeepsUserOnline(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	observer := h.Connect("zed", "z")
	tab1 := h.Connect("dave", "d1")
	tab2 := h.Connect("dave", "d2")
	drain(observer)
	drain(tab1)
	drain(tab2)

	h.Disconnect(tab1)

	events := drain(observer)
	require.Len(t, events, 2)
	require.Equal(t, UserOffline, events[0].Type)
	require.Equal(t, []string{"dave", "zed"}, events[1].Usernames)

	events = drain(tab2)
	require.Len(t, events, 2)
	require.Equal(t, []string{"dave", "zed"}, events[1].Usernames)
}

func TestHubDisconnectTwiceIsNoop(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	alice := h.Connect("alice", "a1")
	bob := h.Connect("bob", "b1")
	drain(alice)

	h.Disconnect(bob)
	require.Len(t, drain(alice), 2)

	h.Disconnect(bob)
	require.Empty(t, drain(alice))
	require.Equal(t, 1, h.Subscribers())
}

func TestHubSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, QueueSize(2))
	slow := h.Connect("slow", "s") // never drained
	fast := h.Connect("fast", "f")

	for i := 0; i < 10; i++ {
		drain(fast)
		other := h.Connect("user", "u")
		events := drain(fast)
		require.Len(t, events, 2)
		require.Equal(t, UserOnline, events[0].Type)
		h.Disconnect(other)
	}

	require.Len(t, drain(slow), 2)
	require.Equal(t, []string{"fast", "slow"}, h.Online())
}

func TestHubOnlineUsersVersionIncreases(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	alice := h.Connect("alice", "a1")
	first := drain(alice)
	h.Connect("bob", "b1")
	second := drain(alice)

	require.Greater(t, second[1].Version, first[0].Version)
}

func TestHubClose(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	a := h.Connect("alice", "a1")
	h.Connect("bob", "b1")

	h.Close()
	require.Equal(t, 0, h.Subscribers())
	require.Empty(t, h.Online())

	drain(a)
	_, ok := <-a.Events()
	require.False(t, ok)

	// late disconnect from a transport goroutine is harmless
	h.Disconnect(a)
}

func TestHubConcurrentConnectDisconnect(t *testing.T) {
	t.Parallel()

	h := newTestHub(t, QueueSize(1024))

	const workers = 64
	subs := make([]*Subscriber, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := h.Connect(fmt.Sprintf("user%d", i%8), fmt.Sprintf("c%d", i))
			if i%2 == 1 {
				h.Disconnect(sub)
				return
			}
			subs[i] = sub
		}(i)
	}
	wg.Wait()

	users, conns := h.Registry().Totals()
	require.Equal(t, workers/2, h.Subscribers())
	require.Equal(t, h.Subscribers(), conns)
	// even workers map onto even user numbers only
	require.Equal(t, 4, users)
	require.Equal(t, []string{"user0", "user2", "user4", "user6"}, h.Online())

	wg = sync.WaitGroup{}
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		wg.Add(1)
		go func(sub *Subscriber) {
			defer wg.Done()
			h.Disconnect(sub)
		}(sub)
	}
	wg.Wait()

	users, conns = h.Registry().Totals()
	require.Zero(t, h.Subscribers())
	require.Zero(t, conns)
	require.Zero(t, users)
	require.Empty(t, h.Online())
}
