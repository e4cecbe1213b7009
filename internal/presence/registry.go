package presence

import (
	"sort"
	"sync"
)

// Snapshot is the sorted list of online usernames at some registry version.
// Version grows with every change of the connection sets so receivers can discard out of order lists.
type Snapshot struct {
	Usernames []string `json:"usernames"`
	Version   uint64   `json:"version"`
}

// Registry tracks live connection ids per username.
// It is safe for concurrent use; every operation runs under a single mutex.
type Registry struct {
	mu      sync.Mutex
	users   map[string]map[string]struct{}
	conns   int
	version uint64
}

// NewRegistry returns an empty Registry
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]struct{})}
}

// Connect adds connID to the username's connection set.
// Adding the same pair twice does not duplicate it.
// It returns the snapshot taken right after the change and whether username was offline before.
func (r *Registry) Connect(username, connID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[username]
	if !ok {
		set = make(map[string]struct{})
		r.users[username] = set
	}
	if _, dup := set[connID]; !dup {
		set[connID] = struct{}{}
		r.conns++
		r.version++
	}

	return r.snapshot(), !ok
}

// Disconnect removes connID from the username's connection set and forgets username once the set is empty.
// Unknown usernames and connection ids are ignored.
// It returns the snapshot taken right after the change and whether username went offline.
func (r *Registry) Disconnect(username, connID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wentOffline := false
	if set, ok := r.users[username]; ok {
		if _, found := set[connID]; found {
			delete(set, connID)
			r.conns--
			r.version++
		}
		if len(set) == 0 {
			delete(r.users, username)
			wentOffline = true
		}
	}

	return r.snapshot(), wentOffline
}

// ListOnlineUsers returns usernames with at least one connection in ascending order
func (r *Registry) ListOnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot().Usernames
}

// Snapshot returns the current online list with its version
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot()
}

// IsOnline reports whether username holds at least one connection
func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.users[username]
	return ok
}

// Connections returns the number of live connections of username
func (r *Registry) Connections(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users[username])
}

// Totals returns number of online users and number of live connections
func (r *Registry) Totals() (users, conns int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users), r.conns
}

// snapshot must be called with r.mu held
func (r *Registry) snapshot() Snapshot {
	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)

	return Snapshot{Usernames: names, Version: r.version}
}
