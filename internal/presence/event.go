package presence

import "encoding/json"

// EventType names a presence event on the wire
type EventType string

const (
	UserOnline  EventType = "user-online"
	UserOffline EventType = "user-offline"
	OnlineUsers EventType = "online-users"
)

// Event is a single presence notification delivered to a subscriber
type Event struct {
	Type      EventType `json:"type"`
	Username  string    `json:"username,omitempty"`
	Usernames []string  `json:"usernames,omitempty"`
	Version   uint64    `json:"version,omitempty"`
}

// MarshalJSON always renders the list of an online-users event, even when nobody is online
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Type != OnlineUsers {
		return json.Marshal(plain(e))
	}

	usernames := e.Usernames
	if usernames == nil {
		usernames = []string{}
	}
	return json.Marshal(struct {
		Type      EventType `json:"type"`
		Usernames []string  `json:"usernames"`
		Version   uint64    `json:"version"`
	}{e.Type, usernames, e.Version})
}

func userOnline(username string) Event {
	return Event{Type: UserOnline, Username: username}
}

func userOffline(username string) Event {
	return Event{Type: UserOffline, Username: username}
}

func onlineUsers(s Snapshot) Event {
	return Event{Type: OnlineUsers, Usernames: s.Usernames, Version: s.Version}
}
