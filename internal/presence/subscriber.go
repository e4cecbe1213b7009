package presence

import "sync"

// Subscriber is a live connection attached to a Hub with its own outbound queue
type Subscriber struct {
	Username string
	ConnID   string

	mu     sync.Mutex
	closed bool
	events chan Event
}

func newSubscriber(username, connID string, size int) *Subscriber {
	return &Subscriber{
		Username: username,
		ConnID:   connID,
		events:   make(chan Event, size),
	}
}

// Events returns the queue of pending events; it is closed once the subscriber is disconnected
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// offer enqueues e without blocking and reports whether it was accepted
func (s *Subscriber) offer(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
