package presence

import (
	"go.uber.org/zap"
	"social-backend/internal/metrics"
	"sync"
)

// Config defines fields used for parsing presence settings from environment variables
type Config struct {
	QueueSize int `env:"PRESENCE_QUEUE_SIZE" envDefault:"16"`
}

// Option alters the default configuration of a Hub
type Option interface {
	apply(*Hub)
}

type optionFunc func(h *Hub)

func (f optionFunc) apply(h *Hub) { f(h) }

// QueueSize sets capacity of each subscriber queue
func QueueSize(n int) Option {
	return optionFunc(func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	})
}

// WithConfig applies Config parsed from environment
func WithConfig(cfg Config) Option {
	return QueueSize(cfg.QueueSize)
}

// Hub turns registry changes into presence events and fans them out to subscribers.
// Events are enqueued after the registry lock is released; a full queue drops the event
// for that subscriber only.
type Hub struct {
	logger    *zap.SugaredLogger
	registry  *Registry
	queueSize int

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// NewHub returns Hub publishing changes of registry
func NewHub(logger *zap.SugaredLogger, registry *Registry, opts ...Option) *Hub {
	h := &Hub{
		logger:      logger,
		registry:    registry,
		queueSize:   16,
		subscribers: make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt.apply(h)
	}
	return h
}

// Registry returns underlying Registry
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers a new live connection and returns its Subscriber.
// Every other subscriber receives user-online, then every subscriber including the new one
// receives the refreshed online-users list.
func (h *Hub) Connect(username, connID string) *Subscriber {
	sub := newSubscriber(username, connID, h.queueSize)

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	snap, cameOnline := h.registry.Connect(username, connID)
	h.logger.Debugf("Connection %s of user (%s) registered, came online: %v", connID, username, cameOnline)
	h.observe()

	h.publish(h.others(sub), userOnline(username))
	h.publish(h.all(), onlineUsers(snap))

	return sub
}

// Disconnect unregisters the subscriber's connection and closes its queue.
// Remaining subscribers receive user-offline followed by the refreshed online-users list.
// Disconnecting twice is harmless.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	_, attached := h.subscribers[sub]
	delete(h.subscribers, sub)
	h.mu.Unlock()
	if !attached {
		return
	}
	sub.close()

	snap, wentOffline := h.registry.Disconnect(sub.Username, sub.ConnID)
	h.logger.Debugf("Connection %s of user (%s) unregistered, went offline: %v", sub.ConnID, sub.Username, wentOffline)
	h.observe()

	targets := h.all()
	h.publish(targets, userOffline(sub.Username))
	h.publish(targets, onlineUsers(snap))
}

// Online returns sorted usernames of online users
func (h *Hub) Online() []string {
	return h.registry.ListOnlineUsers()
}

// Subscribers returns number of attached subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close detaches and closes all subscribers without emitting events; used on shutdown
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
		h.registry.Disconnect(sub.Username, sub.ConnID)
	}
	h.observe()
}

func (h *Hub) all() []*Subscriber {
	return h.others(nil)
}

func (h *Hub) others(except *Subscriber) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		if sub != except {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (h *Hub) publish(subs []*Subscriber, e Event) {
	for _, sub := range subs {
		if sub.offer(e) {
			metrics.PresenceEventsSent.WithLabelValues(string(e.Type)).Inc()
			continue
		}
		metrics.PresenceEventsDropped.WithLabelValues(string(e.Type)).Inc()
		h.logger.Warnf("Dropped %s event for connection %s of user (%s)", e.Type, sub.ConnID, sub.Username)
	}
}

func (h *Hub) observe() {
	users, conns := h.registry.Totals()
	metrics.OnlineUsers.Set(float64(users))
	metrics.LiveConnections.Set(float64(conns))
}
