package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"path"},
	)

	// Presence metrics
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_presence_online_users",
			Help: "Users holding at least one live connection",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_presence_connections",
			Help: "Live presence connections",
		},
	)

	PresenceEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_presence_events_sent_total",
			Help: "Presence events queued for delivery",
		},
		[]string{"type"},
	)

	PresenceEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_presence_events_dropped_total",
			Help: "Presence events dropped because a subscriber queue was full or closed",
		},
		[]string{"type"},
	)

	// Mailbox metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_messages_sent_total",
			Help: "Total direct messages sent",
		},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_messages_marked_read_total",
			Help: "Messages marked read by thread fetches",
		},
	)

	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_messages_deleted_total",
			Help: "Message delete actions by resulting state",
		},
		[]string{"state"},
	)

	// Likes metrics
	LikesToggled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_likes_toggled_total",
			Help: "Like toggles by resulting state",
		},
		[]string{"result"}, // "liked" or "unliked"
	)
)
