package server

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"net/http"
	"social-backend/internal/presence"
	"strconv"
	"time"
)

const (
	// time allowed to write an event to the peer
	writeWait = 10 * time.Second
	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// must be less than pongWait
	pingPeriod = pongWait * 9 / 10
	// clients are not expected to send anything but control frames
	maxInboundSize = 512
	// time allowed for the peer to answer a close frame sent on shutdown
	closeGracePeriod = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// presenceStream handles websocket requests on "/presence/ws" endpoint.
// The connection stays registered as online until either side closes it.
func (h *handler) presenceStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil || userID < 1 {
		http.Error(w, `Query parameter "user" must be a valid id greater than zero`, http.StatusBadRequest)
		return
	}

	user, err := h.actingUser(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Debugf("upgrading presence connection of user (%s): %v", user.Username, err)
		return
	}
	defer conn.Close()

	sub := h.hub.Connect(user.Username, uuid.NewString())
	h.touch(r.Context(), userID)

	done := make(chan struct{})
	go h.writePresence(conn, sub, done)

	h.readPresence(conn, sub)

	h.hub.Disconnect(sub)
	<-done
}

// readPresence consumes inbound frames until the connection fails or is closed
func (h *handler) readPresence(conn *websocket.Conn, sub *presence.Subscriber) {
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugf("presence connection %s of user (%s) closed: %v", sub.ConnID, sub.Username, err)
			}
			return
		}
	}
}

// writePresence delivers queued events to the peer and keeps the connection alive with pings
func (h *handler) writePresence(conn *websocket.Conn, sub *presence.Subscriber, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case e, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the queue; readPresence returns on the peer's close reply or once the grace period ends
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				time.AfterFunc(closeGracePeriod, func() { _ = conn.Close() })
				return
			}

			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debugf("writing %s event to connection %s: %v", e.Type, sub.ConnID, err)
				// unblocks readPresence
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
