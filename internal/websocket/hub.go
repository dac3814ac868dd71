// Package websocket pushes attendance and directory events to connected admin dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"attendance/internal/identity"
	"attendance/internal/logger"
	"attendance/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Event types pushed to admin dashboards
const (
	EventCheckIn         = "attendance.check_in"
	EventCheckOut        = "attendance.check_out"
	EventAttendanceClear = "attendance.cleared"
	EventUserRoleChanged = "user.role_changed"
	EventUserDeactivated = "user.deactivated"
	EventDirectorySynced = "user.synced"
)

const (
	broadcastQueue = 64
	clientQueue    = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// Dashboards only listen; anything bigger than a close frame is noise
	maxInbound = 512
)

// Event is one live update. Every websocket frame carries exactly one Event.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// AdminResolver loads the directory user behind a subject and rejects non-admins.
type AdminResolver interface {
	RequireAdmin(ctx context.Context, subjectID string) (*model.User, error)
}

// subscriber is one connected dashboard.
type subscriber struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// Hub fans events out to every subscriber. Only Run touches the subscriber set's channels.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	broadcast   chan []byte
	join        chan *subscriber
	leave       chan *subscriber
	log         logger.Logger
	origins     map[string]struct{}
	upgrader    websocket.Upgrader
}

// NewHub accepts browser handshakes from its own host and from allowedOrigins,
// normally the CORS origins. "*" admits every origin.
func NewHub(log logger.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	h := &Hub{
		subscribers: make(map[*subscriber]struct{}),
		broadcast:   make(chan []byte, broadcastQueue),
		join:        make(chan *subscriber),
		leave:       make(chan *subscriber),
		log:         log,
		origins:     make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

// originAllowed guards the session cookie against cross-site handshakes. Requests without
// an Origin header do not come from a browser and carry their token explicitly.
func (h *Hub) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	if _, ok := h.origins[strings.ToLower(origin)]; ok {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// Publish queues an event for every subscriber. It never blocks the caller: when the
// queue is full the event is dropped, a dashboard refresh recovers it.
func (h *Hub) Publish(eventType string, payload any) {
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		h.log.Error("failed to encode websocket event", "type", eventType, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("websocket broadcast queue full, dropping event", "type", eventType)
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Run dispatches until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subscribers {
				h.drop(s)
			}
			h.mu.Unlock()
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subscribers[s] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("dashboard connected", "user_id", s.userID)

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subscribers[s]; ok {
				h.drop(s)
				h.log.Debug("dashboard disconnected", "user_id", s.userID)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for s := range h.subscribers {
				select {
				case s.send <- msg:
				default:
					// A subscriber this far behind is gone or stuck
					h.drop(s)
					h.log.Warn("dropping slow dashboard", "user_id", s.userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(s *subscriber) {
	delete(h.subscribers, s)
	close(s.send)
}

// writeLoop sends queued events one per frame and pings to detect dead peers.
func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames; it exists to process pongs and notice disconnects.
func (s *subscriber) readLoop(ctx context.Context) {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-ctx.Done():
		}
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxInbound)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Warn("dashboard connection lost", "user_id", s.userID, "error", err)
			}
			return
		}
	}
}

// ServeWs upgrades requests from active admins. Browsers cannot set headers on a websocket
// handshake, so the token may also come in the "token" query parameter.
func ServeWs(ctx context.Context, hub *Hub, c *gin.Context, auth identity.Authenticator, admins AdminResolver) {
	if !hub.originAllowed(c.Request) {
		hub.log.Warn("websocket rejected: origin not allowed", "origin", c.GetHeader("Origin"))
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	token := identity.TokenFromRequest(c.Request)
	if token == "" {
		token = c.Query("token")
	}

	id, err := auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		hub.log.Debug("websocket rejected: invalid session", "error", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	// The role comes from the directory, a promoted or demoted admin is honored at once
	user, err := admins.RequireAdmin(c.Request.Context(), id.SubjectID)
	if err != nil {
		hub.log.Debug("websocket rejected: not an active admin", "subject", id.SubjectID)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{hub: hub, conn: conn, send: make(chan []byte, clientQueue), userID: user.ID.String()}
	select {
	case hub.join <- s:
	case <-ctx.Done():
		_ = conn.Close()
		return
	}
	go s.writeLoop()
	go s.readLoop(ctx)
}
