package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// SubscribeTimeout bounds the Redis subscribe handshake on a user's first connection.
	SubscribeTimeout = 5 * time.Second
)

// Realtime event names.
const (
	EventApprovalDecided    = "approval.decided"
	EventEventStatusChanged = "event.status_changed"
	EventEventAssigned      = "event.assigned"
	EventMeetingScheduled   = "meeting.scheduled"
)

// Hub maintains user_id -> set of connections. With a Publisher configured, Notify publishes to
// Redis and every instance delivers from its subscription, so each connection sees a message once.
type Hub struct {
	// userID -> map[clientID]*Client
	users    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per user
	pending  map[uuid.UUID]bool   // subscribe in flight
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    Publisher
	redisSub Subscriber
}

// Publisher publishes a user's events to other instances.
type Publisher interface {
	PublishUserEvent(ctx context.Context, userID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a user's channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeUser(ctx context.Context, userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		pending:  make(map[uuid.UUID]bool),
		logger:   logger,
		redis:    pub,
		redisSub: sub,
	}
}

// Register adds a client to its user's room. The Redis subscription for the user is started
// outside the lock; a failed subscribe is retried by the user's next Register.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
	}
	h.users[c.UserID][c.ID] = c
	subscribe := h.redisSub != nil && h.subs[c.UserID] == nil && !h.pending[c.UserID]
	if subscribe {
		h.pending[c.UserID] = true
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))

	if subscribe {
		h.subscribe(c.UserID)
	}
}

func (h *Hub) subscribe(userID uuid.UUID) {
	ctx, cancelCtx := context.WithTimeout(context.Background(), SubscribeTimeout)
	defer cancelCtx()
	cancel, err := h.redisSub.SubscribeUser(ctx, userID, func(event string, payload []byte) {
		h.Deliver(userID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, userID)
	if err != nil {
		h.logger.Warn("redis subscribe failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if len(h.users[userID]) == 0 {
		// every client left while subscribing
		cancel()
		return
	}
	h.subs[userID] = cancel
}

// subscribed reports whether Redis messages for userID reach this instance.
func (h *Hub) subscribed(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[userID] != nil
}

// Unregister removes a client. Cancels the Redis subscription when the user's last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

// Deliver sends a message to the local connections of a user.
func (h *Hub) Deliver(userID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode realtime payload", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping message", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}

// Notify sends an event to every connection of the given users on all instances.
func (h *Hub) Notify(ctx context.Context, userIDs []uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode realtime payload", zap.String("event", event), zap.Error(err))
		return
	}
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		if h.redis == nil {
			h.Deliver(id, event, json.RawMessage(data))
			continue
		}
		if err := h.redis.PublishUserEvent(ctx, id, event, data); err != nil {
			h.logger.Warn("redis publish failed, delivering locally", zap.String("user_id", id.String()), zap.Error(err))
			h.Deliver(id, event, json.RawMessage(data))
			continue
		}
		if !h.subscribed(id) {
			// local clients without a subscription would miss the published copy
			h.Deliver(id, event, json.RawMessage(data))
		}
	}
}

// Connections returns the number of local connections of a user.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
