package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Live check-in events pushed to event rooms.
const (
	EventCheckIn    = "check_in"
	EventCheckOut   = "check_out"
	EventCheckInAll = "check_in_all"
)

// Hub maintains event_id -> set of connections and broadcasts check-in updates.
// With a Redis bridge, publishes go through Redis so every instance delivers them exactly once.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	pending  map[uuid.UUID]bool
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes an event room message for other instances.
type RedisPublisher interface {
	PublishEvent(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to an event room channel.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		pending:  make(map[uuid.UUID]bool),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its event room and makes sure the room has a Redis subscription.
// A subscription that failed earlier is retried by the next client to join.
func (h *Hub) Register(c *Client) {
	eventID := c.EventID
	h.mu.Lock()
	if h.rooms[eventID] == nil {
		h.rooms[eventID] = make(map[string]*Client)
	}
	h.rooms[eventID][c.ID] = c
	subscribe := h.redisSub != nil && h.subs[eventID] == nil && !h.pending[eventID]
	if subscribe {
		h.pending[eventID] = true
	}
	h.mu.Unlock()
	h.logger.Debug("client joined event room", zap.String("client_id", c.ID), zap.String("event_id", eventID.String()))

	if subscribe {
		h.subscribe(eventID)
	}
}

// subscribe runs outside h.mu since SubscribeEvent waits on Redis.
func (h *Hub) subscribe(eventID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeEvent(eventID, func(event string, payload []byte) {
		h.Broadcast(eventID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	delete(h.pending, eventID)
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("redis subscribe failed, room served locally", zap.String("event_id", eventID.String()), zap.Error(err))
		return
	}
	if len(h.rooms[eventID]) == 0 {
		// everyone left while subscribing
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[eventID] = cancel
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. The last client out cancels the Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.rooms[c.EventID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := m[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	close(c.send)
	var cancel func()
	if len(m) == 0 {
		delete(h.rooms, c.EventID)
		cancel = h.subs[c.EventID]
		delete(h.subs, c.EventID)
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client left event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to the clients of an event room on this instance.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode ws payload", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow consumer, drop
		}
	}
}

// Publish delivers an event to every connected client of the room across instances.
// Without Redis, or when Redis rejects the publish, it falls back to a local broadcast.
// Local clients of a room whose subscription is down get a local copy as well.
func (h *Hub) Publish(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode ws payload", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		err := h.redis.PublishEvent(eventID, event, data)
		if err == nil && h.subscribed(eventID) {
			return
		}
		if err != nil {
			h.logger.Warn("redis publish failed, broadcasting locally", zap.String("event_id", eventID.String()), zap.Error(err))
		}
	}
	h.Broadcast(eventID, event, json.RawMessage(data))
}

// subscribed reports whether local clients of the room are reached through Redis.
// An empty room counts as subscribed so nothing is broadcast locally.
func (h *Hub) subscribed(eventID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.rooms[eventID]) == 0 {
		return true
	}
	_, ok := h.subs[eventID]
	return ok
}

// ViewerCount returns the number of clients connected to an event room on this instance.
func (h *Hub) ViewerCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
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
