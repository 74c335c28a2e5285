package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"courier/internal/crash"
	"courier/internal/logger"
)

// Hub holds live connections per user and fans notification payloads out to
// them. With a Redis client attached, payloads are relayed through pub/sub
// so users connected to other instances receive them too.
type Hub struct {
	// id distinguishes this instance on the relay channel; pub/sub echoes
	// every publish back to the publisher, which must not deliver twice.
	id  string
	rdb *redis.Client

	clients    map[uint]map[*Client]bool // userID -> set of connections
	register   chan *Client
	unregister chan *Client
	broadcast  chan *envelope
}

// relayFrame is the wire format on the notify channels.
type relayFrame struct {
	Source  string          `json:"src"`
	Payload json.RawMessage `json:"data"`
}

type envelope struct {
	userID  uint
	payload []byte
	// local marks payloads that arrived over Redis and must not be
	// republished.
	local bool
}

// NewHub starts the hub loop. rdb may be nil for single-instance setups.
func NewHub(rdb *redis.Client) *Hub {
	h := &Hub{
		id:         uuid.NewString(),
		rdb:        rdb,
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *envelope, 256),
	}
	crash.SafeGoroutine("ws-hub", h.run)
	if rdb != nil {
		crash.SafeGoroutine("ws-hub-redis", h.subscribeRedis)
	}
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			if _, ok := h.clients[c.userID]; !ok {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			h.clients[c.userID][c] = true
			logger.Debugf("ws client registered for user %d", c.userID)

		case c := <-h.unregister:
			if conns, ok := h.clients[c.userID]; ok {
				if _, exists := conns[c]; exists {
					delete(conns, c)
					close(c.send)
				}
				if len(conns) == 0 {
					delete(h.clients, c.userID)
				}
			}

		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

func (h *Hub) deliver(m *envelope) {
	conns, ok := h.clients[m.userID]
	if ok {
		for c := range conns {
			select {
			case c.send <- m.payload:
			default:
				close(c.send)
				delete(conns, c)
			}
		}
	}

	if h.rdb != nil && !m.local {
		channel := fmt.Sprintf("notify:%d", m.userID)
		frame, err := h.encodeRelay(m.payload)
		if err != nil {
			logger.Warningf("Error encoding relay frame for %s: %v", channel, err)
			return
		}
		if err := h.rdb.Publish(context.Background(), channel, frame).Err(); err != nil {
			logger.Warningf("Error publishing to %s: %v", channel, err)
		}
	}
}

// encodeRelay wraps a payload with this instance's ID for pub/sub.
func (h *Hub) encodeRelay(payload []byte) ([]byte, error) {
	return json.Marshal(relayFrame{Source: h.id, Payload: payload})
}

// decodeRelay unwraps a relay frame, reporting ok=false for frames this
// instance published itself or cannot parse.
func (h *Hub) decodeRelay(data []byte) ([]byte, bool) {
	var frame relayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Warningf("Malformed relay frame: %v", err)
		return nil, false
	}
	if frame.Source == h.id {
		return nil, false
	}
	return frame.Payload, true
}

// subscribeRedis relays notifications published by other instances into
// the local broadcast loop.
func (h *Hub) subscribeRedis() {
	pubsub := h.rdb.PSubscribe(context.Background(), "notify:*")
	for msg := range pubsub.Channel() {
		idStr := strings.TrimPrefix(msg.Channel, "notify:")
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			logger.Warningf("Malformed notify channel %q", msg.Channel)
			continue
		}
		payload, ok := h.decodeRelay([]byte(msg.Payload))
		if !ok {
			continue
		}
		h.broadcast <- &envelope{userID: uint(id), payload: payload, local: true}
	}
}

// RegisterClient attaches a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient detaches a connection from the hub.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// PushToUser enqueues a payload for delivery to all of a user's
// connections. Implements the notification service's Pusher.
func (h *Hub) PushToUser(userID uint, payload []byte) {
	select {
	case h.broadcast <- &envelope{userID: userID, payload: payload}:
	default:
		logger.Warningf("ws broadcast buffer full, dropping payload for user %d", userID)
	}
}
