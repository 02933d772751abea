package gateway

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/managemate/mmrt/pkg/auth"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ErrHubClosed is returned when registering on a closed hub
var ErrHubClosed = errors.New("hub closed")

// DefaultSendBuffer is the per-connection outbound frame buffer
const DefaultSendBuffer = 64

// Client is one realtime connection as seen by the hub.
// Room membership and the closed flag are owned by the hub's lock.
type Client struct {
	id       string
	identity auth.Identity
	send     chan []byte
	rooms    map[string]struct{}
}

// ID returns the connection identifier
func (c *Client) ID() string { return c.id }

// Identity returns who opened the connection, possibly anonymous
func (c *Client) Identity() auth.Identity { return c.identity }

// Send returns the outbound frame queue. It is closed when the client is unregistered.
func (c *Client) Send() <-chan []byte { return c.send }

// envelope is the frame written to clients
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub tracks connections and their room membership and fans frames out to them
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	closed     bool
	bufferSize int
	log        zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		bufferSize: bufferSize,
		log:        log.WithComponent("gateway"),
	}
}

// NewClient allocates a client for identity; it must be registered before use
func (h *Hub) NewClient(identity auth.Identity) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, h.bufferSize),
		rooms:    make(map[string]struct{}),
	}
}

// Register adds a connection with no room membership
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	metrics.GatewayConnections.Set(float64(len(h.clients)))

	h.log.Debug().
		Str("conn_id", c.id).
		Str("user_id", c.identity.UserID).
		Msg("connection registered")
	return nil
}

// Unregister removes a connection from every room and closes its send queue.
// Calling it more than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	close(c.send)
	metrics.GatewayConnections.Set(float64(len(h.clients)))

	h.log.Debug().Str("conn_id", c.id).Msg("connection unregistered")
}

// Subscribe joins c to every well-formed room in rooms and returns the rooms
// it is now a member of from that list. Joining a room twice is a no-op.
func (h *Hub) Subscribe(c *Client, rooms []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return nil
	}

	var joined []string
	for _, room := range lo.Uniq(rooms) {
		if err := events.ValidateRoom(room); err != nil {
			h.log.Debug().Err(err).Str("conn_id", c.id).Msg("ignoring room")
			continue
		}
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
		c.rooms[room] = struct{}{}
		joined = append(joined, room)
	}
	return joined
}

// Unsubscribe removes c from rooms. Rooms it never joined are ignored.
func (h *Hub) Unsubscribe(c *Client, rooms []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var left []string
	for _, room := range lo.Uniq(rooms) {
		if _, ok := c.rooms[room]; !ok {
			continue
		}
		h.leaveLocked(c, room)
		left = append(left, room)
	}
	return left
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Deliver queues event to every member of room and returns how many
// connections it was queued for.
func (h *Hub) Deliver(room, event string, payload json.RawMessage) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode frame")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[room] {
		if h.enqueueLocked(c, frame) {
			delivered++
		}
	}
	metrics.GatewayDeliveries.WithLabelValues(event).Add(float64(delivered))
	return delivered
}

// Broadcast queues event to every connection regardless of room membership
func (h *Hub) Broadcast(event string, payload json.RawMessage) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode frame")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if h.enqueueLocked(c, frame) {
			delivered++
		}
	}
	metrics.GatewayDeliveries.WithLabelValues(event).Add(float64(delivered))
	return delivered
}

// sendTo queues a frame for a single registered connection
func (h *Hub) sendTo(c *Client, event string, payload json.RawMessage) bool {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	return h.enqueueLocked(c, frame)
}

// enqueueLocked never blocks: a full queue drops the frame for that connection
func (h *Hub) enqueueLocked(c *Client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		metrics.GatewayDropped.WithLabelValues("buffer_full").Inc()
		h.log.Warn().Str("conn_id", c.id).Msg("send buffer full, dropping frame")
		return false
	}
}

// RoomsOf returns the rooms c belongs to, sorted
func (h *Hub) RoomsOf(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := lo.Keys(c.rooms)
	sort.Strings(rooms)
	return rooms
}

// RoomSize returns the number of members of room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnectionCount returns the number of registered connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of non-empty rooms
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Close unregisters every connection and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		h.unregisterLocked(c)
	}
	h.log.Info().Msg("hub closed")
}

func encodeFrame(event string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(envelope{Event: event, Payload: payload})
}
