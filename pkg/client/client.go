package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ErrNotConnected is returned by Ping while no connection is open
var ErrNotConnected = errors.New("not connected")

// Event is one frame pushed by the gateway
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Config configures a Client
type Config struct {
	// URL is the gateway websocket endpoint, e.g. ws://localhost:8080/ws
	URL string
	// Token is sent as a bearer token when set
	Token string
	// InitialBackoff and MaxBackoff bound the reconnect delay
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// EventBuffer is the capacity of the Events channel
	EventBuffer int
}

// Client keeps a gateway connection open and re-joins its rooms after
// every reconnect, since the gateway forgets membership on disconnect.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	events chan Event

	mu    sync.Mutex
	rooms map[string]struct{}
	conn  *websocket.Conn

	// gorilla allows one concurrent writer
	writeMu sync.Mutex

	log zerolog.Logger
}

// New creates a client. Call Run to connect.
func New(cfg Config) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(30*time.Second, cfg.InitialBackoff)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, cfg.EventBuffer),
		rooms:  make(map[string]struct{}),
		log:    log.WithComponent("client"),
	}
}

// Events returns the channel of received frames. It is closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Rooms returns the rooms the client wants to be in, sorted
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := lo.Keys(c.rooms)
	slices.Sort(rooms)
	return rooms
}

// Subscribe joins rooms now if connected, and after every reconnect
func (c *Client) Subscribe(rooms ...string) error {
	for _, room := range rooms {
		if err := events.ValidateRoom(room); err != nil {
			return err
		}
	}

	c.mu.Lock()
	for _, room := range rooms {
		c.rooms[room] = struct{}{}
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(conn, "subscribe", rooms)
}

// Unsubscribe leaves rooms and stops re-joining them
func (c *Client) Unsubscribe(rooms ...string) error {
	c.mu.Lock()
	for _, room := range rooms {
		delete(c.rooms, room)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(conn, "unsubscribe", rooms)
}

// Ping asks the gateway for a pong event
func (c *Client) Ping() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return c.send(conn, "ping", nil)
}

// Run connects and reconnects until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.Reset()

	for {
		err := c.session(ctx, bo)
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("Gateway connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails
func (c *Client) session(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", c.cfg.URL, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	rooms := lo.Keys(c.rooms)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	// unblock ReadMessage on cancel
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if len(rooms) > 0 {
		slices.Sort(rooms)
		if err := c.send(conn, "subscribe", rooms); err != nil {
			return err
		}
	}

	bo.Reset()
	c.log.Info().Str("url", c.cfg.URL).Strs("rooms", rooms).Msg("Connected to gateway")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.log.Debug().Err(err).Msg("Ignoring malformed frame")
			continue
		}

		select {
		case c.events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) send(conn *websocket.Conn, typ string, rooms []string) error {
	msg := struct {
		Type  string   `json:"type"`
		Rooms []string `json:"rooms,omitempty"`
	}{Type: typ, Rooms: rooms}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}
