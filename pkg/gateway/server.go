package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/managemate/mmrt/pkg/auth"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/rs/zerolog"
)

// ServerConfig tunes the WebSocket transport
type ServerConfig struct {
	// WriteWait bounds a single frame write
	WriteWait time.Duration
	// PongWait is how long the peer may stay silent before the connection is dropped
	PongWait time.Duration
	// PingPeriod must be shorter than PongWait
	PingPeriod time.Duration
	// MaxMessageSize limits inbound control frames
	MaxMessageSize int64
}

// DefaultServerConfig returns the transport defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 8 * 1024,
	}
}

// Server upgrades HTTP requests to WebSocket connections and attaches them to a hub
type Server struct {
	hub      *Hub
	auth     auth.Authenticator
	cfg      ServerConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewServer creates a WebSocket endpoint for hub
func NewServer(hub *Hub, authenticator auth.Authenticator, cfg ServerConfig) *Server {
	if authenticator == nil {
		authenticator = auth.AllowAll{}
	}
	def := DefaultServerConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	return &Server{
		hub:  hub,
		auth: authenticator,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the reverse proxy in front of the gateway
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.WithComponent("gateway"),
	}
}

// ServeHTTP handles one connection for its whole lifetime
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.Authenticate(r)
	if err != nil {
		s.log.Info().Err(err).Str("remote_addr", r.RemoteAddr).Msg("connection rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := s.hub.NewClient(identity)
	if err := s.hub.Register(client); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(s.cfg.WriteWait))
		conn.Close()
		return
	}

	s.log.Info().
		Str("conn_id", client.ID()).
		Str("user_id", identity.UserID).
		Str("remote_addr", r.RemoteAddr).
		Msg("connection opened")

	go s.writePump(conn, client)
	s.readPump(conn, client)
}

// readPump applies inbound control frames until the connection fails
func (s *Server) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		s.hub.Unregister(c)
		conn.Close()
		s.log.Info().Str("conn_id", c.ID()).Msg("connection closed")
	}()

	conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		s.hub.HandleControl(c, data)
	}
}

// writePump is the only writer of conn
func (s *Server) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
