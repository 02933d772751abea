package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/managemate/mmrt/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, h *Hub, a auth.Authenticator) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(h, a, ServerConfig{
		WriteWait:  time.Second,
		PongWait:   5 * time.Second,
		PingPeriod: time.Second,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// roundTrip sends a ping and waits for the pong, so earlier control frames are applied
func roundTrip(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, EventPong, readFrame(t, conn).Event)
}

func TestServerSubscribeAndDeliver(t *testing.T) {
	h := NewHub(8)
	srv := startServer(t, h, nil)

	member := dial(t, srv)
	other := dial(t, srv)

	require.NoError(t, member.WriteJSON(map[string]any{"type": "subscribe", "rooms": []string{"chat:m1"}}))
	roundTrip(t, member)
	roundTrip(t, other)
	require.Equal(t, 1, h.RoomSize("chat:m1"))

	payload := json.RawMessage(`{"moduleId":"m1","text":"hi"}`)
	assert.Equal(t, 1, h.Deliver("chat:m1", "chat-message", payload))

	f := readFrame(t, member)
	assert.Equal(t, "chat-message", f.Event)
	assert.JSONEq(t, string(payload), string(f.Payload))

	// other only sees the answer to its own ping
	roundTrip(t, other)
}

func TestServerIgnoresMalformedSubscribe(t *testing.T) {
	h := NewHub(8)
	srv := startServer(t, h, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","rooms":"chat:m1"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	roundTrip(t, conn)

	assert.Equal(t, 0, h.RoomCount())
	assert.Equal(t, 1, h.ConnectionCount())
}

func TestServerDisconnectCleansUp(t *testing.T) {
	h := NewHub(8)
	srv := startServer(t, h, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "rooms": []string{"user:u1"}}))
	roundTrip(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return h.ConnectionCount() == 0 && h.RoomCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.Deliver("user:u1", "task-conflict", json.RawMessage(`{}`)))
}

func TestServerRejectsWhenAuthRequired(t *testing.T) {
	h := NewHub(8)
	srv := startServer(t, h, auth.NewJWTAuthenticator([]byte("secret"), true))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestServerHubCloseDisconnects(t *testing.T) {
	h := NewHub(8)
	srv := startServer(t, h, nil)
	conn := dial(t, srv)
	roundTrip(t, conn)

	h.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(NewHub(0), nil, ServerConfig{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second})

	assert.IsType(t, auth.AllowAll{}, s.auth)
	assert.Equal(t, 9*time.Second, s.cfg.PingPeriod)
	assert.Equal(t, DefaultServerConfig().WriteWait, s.cfg.WriteWait)
	assert.Equal(t, DefaultSendBuffer, s.hub.bufferSize)
}
