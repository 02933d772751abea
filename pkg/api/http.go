package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/managemate/mmrt/pkg/types"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 64 << 10

// Publisher is the producer side of the message bus
type Publisher interface {
	PublishNotification(ctx context.Context, evt *events.NotificationEvent) error
	PublishChat(ctx context.Context, evt *events.ChatMessageEvent) error
}

// Store is the part of the store the HTTP API reads and writes
type Store interface {
	GetTask(id string) (*types.Task, error)
	AssignTask(id string, assigneeIDs []string) (*types.Task, error)
	CreateNotification(n *types.Notification) error
}

// HTTPServer serves the websocket endpoint, health and metrics, and the
// publish endpoints used by collaborators without broker access.
type HTTPServer struct {
	mux       *http.ServeMux
	server    *http.Server
	publisher Publisher
	store     Store
	validate  *validator.Validate
	now       func() time.Time
	log       zerolog.Logger
}

// NewHTTPServer creates the HTTP server. ws may be nil when the process
// does not host the gateway.
func NewHTTPServer(addr string, ws http.Handler, publisher Publisher, store Store) *HTTPServer {
	mux := http.NewServeMux()
	s := &HTTPServer{
		mux:       mux,
		publisher: publisher,
		store:     store,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		log:       log.WithComponent("http"),
	}

	// No write timeout: websocket connections are long lived
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if ws != nil {
		mux.Handle("GET /ws", ws)
	}
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	mux.HandleFunc("GET /live", metrics.LivenessHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/notifications", s.handleNotification)
	mux.HandleFunc("POST /api/v1/chat/{moduleId}", s.handleChat)
	mux.HandleFunc("POST /api/v1/tasks/{taskId}/assign", s.handleAssign)

	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// Start serves until Shutdown is called
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked websocket connections are closed by the gateway, not here.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

// decode reads and validates a JSON body, writing a 400 on failure
func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// publishFailed maps a publish error to a response
func (s *HTTPServer) publishFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, events.ErrInvalidEvent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error().Err(err).Msg("Publish failed")
	writeError(w, http.StatusServiceUnavailable, "message bus unavailable")
}
