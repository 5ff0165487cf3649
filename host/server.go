package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/protocol"
)

const (
	maxBodyBytes = 4 << 10
	killTimeout  = time.Second
	sourceHost   = "host"
)

// ServerStatus reports the lifecycle state of the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Server serves the view over HTTP and forwards kill requests to the
// coordinator inbox.
type Server struct {
	address string
	view    *View
	inbox   chan<- protocol.Inbound
	logger  *slog.Logger
	clock   func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control time.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a server for the given view and coordinator inbox.
func NewServer(cfg config.HostConfig, view *View, inbox chan<- protocol.Inbound, opts ...Option) *Server {
	s := &Server{
		address: cfg.Address,
		view:    view,
		inbox:   inbox,
		logger:  slog.Default(),
		clock:   time.Now,
		status:  StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/creatures", s.handleCreatures)
	mux.HandleFunc("/kill", s.handleKill)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("host: server already started")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("host: listen %s: %w", s.address, err)
	}
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.listener = listener
	s.server = server
	s.startTime = s.clock()
	s.status = StatusReady

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("host_serve_failed", "error", err)
		}
	}()
	s.logger.Info("host_listening", "address", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.server = nil
	s.listener = nil
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Status reports the server lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

type healthResponse struct {
	Status        string `json:"status"`
	Generation    int    `json:"generation"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type killRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	now := s.clock()
	s.mu.RLock()
	resp := healthResponse{Status: string(s.status)}
	if !s.startTime.IsZero() {
		resp.UptimeSeconds = int64(now.Sub(s.startTime).Seconds())
	}
	s.mu.RUnlock()
	resp.Generation = s.view.State(now).Generation
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.view.State(s.clock()))
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}

	var req killRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), killTimeout)
	defer cancel()
	switch err := SendKill(ctx, s.inbox, req.ID); {
	case err == nil:
		s.logger.Info("kill_requested", "creature", req.ID, "remote", r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": req.ID})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "coordinator busy"})
	case errors.Is(err, context.Canceled):
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode failed"})
	}
}

// SendKill asks the coordinator to remove a creature. It blocks until the
// request is queued or ctx is done.
func SendKill(ctx context.Context, inbox chan<- protocol.Inbound, id string) error {
	payload, err := protocol.Encode(protocol.Kill{TargetID: id})
	if err != nil {
		return err
	}
	select {
	case inbox <- protocol.Inbound{From: sourceHost, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
