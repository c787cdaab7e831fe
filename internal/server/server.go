package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jpalmerr/minerwatch/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// maxEventsLimit caps the ?limit parameter of /api/events.
	maxEventsLimit = 1000
)

// MonitorInfo is the JSON representation of a monitor's state.
type MonitorInfo struct {
	Name         string     `json:"name"`
	PoolURL      string     `json:"pool_url"`
	Wallet       string     `json:"wallet"`
	Mode         string     `json:"mode"`
	WatchedField string     `json:"watched_field,omitempty"`
	Healthy      bool       `json:"healthy"`
	LastEventAt  *time.Time `json:"last_event_at"`
	LastErrorAt  *time.Time `json:"last_error_at"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
}

// MonitorSource lists the current state of every monitor.
type MonitorSource interface {
	MonitorInfos(ctx context.Context) []MonitorInfo
}

// Server serves the read-only status API.
//
// Routes:
//   - GET /api/monitors: state and health of every monitor
//   - GET /api/events: recent events, newest first (?limit=N)
//   - GET /api/sse: Server-Sent Events stream of new events
//   - GET /healthz: 200 if every monitor is healthy, 503 otherwise
//   - GET /metrics: Prometheus metrics (if a handler was given)
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	monitors   MonitorSource
	feed       *store.Feed
	metrics    http.Handler
	port       int
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server]. metrics may be nil to disable the
// /metrics route. The server is not started until [Server.Start] is called.
func NewServer(monitors MonitorSource, feed *store.Feed, metrics http.Handler, port int, logger *slog.Logger) *Server {
	return &Server{
		monitors: monitors,
		feed:     feed,
		metrics:  metrics,
		port:     port,
		logger:   logger,
	}
}

// Handler returns the route multiplexer, for use with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/monitors", s.handleMonitors)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound. The server
// shuts down gracefully, with a 5-second timeout, when ctx is cancelled.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleMonitors returns the state of every monitor as JSON.
func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitors.MonitorInfos(r.Context()))
}

// handleEvents returns recent events as JSON, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventsLimit {
			http.Error(w, fmt.Sprintf("limit must be an integer between 1 and %d", maxEventsLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.feed.Recent(limit))
}

// handleHealthz reports 503 if any monitor is unhealthy.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	infos := s.monitors.MonitorInfos(r.Context())
	unhealthy := make([]string, 0)
	for _, info := range infos {
		if !info.Healthy {
			unhealthy = append(unhealthy, info.Name)
		}
	}

	status := http.StatusOK
	if len(unhealthy) > 0 {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"healthy":   len(unhealthy) == 0,
		"monitors":  len(infos),
		"unhealthy": unhealthy,
	})
}

// handleSSE streams new events via Server-Sent Events.
//
// Writes use deadlines so a slow or disconnected client cannot block the
// handler past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.feed.Subscribe()
	defer s.feed.Unsubscribe(ch)

	// flush headers so clients see the stream open before the first event
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
