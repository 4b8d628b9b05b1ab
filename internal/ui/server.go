// Package ui serves the daemon's control surface over HTTP: health and
// readiness probes, Prometheus metrics, a JSON status snapshot, and a
// WebSocket endpoint that streams pipeline events and accepts control
// commands. It is an event surface for clients (veilvoxctl, an embedding
// GUI, curl), not a rendered UI.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veilvox/veilvox/internal/assistant"
	"github.com/veilvox/veilvox/internal/event"
	"github.com/veilvox/veilvox/internal/health"
	"github.com/veilvox/veilvox/internal/observe"
	"github.com/veilvox/veilvox/pkg/provider/stt"
)

// shutdownTimeout bounds the graceful drain of in-flight requests when Run's
// context is cancelled.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP/WebSocket control surface.
type Server struct {
	addr    string
	a       *assistant.Assistant
	bridge  *event.Bridge
	checks  *health.Handler
	log     *slog.Logger
	metrics *observe.Metrics

	recognizerState func() stt.ModelState
	queueLen        func() int
	started         time.Time
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics sink used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRecognizerState supplies the recognizer model state for /status.
func WithRecognizerState(fn func() stt.ModelState) Option {
	return func(s *Server) { s.recognizerState = fn }
}

// WithQueueLen supplies the pending utterance count for /status.
func WithQueueLen(fn func() int) Option {
	return func(s *Server) { s.queueLen = fn }
}

// New creates a control surface server listening on addr once [Server.Run]
// is called.
func New(addr string, a *assistant.Assistant, bridge *event.Bridge, checks *health.Handler, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		a:       a,
		bridge:  bridge,
		checks:  checks,
		log:     slog.Default(),
		metrics: observe.DefaultMetrics(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route tree wrapped in the observability
// middleware. Exposed separately from [Server.Run] so tests can mount it on
// an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.checks.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWS)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests. A
// listen failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info("control surface listening", "addr", s.addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ui: serve %s: %w", s.addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return fmt.Errorf("ui: shutdown: %w", err)
	}
	return nil
}

// statusResponse is the /status snapshot.
type statusResponse struct {
	State         string `json:"state"`
	Listening     bool   `json:"listening"`
	Recognizer    string `json:"recognizer,omitempty"`
	QueueDepth    int    `json:"queue_depth"`
	CaptureError  string `json:"capture_error,omitempty"`
	Uptime        string `json:"uptime"`
	DroppedEvents uint64 `json:"dropped_events,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.a.State()
	resp := statusResponse{
		State:         state.String(),
		Listening:     state == assistant.StateListening,
		QueueDepth:    0,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		DroppedEvents: s.bridge.Dropped(),
	}
	if s.recognizerState != nil {
		resp.Recognizer = s.recognizerState().String()
	}
	if s.queueLen != nil {
		resp.QueueDepth = s.queueLen()
	}
	if err := s.a.Err(); err != nil {
		resp.CaptureError = err.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("status encode failed", "error", err)
	}
}
