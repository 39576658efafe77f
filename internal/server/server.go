// Package server exposes scheduler health and Prometheus metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/asyncsched/pkg/scheduling/scheduler"
)

// StatsSource reports the state served on /healthz.
type StatsSource interface {
	Stats() scheduler.Stats
}

// Health is the /healthz response body.
type Health struct {
	Status        string          `json:"status"`
	Scheduler     scheduler.Stats `json:"scheduler"`
	LastHeartbeat *time.Time      `json:"last_heartbeat,omitempty"`
}

// Server serves GET /healthz and GET /metrics.
type Server struct {
	httpServer *http.Server
	stats      StatsSource
	heartbeat  func() time.Time
	logger     logrus.FieldLogger
}

// New creates a server listening on addr. gatherer may be nil, in which case
// /metrics is not mounted. heartbeat may be nil.
func New(addr string, stats StatsSource, gatherer prometheus.Gatherer, heartbeat func() time.Time, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		stats:     stats,
		heartbeat: heartbeat,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("http server listening")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := Health{Status: "ok", Scheduler: s.stats.Stats()}
	if body.Scheduler.Stopped {
		body.Status = "stopped"
	}
	if s.heartbeat != nil {
		if at := s.heartbeat(); !at.IsZero() {
			body.LastHeartbeat = &at
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if body.Scheduler.Stopped {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Debug("write health response")
	}
}
