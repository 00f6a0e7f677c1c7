// Package server exposes health and metrics endpoints for a running host.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aponysus/hostkit/dbinit"
	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/internal/logging"
)

// HealthSource reports initialization state.
type HealthSource interface {
	Healthy() bool
	Snapshot() dbinit.Outcomes
}

// Server is a host.HostedService serving /healthz and /metrics.
type Server struct {
	addr            string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
	listen          func(network, addr string) (net.Listener, error)
}

var _ host.HostedService = (*Server)(nil)

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithShutdownTimeout bounds graceful shutdown. Non-positive values keep the 5s default.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New builds the server. gatherer is usually the registry the retry metrics
// observer registers with.
func New(addr string, health HealthSource, gatherer prometheus.Gatherer, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		shutdownTimeout: 5 * time.Second,
		listen:          net.Listen,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.handler = NewHandler(health, gatherer)
	return s
}

// NewHandler returns the router.
func NewHandler(health HealthSource, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler(health))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

type healthContext struct {
	Context   string `json:"context"`
	Succeeded bool   `json:"succeeded"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string          `json:"status"`
	Contexts []healthContext `json:"contexts"`
}

// healthHandler answers 200 "ok" or 503 "degraded" when an initialization failed.
func healthHandler(health HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Contexts: []healthContext{}}
		status := http.StatusOK
		if health != nil {
			for _, o := range health.Snapshot() {
				hc := healthContext{Context: o.Context, Succeeded: o.Succeeded, Attempts: o.Attempts}
				if o.Err != nil {
					hc.Error = o.Err.Error()
				}
				resp.Contexts = append(resp.Contexts, hc)
			}
			if !health.Healthy() {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (s *Server) Name() string { return "http" }

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
