package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"ChainPull/pkg/http/middleware"
	"ChainPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes mounts API endpoints on the server.
type Routes interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures Server.
type ServerOption func(*Server)

// Server serves the query API, plus Prometheus metrics when a path is set.
type Server struct {
	echo *echo.Echo
	log  *logger.Logger

	addr            string
	shutdownTimeout time.Duration
	metricsPath     string
	slow            time.Duration
	origins         []string
}

// NewServer builds the echo instance and mounts routes, which may be nil.
func NewServer(log *logger.Logger, routes Routes, opts ...ServerOption) *Server {
	s := &Server{
		echo:            echo.New(),
		log:             log.With(logger.String("component", "http")),
		addr:            ":8080",
		shutdownTimeout: 10 * time.Second,
		metricsPath:     "/metrics",
		slow:            time.Second,
		origins:         []string{"*"},
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = 10 * time.Second
	s.echo.Server.WriteTimeout = 10 * time.Second

	for _, opt := range opts {
		opt(s)
	}

	s.echo.Use(
		middleware.Recover(s.log),
		middleware.Metrics(),
		middleware.AccessLog(s.log, s.slow),
	)
	if len(s.origins) > 0 {
		s.echo.Use(middleware.CORS(s.origins...))
	}
	if routes != nil {
		routes.RegisterRoutes(s.echo)
	}
	if s.metricsPath != "" {
		s.echo.GET(s.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	return s
}

// Start listens in the background. A bind failure is returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.echo.Listener = ln

	go func() {
		s.log.Info("http server listening", logger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler { return s.echo }

// WithPort listens on all interfaces at port.
func WithPort(port int) ServerOption {
	return func(s *Server) { s.addr = ":" + strconv.Itoa(port) }
}

// WithTimeouts sets the read, write and shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(s *Server) {
		s.echo.Server.ReadTimeout = read
		s.echo.Server.WriteTimeout = write
		s.shutdownTimeout = shutdown
	}
}

// WithMetricsPath sets the Prometheus scrape path; empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(s *Server) { s.metricsPath = path }
}

// WithAllowedOrigins restricts CORS; no origins disables the CORS headers.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) { s.origins = origins }
}
