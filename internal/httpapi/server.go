// Package httpapi implements the HTTP transport (component L): a gin router
// exposing health, prediction, batch, and admin endpoints over the
// Coordinator, plus the lifecycle wrapper that starts and gracefully stops
// the underlying net/http.Server.
//
// Grounded on the teacher's internal/interfaces/http/server.go: the same
// ServerConfig-with-defaults shape, the same early-bound net.Listener so a
// test can request an ephemeral port and observe the one actually bound, and
// the same Shutdown-with-timeout lifecycle built on atomic.Bool rather than
// a mutex.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
)

// Default server configuration values, mirrored from the teacher's server.go.
const (
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
)

// ServerConfig holds the parameters for the HTTP listener.
type ServerConfig struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Server wraps net/http.Server with early listener binding (so callers can
// request an ephemeral port and discover the actual address) and a
// context-driven graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     ServerConfig
	log        logging.Logger
	listener   net.Listener
	started    atomic.Bool
	actualAddr string
}

// NewServer constructs a Server wrapping handler. Zero-value fields in cfg
// are replaced with the package defaults.
func NewServer(cfg ServerConfig, handler http.Handler, log logging.Logger) *Server {
	cfg.applyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		config: cfg,
		log:    log,
	}
}

// Start binds the listener and serves until ctx is cancelled, at which point
// it performs a graceful shutdown bounded by config.ShutdownTimeout. It
// returns nil on clean shutdown and a non-nil error for bind or serve
// failures.
func (s *Server) Start(ctx context.Context) error {
	if s.started.Load() {
		return errors.New("httpapi: server already started")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.actualAddr = ln.Addr().String()
	s.started.Store(true)

	s.log.Info("http server starting", logging.String("address", s.actualAddr))

	serveCh := make(chan error, 1)
	go func() { serveCh <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownErr := s.Shutdown(context.Background())
		serveErr := <-serveCh
		if shutdownErr != nil {
			return fmt.Errorf("httpapi: shutdown error: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	case err := <-serveCh:
		s.started.Store(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops accepting new connections and waits up to
// config.ShutdownTimeout for active requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("http server shutting down", logging.String("timeout", s.config.ShutdownTimeout.String()))
	err := s.httpServer.Shutdown(shutdownCtx)
	s.started.Store(false)
	if err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

// Addr returns the actual bound address, useful when Addr was ":0".
func (s *Server) Addr() string { return s.actualAddr }

// IsRunning reports whether the server is currently accepting connections.
func (s *Server) IsRunning() bool { return s.started.Load() }
