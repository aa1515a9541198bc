package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/respgw/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	// ReadTimeout and WriteTimeout bound the underlying http.Server. Zero
	// leaves net/http's own default (no timeout) in place. WriteTimeout
	// must be long enough to cover the longest streamed response, not
	// just a single write.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// GracePeriod is how long shutdown waits for in-flight streaming
	// responses to finish on their own before CancelAll forces them closed
	// with ErrShuttingDown. Must be shorter than ShutdownTimeout to leave
	// room for the forced cancellation to actually drain. Defaults to half
	// of ShutdownTimeout.
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8282",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30 * time.Second,
		GracePeriod:     15 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithGracePeriod sets how long shutdown waits for in-flight streaming
// responses to finish on their own before forcibly cancelling them.
func WithGracePeriod(d time.Duration) ServerOption {
	return func(s *Server) { s.config.GracePeriod = d }
}

// WithReadTimeout sets the underlying http.Server's ReadTimeout.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadTimeout = d }
}

// WithWriteTimeout sets the underlying http.Server's WriteTimeout.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.WriteTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// NewServer creates a new transport server with the given ResponseCreator
// and options. This gateway is stateless and never persists responses, so
// there is no store to wire. Default middleware (recovery, request ID,
// logging) is applied automatically.
func NewServer(creator transport.ResponseCreator, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	adapterCfg := Config{
		Addr:            s.config.Addr,
		MaxBodySize:     s.config.MaxBodySize,
		ShutdownTimeout: int(s.config.ShutdownTimeout.Seconds()),
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}

	s.adapter = NewAdapter(creator, adapterCfg, defaultMW...)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.adapter.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// Handler returns the server's current http.Handler, wrapping the
// ResponseCreator via the adapter plus the default middleware stack.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetHandler replaces the server's handler, e.g. to add routes (health,
// metrics) or outer middleware (auth, request metrics) around the value
// Handler returned. The in-flight registry and shutdown grace period keep
// working unchanged since both operate on the adapter, not the handler
// wrapping it.
func (s *Server) SetHandler(h http.Handler) {
	s.httpServer.Handler = h
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

// shutdown stops accepting new connections and waits for in-flight requests
// to finish. http.Server.Shutdown already waits for ordinary requests to
// drain, but a streaming response can run indefinitely; after GracePeriod,
// any response still in flight is force-cancelled with ErrShuttingDown so
// shutdown can complete within ShutdownTimeout.
func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	grace := s.config.GracePeriod
	if grace <= 0 || grace >= s.config.ShutdownTimeout {
		grace = s.config.ShutdownTimeout / 2
	}

	s.logger.Info("shutting down gracefully",
		slog.Duration("timeout", s.config.ShutdownTimeout),
		slog.Duration("grace_period", grace))

	done := make(chan error, 1)
	go func() {
		done <- s.httpServer.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	case <-time.After(grace):
		if n := s.adapter.inflight.Len(); n > 0 {
			s.logger.Warn("grace period elapsed, cancelling in-flight responses", slog.Int("count", n))
			s.adapter.inflight.CancelAll()
		}
		if err := <-done; err != nil {
			s.logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
