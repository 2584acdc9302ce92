// Package web provides the status HTTP server for a dbpool process.
// It serves liveness and readiness probes, a JSON view of the pool
// statistics and the Prometheus metrics endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/resilience"
)

// DefaultReadyTimeout bounds the connection checkout done by /readyz.
const DefaultReadyTimeout = 2 * time.Second

// PoolSource is the part of *pool.Pool the server needs.
type PoolSource interface {
	Acquire(ctx context.Context) (*pool.Conn, error)
	Stats() pool.Stats
}

// Server is the status HTTP server.
type Server struct {
	httpServer   *http.Server
	engine       *gin.Engine
	pool         PoolSource
	breaker      *resilience.Breaker
	limiter      *RateLimiter
	readyTimeout time.Duration
	logger       *slog.Logger
	startedAt    time.Time

	mu      sync.RWMutex
	running bool
	addr    net.Addr
}

// Config holds status server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:8089")
	ListenAddr string
	// Pool is the pool being reported on. Required.
	Pool PoolSource
	// Breaker is the dial breaker, if one is configured.
	Breaker *resilience.Breaker
	// ReadyTimeout bounds the checkout done by /readyz.
	ReadyTimeout time.Duration
	// RateLimit limits /readyz per client IP.
	RateLimit RateLimitConfig
	// Logger is the structured logger
	Logger *slog.Logger
}

// New creates a status server. It does not listen until Start is called.
func New(cfg Config) (*Server, error) {
	if cfg.Pool == nil {
		return nil, errors.New("web: pool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:       gin.New(),
		pool:         cfg.Pool,
		breaker:      cfg.Breaker,
		limiter:      NewRateLimiter(cfg.RateLimit),
		readyTimeout: cfg.ReadyTimeout,
		logger:       cfg.Logger.With("component", "web"),
		startedAt:    time.Now(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), securityHeaders())

	// Health check endpoints
	s.engine.GET("/healthz", s.handleLiveness)
	s.engine.GET("/readyz", s.limiter.Middleware(), s.handleReadiness)

	// API endpoints
	s.engine.GET("/api/pool/stats", s.handlePoolStats)

	// Metrics endpoint (Prometheus format)
	s.engine.GET("/metrics", s.handleMetrics)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.engine,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the status server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("status server started", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Stop stops the status server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.limiter.Close()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("status server stopped")
	return nil
}

// requestLogger logs every request at debug level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

// securityHeaders sets the common response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
