package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/resilience"
	"github.com/go-i2p/dbpool/version"
)

// StatsResponse is the body of GET /api/pool/stats.
type StatsResponse struct {
	Pool          pool.Stats        `json:"pool"`
	Breaker       *resilience.Stats `json:"breaker,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Build         version.Info      `json:"build"`
}

// handleLiveness reports whether the pool is accepting acquires. It never
// touches the database.
func (s *Server) handleLiveness(c *gin.Context) {
	if s.pool.Stats().Closed {
		s.writeError(c, apperrors.ErrPoolClosed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReadiness checks out a connection and hands it straight back.
func (s *Server) handleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.readyTimeout)
	defer cancel()

	start := time.Now()
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		s.writeError(c, err)
		return
	}
	if err := conn.Release(); err != nil {
		s.logger.Error("releasing readiness connection", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"acquire_ms":  time.Since(start).Milliseconds(),
		"connections": s.pool.Stats().NumOpen,
	})
}

// handlePoolStats returns the pool statistics and breaker state.
func (s *Server) handlePoolStats(c *gin.Context) {
	resp := StatsResponse{
		Pool:          s.pool.Stats(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Build:         version.Get(),
	}
	if s.breaker != nil {
		bs := s.breaker.Stats()
		resp.Breaker = &bs
	}
	c.JSON(http.StatusOK, resp)
}

// handleMetrics refreshes the pool gauges and renders all metrics.
func (s *Server) handleMetrics(c *gin.Context) {
	pool.UpdateMetrics(s.pool.Stats())
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// writeError writes a JSON error body. Driver details are never exposed.
func (s *Server) writeError(c *gin.Context, err error) {
	appErr := apperrors.FromSentinel(err)
	c.AbortWithStatusJSON(httpStatus(appErr.Code), gin.H{"error": appErr})
}

// httpStatus maps an error code to an HTTP status.
func httpStatus(code int) int {
	switch code {
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeConnection:
		return http.StatusBadGateway
	case apperrors.CodeUnavailable, apperrors.CodeState:
		return http.StatusServiceUnavailable
	case apperrors.CodeInvalidParams, apperrors.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
