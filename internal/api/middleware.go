package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"pos-voice-relay/internal/logger"
)

const requestIDKey = "req_id"

// requestLogger tags each request with an id and logs it once it completes.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := logger.RequestID(c.Request)
		c.Set(requestIDKey, reqID)
		c.Header(logger.RequestIDHeader, reqID)

		c.Next()

		entry := s.log.WithRequestID(c.Request, reqID).
			WithField("status", c.Writer.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds())
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// observe records Prometheus HTTP metrics keyed by the matched route.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
