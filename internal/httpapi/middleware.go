package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(started)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Observe(elapsed.Seconds())
		}
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request served")
	}
}

func (s *Server) rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			if s.metrics != nil {
				s.metrics.HTTPRejected.WithLabelValues("rate_limit").Inc()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// requestTimeout bounds the request context. Handlers that compute watch ctx.Done().
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
