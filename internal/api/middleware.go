package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/ratelimit"
)

// LoggingMiddleware logs all HTTP requests
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.LogHTTPRequest(c.Request.Context(), method, path, c.Writer.Status(), time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

// AuthMiddleware requires "Authorization: Bearer <key>" on every route except
// /health and /metrics
func AuthMiddleware(expectedAPIKey string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(expectedAPIKey)) != 1 {
			log.Warnw("Rejected API request",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP(),
				"has_header", authHeader != "",
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing API key",
			})
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware implements token bucket rate limiting per IP
func RateLimitMiddleware(cfg config.APIConfig) gin.HandlerFunc {
	type client struct {
		limiter  *ratelimit.Limiter
		lastSeen time.Time
	}

	var (
		mu        sync.Mutex
		clients   = make(map[string]*client)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > 5*time.Minute {
			for addr, cl := range clients {
				if now.Sub(cl.lastSeen) > 10*time.Minute {
					delete(clients, addr)
				}
			}
			lastSweep = now
		}
		cl, exists := clients[ip]
		if !exists {
			cl = &client{
				limiter: ratelimit.NewLimiter(ratelimit.Config{
					RequestsPerSecond: cfg.RequestsPerSecond,
					BurstSize:         cfg.Burst,
				}),
			}
			clients[ip] = cl
		}
		cl.lastSeen = now
		mu.Unlock()

		if !cl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
