package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/version"
)

// HealthChecker returns the health of the components behind the server.
type HealthChecker func(ctx context.Context) []component.Health

// RegisterDefaultEndpoints mounts /health, /livez and /version.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker HealthChecker) {
	s.engine.GET("/health", Health(serviceName, checker))
	s.engine.GET("/livez", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "alive"}) })
	s.engine.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, version.Get()) })
}

// Health aggregates component health: any unhealthy component makes the
// service unhealthy (503), any degraded one makes it degraded.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
			for _, h := range components {
				if h.Status == component.StatusUnhealthy {
					status = "unhealthy"
					break
				}
				if h.Status == component.StatusDegraded {
					status = "degraded"
				}
			}
		}
		code := http.StatusOK
		if status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    serviceName,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}
