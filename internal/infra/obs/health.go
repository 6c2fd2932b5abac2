package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthHandlers exposes liveness and readiness endpoints. Readiness runs
// every named check with a short timeout.
type HealthHandlers struct {
	Checks  map[string]Check
	Timeout time.Duration
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()
	failures := gin.H{}
	for name, check := range h.Checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "errors": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
