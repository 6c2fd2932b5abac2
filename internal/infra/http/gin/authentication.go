package ginserver

import (
	"log/slog"
	"strings"

	gin "github.com/gin-gonic/gin"

	"storefront/internal/app/apperr"
)

const callerContextKey = "storefront.caller"

// TokenVerifier turns a bearer token into the caller's user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware attaches the caller when a valid bearer token is present.
// Requests without one continue anonymously and are rejected by handlers
// that need a caller.
type AuthMiddleware struct {
	Verifier TokenVerifier
	Logger   *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Verifier == nil {
		c.Next()
		return
	}
	userID, err := m.Verifier.Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	c.Set(callerContextKey, userID)
	c.Next()
}

func currentCaller(c *gin.Context) (string, bool) {
	id := c.GetString(callerContextKey)
	return id, id != ""
}

func requireCaller(c *gin.Context) (string, bool) {
	id, ok := currentCaller(c)
	if !ok {
		writeError(c, nil, apperr.Unauthorized("authentication required"))
		return "", false
	}
	return id, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
