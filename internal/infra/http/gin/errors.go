package ginserver

import (
	"log/slog"

	gin "github.com/gin-gonic/gin"

	"storefront/internal/app/apperr"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeError renders err as {"error": {...}}. Storage failures are logged and
// their cause is never sent to the client.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Storage(err)
	}
	if appErr.Kind == apperr.KindStorage {
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed",
				"path", c.FullPath(),
				"method", c.Request.Method,
				"error", err,
			)
		}
		appErr = &apperr.Error{Kind: apperr.KindStorage, Message: "storage failure"}
	}
	c.AbortWithStatusJSON(appErr.Kind.Status(), gin.H{"error": errorBody{
		Kind:    string(appErr.Kind),
		Message: appErr.Message,
		Field:   appErr.Field,
	}})
}
