package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/shared/server/respond"
	"resume-bridge/internal/shared/telemetry"
)

const msgUnexpected = "Unexpected server error"

// Recovery turns panics into a 500. Generation routes answer with the bridge
// failure envelope so clients always see success=false.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"task":       c.GetString(TaskKey),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
			})
			if strings.Contains(c.FullPath(), "/generations/") {
				respond.Failure(c, http.StatusInternalServerError, "internal", msgUnexpected, nil, nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", msgUnexpected, nil)
		}()
		c.Next()
	}
}
