package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/shared/telemetry"
)

// Context keys handlers set so the request log line can carry them.
const (
	GenerationIDKey = "generationId"
	TaskKey         = "task"
	ResumeSourceKey = "resumeSource"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		telemetry.Info("request.complete", map[string]any{
			"request_id":    RequestIDFromContext(c),
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        c.Writer.Status(),
			"duration_ms":   float64(latency.Microseconds()) / 1000.0,
			"user_id":       UserIDFromContext(c),
			"is_guest":      IsGuest(c),
			"generation_id": c.GetString(GenerationIDKey),
			"task":          c.GetString(TaskKey),
			"resume_source": c.GetString(ResumeSourceKey),
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
		})
	}
}
