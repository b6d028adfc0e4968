package respond

import (
	"github.com/gin-gonic/gin"

	"resume-bridge/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	logFailure(c, status, code, message)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Failure sends the bridge failure envelope. defaults carries the task
// specific empty values callers rely on (e.g. score: 0); diagnostics is
// omitted when nil.
func Failure(c *gin.Context, status int, code, message string, defaults gin.H, diagnostics map[string]any) {
	logFailure(c, status, code, message)
	body := gin.H{}
	for k, v := range defaults {
		body[k] = v
	}
	body["success"] = false
	body["message"] = message
	if diagnostics != nil {
		body["diagnostics"] = diagnostics
	}
	c.AbortWithStatusJSON(status, body)
}

func logFailure(c *gin.Context, status int, code, message string) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	telemetry.Error("http.error", fields)
}
