package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-Guest-Id, X-Request-Id"
	// Clients read the request id for support and Retry-After after a 429.
	corsExposed = "X-Request-Id, Retry-After"
	corsMaxAge  = "600"
)

// CORS answers preflights and decorates responses for the configured origins.
// "*" allows any origin without credentials. Preflights from other origins are
// refused with 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]bool)
	anyOrigin := false
	for _, o := range allowedOrigins {
		switch o = strings.TrimRight(strings.TrimSpace(o), "/"); o {
		case "":
		case "*":
			anyOrigin = true
		default:
			origins[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := origin != "" && (anyOrigin || origins[origin])
		if allowed {
			h := c.Writer.Header()
			h.Add("Vary", "Origin")
			if origins[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			} else {
				h.Set("Access-Control-Allow-Origin", "*")
			}
			h.Set("Access-Control-Expose-Headers", corsExposed)
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if origin != "" && !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
