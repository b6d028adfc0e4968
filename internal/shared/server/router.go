package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/generations"
	"resume-bridge/internal/resumes"
	"resume-bridge/internal/services/health"
	"resume-bridge/internal/shared/auth"
	"resume-bridge/internal/shared/config"
	"resume-bridge/internal/shared/metrics"
	"resume-bridge/internal/shared/server/middleware"
	"resume-bridge/internal/shared/server/respond"
)

// RouterDeps are the handlers and services the router mounts.
type RouterDeps struct {
	Config            config.Config
	Signer            *auth.Signer
	Health            *health.Service
	ResumeHandler     *resumes.Handler
	GenerationHandler *generations.Handler
	RateLimiter       *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	protected := api.Group("",
		middleware.Auth(deps.Signer, !deps.Config.IsProduction()),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				middleware.GenerationRateLimitGroup: middleware.PerMinute(deps.Config.GenerationsRPM),
			},
			GroupFor: middleware.GenerationGroup,
			Limiter:  deps.RateLimiter,
		}),
	)
	registerMeRoutes(protected)
	if deps.ResumeHandler != nil {
		deps.ResumeHandler.RegisterRoutes(protected)
	}
	if deps.GenerationHandler != nil {
		deps.GenerationHandler.RegisterRoutes(protected)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
