package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/generations"
	"resume-bridge/internal/resumes"
	"resume-bridge/internal/services/health"
	"resume-bridge/internal/shared/auth"
	"resume-bridge/internal/shared/config"
	"resume-bridge/internal/shared/server"
	"resume-bridge/internal/shared/server/middleware"
	"resume-bridge/internal/shared/storage/db"
	"resume-bridge/internal/shared/telemetry"
	"resume-bridge/internal/upstream"
)

// App holds shared dependencies.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Signer            *auth.Signer
	ResumesRepo       resumes.Repo
	GenerationsRepo   generations.Repo
	Resolver          *resumes.Resolver
	Dispatcher        *upstream.Dispatcher
	ResumeService     *resumes.Service
	GenerationService *generations.Service
	ResumeHandler     *resumes.Handler
	GenerationHandler *generations.Handler
}

// Option adjusts the App before routes are built.
type Option func(*App)

// WithBridge replaces the upstream bridge, e.g. with a test double.
func WithBridge(bridge generations.Bridge) Option {
	return func(a *App) {
		a.GenerationService.Bridge = bridge
	}
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, !cfg.IsProduction())
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Signer: signer,
	}
	buildServices(app)
	for _, opt := range opts {
		opt(app)
	}

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		Signer:            signer,
		Health:            health.NewService(pinger, cfg.Upstream.BaseURL),
		ResumeHandler:     app.ResumeHandler,
		GenerationHandler: app.GenerationHandler,
		RateLimiter:       middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

func buildServices(app *App) {
	if app.DB != nil {
		app.ResumesRepo = &resumes.PGRepo{DB: app.DB}
		app.GenerationsRepo = &generations.PGRepo{DB: app.DB}
	} else {
		app.ResumesRepo = resumes.NewMemoryRepo()
		app.GenerationsRepo = generations.NewMemoryRepo()
	}

	cfg := app.Config
	app.Resolver = resumes.NewResolver(app.ResumesRepo, cfg.ResumeMinChars)
	app.Dispatcher = upstream.NewDispatcher(upstream.Config{
		BaseURL:          cfg.Upstream.BaseURL,
		APIKey:           cfg.Upstream.APIKey,
		ScoreTimeout:     cfg.Upstream.ScoreTimeout,
		ColdEmailTimeout: cfg.Upstream.ColdEmailTimeout,
		InterviewTimeout: cfg.Upstream.InterviewTimeout,
	}, nil)

	app.ResumeService = resumes.NewService(app.ResumesRepo, cfg.ResumeMinChars)
	app.GenerationService = generations.NewService(app.Resolver, app.Dispatcher, app.GenerationsRepo)
	app.ResumeHandler = resumes.NewHandler(app.ResumeService, cfg.MaxUploadBytes)
	app.GenerationHandler = generations.NewHandler(app.GenerationService, cfg.MaxUploadBytes, !cfg.IsProduction())
}
