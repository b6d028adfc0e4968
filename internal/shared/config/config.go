package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"resume-bridge/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	Env             string
	LogDebug        bool
	JWTSecret       string
	MaxUploadBytes  int64
	ResumeMinChars  int
	GenerationsRPM  float64
	Upstream        UpstreamConfig
}

// UpstreamConfig configures the generation backend bridge.
type UpstreamConfig struct {
	BaseURL          string
	APIKey           string
	ScoreTimeout     time.Duration
	ColdEmailTimeout time.Duration
	InterviewTimeout time.Duration
}

// IsProduction reports whether diagnostics must be withheld from responses.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. Existing
	// environment variables win.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if env == "production" && dbURL == "" {
		telemetry.Error("config.invalid", map[string]any{"reason": "DATABASE_URL is required in production"})
	}

	return Config{
		Port:            v.GetString("PORT"),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DatabaseURL:     dbURL,
		Env:             env,
		LogDebug:        v.GetBool("LOG_DEBUG"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		ResumeMinChars:  v.GetInt("RESUME_MIN_CHARS"),
		GenerationsRPM:  v.GetFloat64("RATE_LIMIT_GENERATIONS_PER_MIN"),
		Upstream: UpstreamConfig{
			BaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString("UPSTREAM_BASE_URL")), "/"),
			APIKey:           v.GetString("UPSTREAM_API_KEY"),
			ScoreTimeout:     v.GetDuration("UPSTREAM_SCORE_TIMEOUT"),
			ColdEmailTimeout: v.GetDuration("UPSTREAM_COLD_EMAIL_TIMEOUT"),
			InterviewTimeout: v.GetDuration("UPSTREAM_INTERVIEW_TIMEOUT"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("LOG_DEBUG", false)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(10<<20))
	v.SetDefault("RESUME_MIN_CHARS", 100)
	v.SetDefault("RATE_LIMIT_GENERATIONS_PER_MIN", 20.0)
	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:8000")
	v.SetDefault("UPSTREAM_SCORE_TIMEOUT", 60*time.Second)
	v.SetDefault("UPSTREAM_COLD_EMAIL_TIMEOUT", 30*time.Second)
	v.SetDefault("UPSTREAM_INTERVIEW_TIMEOUT", 30*time.Second)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}
