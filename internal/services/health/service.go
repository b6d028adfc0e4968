package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB          Pinger
	UpstreamURL string
	Timeout     time.Duration
}

// NewService constructs a new health service. db may be nil when the process
// runs on in-memory repositories.
func NewService(db Pinger, upstreamURL string) *Service {
	return &Service{DB: db, UpstreamURL: upstreamURL, Timeout: 2 * time.Second}
}

// Status reports storage reachability and whether a generation backend is configured.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	out := map[string]any{
		"ok":                 true,
		"storage":            "memory",
		"upstreamConfigured": s.UpstreamURL != "",
	}
	if s.DB == nil {
		return out, true
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		out["ok"] = false
		out["storage"] = "unreachable"
		return out, false
	}
	out["storage"] = "postgres"
	return out, true
}

func (s *Service) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 2 * time.Second
	}
	return s.Timeout
}
