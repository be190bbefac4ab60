package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marky/internal/auth"
	"github.com/MrSnakeDoc/marky/internal/httpserver/ws"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/store"
)

// ReadyCheck reports whether one backing component can serve requests.
type ReadyCheck func(ctx context.Context) error

type Deps struct {
	Logger            logger.Logger
	StartTime         time.Time
	Version           string
	Commit            string
	BuildDate         string
	GoVersion         string
	TimeNow           func() time.Time      // for testing, defaults to time.Now
	AllowedHosts      []string              // Host headers allowed to access the server
	AllowedCIDRS      []string              // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy        bool                  // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Backend           string                // bookmark backend name: local, sqlite or redis
	Bookmarks         *store.Service        // bookmark store plus cached per-user views
	Auth              *auth.Service         // users and sessions
	Hub               *ws.Hub               // websocket push of reconciled lists
	RedisClient       *redis.Client         // nil unless the redis backend is selected
	ReadyChecks       map[string]ReadyCheck // probed by /readyz and /infra
	ReloadTrigger     chan struct{}         // Channel to trigger a manual reconciliation
	SessionTTL        time.Duration         // cookie lifetime, matches the session lifetime
	SecureCookies     bool                  // set Secure on the session cookie
	LoginBurst        int                   // login/signup attempts per client IP in a burst
	LoginRefillPerMin int                   // attempts regained per minute
	MaxImportBytes    int64                 // upper bound for import request bodies
}

// Now returns TimeNow or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
