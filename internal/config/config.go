package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Bookmark store
	Backend        string        // "local" | "sqlite" | "redis"
	LocalDir       string        // directory holding the local slot (bookmarks.json)
	WatchLocal     bool          // true => reload views when the slot file changes on disk
	SQLitePath     string        // bookmark table database (sqlite backend)
	StrictDelete   bool          // remote backends: deleting a missing id is an error
	ReloadInterval time.Duration // periodic full reconciliation of cached views (0 = off)
	SeedFile       string        // optional YAML or Netscape HTML file imported at startup
	SeedUser       string        // email of the account that receives the seed (remote backends)

	// Auth
	AuthDBPath        string        // users and sessions database
	SessionTTL        time.Duration // lifetime of a session token
	SessionGCInterval time.Duration // interval to purge expired sessions
	LoginBurst        int           // login/signup attempts allowed in a burst per client IP
	LoginRefillPerMin int           // attempts regained per minute
	SecureCookies     bool          // true => session cookie only sent over HTTPS

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	dataDir := getenv("MARKY_DATA_DIR", "/data")

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARKY_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("MARKY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKY_PRETTY_LOG", true),

		// Bookmark store
		Backend:        strings.ToLower(getenv("MARKY_BACKEND", "local")),
		LocalDir:       getenv("MARKY_LOCAL_DIR", dataDir),
		WatchLocal:     mustBool("MARKY_WATCH_LOCAL", true),
		SQLitePath:     getenv("MARKY_SQLITE_PATH", filepath.Join(dataDir, "marky.db")),
		StrictDelete:   mustBool("MARKY_STRICT_DELETE", true),
		ReloadInterval: mustDuration("MARKY_RELOAD_INTERVAL", 0),
		SeedFile:       getenv("MARKY_SEED_FILE", ""), // Optional, empty = no seed import
		SeedUser:       getenv("MARKY_SEED_USER", ""),

		// Auth
		AuthDBPath:        getenv("MARKY_AUTH_DB_PATH", filepath.Join(dataDir, "auth.db")),
		SessionTTL:        mustDuration("MARKY_SESSION_TTL", 7*24*time.Hour),
		SessionGCInterval: mustDuration("MARKY_SESSION_GC_INTERVAL", 10*time.Minute),
		LoginBurst:        getenvInt("MARKY_LOGIN_BURST", 5),
		LoginRefillPerMin: getenvInt("MARKY_LOGIN_REFILL_PER_MIN", 5),
		SecureCookies:     mustBool("MARKY_SECURE_COOKIES", false),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MARKY_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MARKY_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MARKY_TRUST_PROXY", false),
	}

	switch cfg.Backend {
	case "local", "sqlite":
	case "redis":
		loadRedis(cfg)
	default:
		panic(fmt.Sprintf("❌ FATAL: MARKY_BACKEND must be local, sqlite or redis, got %q", cfg.Backend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// loadRedis reads the Redis settings, which are required only by the
// redis backend.
func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("MARKY_REDIS_ADDR")
	cfg.RedisUser = getenv("MARKY_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("MARKY_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("MARKY_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("MARKY_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: MARKY_REDIS_PASSWORD is required when MARKY_REDIS_PASSWORD_REQUIRED=true")
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
