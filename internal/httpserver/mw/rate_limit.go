package mw

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marky/internal/auth"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/netutil"
)

// peekLimit bounds how much of a credentials body LoginKey reads.
const peekLimit = 4 << 10

// KeyFunc picks the budget a request draws from.
type KeyFunc func(r *http.Request, trustProxy bool) string

type RateLimitConfig struct {
	Burst        int
	RefillPerMin int
	MaxEntries   int
	IdleTTL      time.Duration
	TrustProxy   bool
	Key          KeyFunc // defaults to the client IP
}

// clientKey budgets per client IP.
func clientKey(r *http.Request, trustProxy bool) string {
	return netutil.ClientIP(r, trustProxy)
}

// LoginKey budgets per client IP and submitted email. The body is
// restored for the handler.
func LoginKey(r *http.Request, trustProxy bool) string {
	ip := netutil.ClientIP(r, trustProxy)
	if r.Body == nil || r.Body == http.NoBody {
		return ip
	}

	head, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if err != nil {
		return ip
	}

	var in struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(head, &in) != nil {
		return ip
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return ip
	}
	return ip + "|" + email
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

type limiter struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	rate      float64 // tokens per second
	capacity  float64
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerMin < 1 {
		cfg.RefillPerMin = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Key == nil {
		cfg.Key = clientKey
	}
	return &limiter{
		cfg:       cfg,
		rate:      float64(cfg.RefillPerMin) / 60.0,
		capacity:  float64(cfg.Burst),
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// take spends one token from key's bucket. When empty it reports how
// many seconds until the next token.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	full := l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries
	if full || now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		l.sweep(now)
	}

	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: l.capacity, refilled: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.rate)
		b.refilled = now
	}

	if b.tokens < 1 {
		return false, 0, max(1, int(math.Ceil((1-b.tokens)/l.rate)))
	}
	b.tokens--
	return true, int(b.tokens), 0
}

func (l *limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.refilled) > l.cfg.IdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit is a token bucket per cfg.Key. Mount one instance on the
// routes that share a budget. Rejections carry the localized
// too_many_attempts message.
func RateLimit(cfg RateLimitConfig, log logger.Logger) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)
	exhausted := &domain.AuthError{Code: domain.AuthTooManyAttempts}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.cfg.Key(r, l.cfg.TrustProxy)
			ok, remaining, retry := l.take(key, time.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				log.Warn("rate limit exceeded",
					logger.String("client_ip", netutil.ClientIP(r, l.cfg.TrustProxy)),
					logger.String("path", r.URL.Path),
					logger.Int("retry_after", retry))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, ErrorBody{
					Error:      auth.Message(exhausted, r.Header.Get("Accept-Language")),
					Code:       string(domain.AuthTooManyAttempts),
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
