package mw

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/logger"
)

type stubResolver map[string]domain.Session

func (s stubResolver) Session(_ context.Context, token string) (domain.Session, error) {
	if token == "broken" {
		return domain.Session{}, errors.New("database is locked")
	}
	sess, ok := s[token]
	if !ok {
		return domain.Session{}, &domain.AuthError{Code: domain.AuthSessionExpired}
	}
	return sess, nil
}

var resolver = stubResolver{"good": {Token: "good", UserID: "u1", Email: "ada@example.com"}}

func echoUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := domain.SessionFrom(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(sess.UserID))
}

func TestTokenFrom(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"bearer lowercase", "bearer  abc ", "", "abc"},
		{"cookie", "", "xyz", "xyz"},
		{"header wins", "Bearer abc", "xyz", "abc"},
		{"basic ignored", "Basic dXNlcjpwYXNz", "", ""},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, TokenFrom(r))
		})
	}
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(resolver, logger.Nop())(http.HandlerFunc(echoUser))

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"live session", "good", http.StatusOK, "u1"},
		{"missing token", "", http.StatusUnauthorized, ""},
		{"expired token", "stale", http.StatusUnauthorized, ""},
		{"lookup failure", "broken", http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "/login", body["redirect"])
				assert.Equal(t, "session_expired", body["code"])
			}
			if tt.wantStatus == http.StatusInternalServerError {
				var body ErrorBody
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "unknown", body.Code)
				assert.Empty(t, body.Redirect)
			}
		})
	}
}

func TestUnauthorizedLocalized(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")
	w := httptest.NewRecorder()

	Unauthorized(w, r, &domain.AuthError{Code: domain.AuthInvalidCredentials})

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_credentials", body["code"])
	assert.Equal(t, "이메일 또는 비밀번호가 올바르지 않습니다.", body["error"])
}

func TestOptionalSession(t *testing.T) {
	h := OptionalSession(resolver, logger.Nop())(http.HandlerFunc(echoUser))

	for token, want := range map[string]string{"good": "u1", "": "anonymous", "stale": "anonymous", "broken": "anonymous"} {
		r := httptest.NewRequest(http.MethodGet, "/api/gate", nil)
		if token != "" {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String(), "token %q", token)
	}
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host    string
		pattern string
		want    bool
	}{
		{"marky.example.com", "marky.example.com", true},
		{"marky.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "marky.example.com", false},
		{"marky.example.com", "marky.example.com:8080", true},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestAccessHosts(t *testing.T) {
	h := Access(AccessPolicy{Hosts: []string{"*.example.com"}}, logger.Nop())(http.HandlerFunc(echoUser))

	r := httptest.NewRequest(http.MethodGet, "http://Marky.Example.com:8080/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "http://other.org/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "host_not_allowed", body.Code)
}

func TestAccessNetworks(t *testing.T) {
	h := Access(AccessPolicy{CIDRs: []string{"10.0.0.0/8"}}, logger.Nop())(http.HandlerFunc(echoUser))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.RemoteAddr = "10.1.1.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r.RemoteAddr = "8.8.8.8:5555"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "network_not_allowed", body.Code)
}

func TestAccessEmptyPolicyPassesThrough(t *testing.T) {
	h := Access(AccessPolicy{}, logger.Nop())(http.HandlerFunc(echoUser))

	r := httptest.NewRequest(http.MethodGet, "http://anything.test/", nil)
	r.RemoteAddr = "203.0.113.7:1"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimiterRefill(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 2, RefillPerMin: 60})
	now := time.Now()

	ok, _, _ := l.take("1.2.3.4", now)
	assert.True(t, ok)
	ok, _, _ = l.take("1.2.3.4", now)
	assert.True(t, ok)
	ok, _, retry := l.take("1.2.3.4", now)
	assert.False(t, ok, "burst exhausted")
	assert.Equal(t, 1, retry)

	ok, _, _ = l.take("5.6.7.8", now)
	assert.True(t, ok, "buckets are per client")

	ok, _, _ = l.take("1.2.3.4", now.Add(time.Second))
	assert.True(t, ok, "one token back after a second at 60/min")
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerMin: 1, IdleTTL: time.Minute})
	now := time.Now()

	l.take("1.2.3.4", now)
	l.take("5.6.7.8", now.Add(2*time.Minute))
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "5.6.7.8")
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 1, RefillPerMin: 1}, logger.Nop())(http.HandlerFunc(echoUser))

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "192.0.2.9:1234"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	r.Header.Set("Accept-Language", "ko")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "too_many_attempts", body.Code)
	assert.Equal(t, "시도 횟수가 너무 많습니다. 잠시 후 다시 시도해주세요.", body.Error)
	assert.Equal(t, 60, body.RetryAfter)
}

func TestLoginKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":" Ada@Example.com ","password":"hunter22"}`))
	r.RemoteAddr = "192.0.2.9:1234"

	assert.Equal(t, "192.0.2.9|ada@example.com", LoginKey(r, false))

	rest, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":" Ada@Example.com ","password":"hunter22"}`, string(rest), "handler still sees the body")

	r = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("not json"))
	r.RemoteAddr = "192.0.2.9:1234"
	assert.Equal(t, "192.0.2.9", LoginKey(r, false))
}

func TestRateLimitPerEmail(t *testing.T) {
	var seen []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		seen = append(seen, in.Email)
	})
	h := RateLimit(RateLimitConfig{Burst: 1, RefillPerMin: 1, Key: LoginKey}, logger.Nop())(next)

	login := func(email string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"`+email+`","password":"x"}`))
		r.RemoteAddr = "192.0.2.9:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, login("ada@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, login("ADA@example.com"), "same address, same budget")
	assert.Equal(t, http.StatusOK, login("grace@example.com"), "another address behind the same IP has its own budget")
	assert.Equal(t, []string{"ada@example.com", "grace@example.com"}, seen)
}
