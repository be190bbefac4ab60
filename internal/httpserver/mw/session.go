package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marky/internal/auth"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/logger"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "marky_session"

// SessionResolver looks a token up. auth.Service implements it.
type SessionResolver interface {
	Session(ctx context.Context, token string) (domain.Session, error)
}

// TokenFrom reads the bearer token, then the session cookie.
func TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession rejects requests without a live session with 401 and a
// redirect hint to the login view.
func RequireSession(resolver SessionResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := resolver.Session(r.Context(), TokenFrom(r))
			if err != nil {
				if !domain.IsAuth(err) {
					log.Error("session lookup failed", logger.Error(err))
					writeError(w, http.StatusInternalServerError, ErrorBody{
						Error: auth.Message(err, r.Header.Get("Accept-Language")),
						Code:  string(domain.AuthUnknown),
					})
					return
				}
				Unauthorized(w, r, err)
				return
			}
			noteUser(r.Context(), sess.UserID)
			next.ServeHTTP(w, r.WithContext(domain.WithSession(r.Context(), sess)))
		})
	}
}

// OptionalSession injects the session when the token is live and lets
// the request through either way.
func OptionalSession(resolver SessionResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFrom(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := resolver.Session(r.Context(), token)
			if err != nil {
				if !domain.IsAuth(err) {
					log.Warn("optional session lookup failed", logger.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			noteUser(r.Context(), sess.UserID)
			next.ServeHTTP(w, r.WithContext(domain.WithSession(r.Context(), sess)))
		})
	}
}

// Unauthorized answers 401 with the localized auth message and the
// login redirect.
func Unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.AuthSessionExpired
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		code = ae.Code
	}
	writeError(w, http.StatusUnauthorized, ErrorBody{
		Error:    auth.Message(err, r.Header.Get("Accept-Language")),
		Code:     string(code),
		Redirect: auth.ViewLogin.Path(),
	})
}
