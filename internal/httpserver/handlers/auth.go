package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marky/internal/logger"
)

type sessionResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{Token: s.Token, UserID: s.UserID, Email: s.Email, ExpiresAt: s.ExpiresAt}
}

func setSessionCookie(w http.ResponseWriter, d deps.Deps, s domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, d deps.Deps) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Signup validates the signup form, creates the account and signs it in.
func Signup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in form.SignupInput
		if err := decodeJSON(w, r, &in); err != nil {
			badRequest(w, err)
			return
		}
		if err := in.Validate(); err != nil {
			writeError(w, r, d, err)
			return
		}

		sess, err := d.Auth.SignUp(r.Context(), in.Email, in.Password)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		d.Logger.Info("account created", logger.String("user_id", sess.UserID))
		setSessionCookie(w, d, sess)
		writeJSON(w, http.StatusCreated, newSessionResponse(sess))
	}
}

// Login validates the login form and opens a session.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in form.LoginInput
		if err := decodeJSON(w, r, &in); err != nil {
			badRequest(w, err)
			return
		}
		if err := in.Validate(); err != nil {
			writeError(w, r, d, err)
			return
		}

		sess, err := d.Auth.SignIn(r.Context(), in.Email, in.Password)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		setSessionCookie(w, d, sess)
		writeJSON(w, http.StatusOK, newSessionResponse(sess))
	}
}

// Logout ends the current session. It always clears the cookie.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Auth.SignOut(r.Context(), mw.TokenFrom(r)); err != nil {
			writeError(w, r, d, err)
			return
		}
		clearSessionCookie(w, d)
		w.WriteHeader(http.StatusNoContent)
	}
}

// CurrentSession answers the startup session lookup of a client.
func CurrentSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := domain.SessionFrom(r.Context())
		if !ok {
			if mw.TokenFrom(r) != "" {
				clearSessionCookie(w, d)
			}
			mw.Unauthorized(w, r, &domain.AuthError{Code: domain.AuthSessionExpired})
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(sess))
	}
}
