package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marky/internal/httpserver/mw"
)

func init() { Register("auth", registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	// login and signup share one budget per client IP and email
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:        d.LoginBurst,
		RefillPerMin: d.LoginRefillPerMin,
		MaxEntries:   10000,
		TrustProxy:   d.TrustProxy,
		Key:          mw.LoginKey,
	}, d.Logger)
	hosts := mw.Access(mw.AccessPolicy{Hosts: d.AllowedHosts}, d.Logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(hosts)

		r.With(limit).Post("/signup", handlers.Signup(d))
		r.With(limit).Post("/login", handlers.Login(d))
		r.With(mw.RequireSession(d.Auth, d.Logger)).Post("/logout", handlers.Logout(d))
		r.With(mw.OptionalSession(d.Auth, d.Logger)).Get("/session", handlers.CurrentSession(d))
	})

	r.With(
		hosts,
		mw.OptionalSession(d.Auth, d.Logger),
	).Get("/api/gate", handlers.Gate(d))
}
