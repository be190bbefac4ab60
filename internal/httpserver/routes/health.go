package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marky/internal/httpserver/mw"
)

func init() { Register("health", registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Access(mw.AccessPolicy{CIDRs: d.AllowedCIDRS, TrustProxy: d.TrustProxy}, d.Logger))
		r.Get("/healthz", handlers.Healthz(d))
		r.Get("/readyz", handlers.Readyz(d))
		r.Get("/infra", handlers.Infra(d))
	})
}
