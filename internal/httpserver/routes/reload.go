package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marky/internal/httpserver/mw"
)

func init() { Register("reload", registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	r.With(
		mw.Access(mw.AccessPolicy{Hosts: d.AllowedHosts}, d.Logger),
		mw.RequireSession(d.Auth, d.Logger),
	).Post("/api/reload", handlers.Reload(d))
}
