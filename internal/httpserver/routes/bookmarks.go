package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marky/internal/httpserver/mw"
)

func init() { Register("bookmarks", registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Access(mw.AccessPolicy{Hosts: d.AllowedHosts}, d.Logger))
		r.Use(mw.RequireSession(d.Auth, d.Logger))

		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/", handlers.ListBookmarks(d))
			r.Post("/", handlers.CreateBookmark(d))
			r.Post("/import", handlers.ImportBookmarks(d))
			r.Get("/export", handlers.ExportBookmarks(d))
			r.Get("/ws", handlers.BookmarksSocket(d))
			r.Get("/tag/{tag}", handlers.TagClick(d))
			r.Get("/{id}", handlers.GetBookmark(d))
			r.Put("/{id}", handlers.UpdateBookmark(d))
			r.Delete("/{id}", handlers.DeleteBookmark(d))
		})

		r.Get("/api/tags", handlers.Tags(d))
	})
}
