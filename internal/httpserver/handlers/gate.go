package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marky/internal/auth"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
)

type gateResponse struct {
	State    auth.State    `json:"state"`
	View     auth.View     `json:"view"`
	Decision auth.Decision `json:"decision"`
	Location string        `json:"location,omitempty"`
}

// Gate tells a client what to do when it opens a view. The session
// lookup has already run in mw.OptionalSession, so the gate is resolved.
func Gate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("view")
		if name == "" {
			name = string(auth.ViewHome)
		}
		view, err := auth.ParseView(name)
		if err != nil {
			badRequest(w, err)
			return
		}

		sess, ok := domain.SessionFrom(r.Context())
		var lookupErr error
		if !ok {
			lookupErr = &domain.AuthError{Code: domain.AuthSessionExpired}
		}
		g := auth.GateFor(sess, lookupErr)

		dec := g.Navigate(view)
		resp := gateResponse{State: g.State(), View: view, Decision: dec}
		if dec.RedirectTo != "" {
			resp.Location = dec.RedirectTo.Path()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
