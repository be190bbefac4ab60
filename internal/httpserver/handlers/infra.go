package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	Mode        string `json:"mode,omitempty"`
	ViewsCached *int   `json:"views_cached,omitempty"`
	LastReload  string `json:"last_reload,omitempty"`
	Clients     *int   `json:"clients,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the cached views, the realtime channel and every ready check.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := d.Bookmarks.Index().Count()
		lastReload := d.Bookmarks.Index().GetLastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"bookmarks": {
				OK:          true,
				Mode:        d.Backend,
				ViewsCached: &views,
				LastReload:  lastReloadStr,
			},
		}

		if d.Hub != nil {
			clients := d.Hub.Count()
			components["realtime"] = componentStatus{OK: true, Mode: "websocket", Clients: &clients}
		}

		failed := runReadyChecks(r.Context(), d)
		for name := range d.ReadyChecks {
			st := components[name]
			st.OK = true
			if msg, bad := failed[name]; bad {
				st.OK = false
				st.Error = msg
				st.Impact = impactOf(name)
			}
			components[name] = st
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func impactOf(component string) string {
	switch component {
	case "auth":
		return "sign-in-disabled"
	case "redis", "sqlite", "local":
		return "bookmarks-unavailable"
	}
	return "unknown"
}

func determineStatus(components map[string]componentStatus) string {
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "operational"
}
