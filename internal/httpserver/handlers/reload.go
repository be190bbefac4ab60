package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/scheduler"
)

// Reload queues a full reconciliation of every cached view.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scheduler.Trigger(d.ReloadTrigger) {
			d.Logger.Info("manual bookmarks reload triggered via endpoint",
				logger.String("user_id", sessionOf(r).UserID),
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload triggered"})
			return
		}

		d.Logger.Warn("bookmarks reload already in progress",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "reload already in progress, please wait"})
	}
}
