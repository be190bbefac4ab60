package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
)

const readyTimeout = 2 * time.Second

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Readyz probes every registered component and answers 503 when one fails.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := runReadyChecks(r.Context(), d)

		resp := readyzResponse{Ready: len(failed) == 0}
		status := http.StatusOK
		if !resp.Ready {
			resp.Failed = failed
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// runReadyChecks returns the error text per failing component.
func runReadyChecks(parent context.Context, d deps.Deps) map[string]string {
	names := make([]string, 0, len(d.ReadyChecks))
	for name := range d.ReadyChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(parent, readyTimeout)
		err := d.ReadyChecks[name](ctx)
		cancel()
		if err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}
