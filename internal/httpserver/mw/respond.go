package mw

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error shape shared by middleware and handlers.
type ErrorBody struct {
	Error      string            `json:"error"`
	Code       string            `json:"code,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Redirect   string            `json:"redirect,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
}

func writeError(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
