package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/marky/internal/auth"
	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marky/internal/logger"
)

const maxFormBytes = 1 << 20

type errorResponse = mw.ErrorBody

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unknown is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	var (
		ve *domain.ValidationError
		ae *domain.AuthError
	)
	locale := r.Header.Get("Accept-Language")

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Errors: ve.Fields})

	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.As(err, &ae):
		switch ae.Code {
		case domain.AuthSessionExpired:
			mw.Unauthorized(w, r, err)
		case domain.AuthUserExists:
			writeJSON(w, http.StatusConflict, errorResponse{Error: auth.Message(err, locale), Code: string(ae.Code)})
		case domain.AuthInvalidEmail, domain.AuthWeakPassword:
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: auth.Message(err, locale), Code: string(ae.Code)})
		default:
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.Message(err, locale), Code: string(ae.Code)})
		}

	case errors.Is(err, context.Canceled):
		// client went away, nobody reads the answer
		d.Logger.Debug("request canceled", logger.String("path", r.URL.Path))

	default:
		d.Logger.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: auth.Message(err, locale)})
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// sessionOf returns the session placed by mw.RequireSession.
func sessionOf(r *http.Request) domain.Session {
	sess, _ := domain.SessionFrom(r.Context())
	return sess
}
