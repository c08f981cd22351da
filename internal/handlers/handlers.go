// Package handlers exposes the podcast service over HTTP as JSON.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"podcastr/internal/blob"
	"podcastr/internal/podcast"
)

type Options struct {
	BaseURL        string
	MaxUploadBytes int64
	WebhookSecret  string
	// Files serves /files/{ref} when blobs are stored locally.
	Files *blob.Local
}

type Handlers struct {
	svc            *podcast.Service
	baseURL        string
	maxUploadBytes int64
	webhookSecret  string
	files          *blob.Local
}

const defaultMaxUploadBytes = 50 << 20

func New(svc *podcast.Service, opts Options) *Handlers {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handlers{
		svc:            svc,
		baseURL:        opts.BaseURL,
		maxUploadBytes: opts.MaxUploadBytes,
		webhookSecret:  opts.WebhookSecret,
		files:          opts.Files,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, podcast.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{"unauthenticated", err.Error()})
	case errors.Is(err, podcast.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{"not_found", err.Error()})
	case errors.Is(err, podcast.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{"forbidden", err.Error()})
	case errors.Is(err, podcast.ErrQuotaExceeded):
		writeJSON(w, http.StatusForbidden, errorBody{"quota_exceeded", err.Error()})
	case errors.Is(err, podcast.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid_argument", err.Error()})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{"invalid_argument", "upload too large"})
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{"operation_failed", "Internal server error"})
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{"invalid_argument", message})
}
