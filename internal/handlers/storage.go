package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"podcastr/internal/models"
)

func (h *Handlers) UploadBlob(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	stored, err := h.svc.UploadBlob(r.Context(), body, r.ContentLength)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handlers) GetBlobURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.BlobURL(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ServeBlobFile serves a locally stored blob.
func (h *Handlers) ServeBlobFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		http.NotFound(w, r)
		return
	}
	filePath, err := h.files.Path(mux.Vars(r)["ref"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filePath)
}

// SyncUser receives identity and billing updates. Callers authenticate with
// the shared X-Webhook-Secret header.
func (h *Handlers) SyncUser(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Webhook-Secret")
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{"unauthenticated", "invalid webhook secret"})
		return
	}

	var in models.UserSync
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}

	user, err := h.svc.SyncUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
