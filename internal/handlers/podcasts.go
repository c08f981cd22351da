package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"podcastr/internal/models"
	"podcastr/internal/podcast"
)

type createResponse struct {
	Podcast         models.Podcast `json:"podcast"`
	VoiceDowngraded bool           `json:"voiceDowngraded"`
}

func (h *Handlers) CreatePodcast(w http.ResponseWriter, r *http.Request) {
	var in podcast.CreateInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}

	res, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{Podcast: res.Podcast, VoiceDowngraded: res.VoiceDowngraded})
}

func (h *Handlers) GetPodcast(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListPodcasts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) ListTrending(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListTrending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) SearchPodcasts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) ListSimilar(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListByVoiceType(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListByAuthor(r.Context(), mux.Vars(r)["authorId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type viewResponse struct {
	Outcome string `json:"outcome"`
	Views   int64  `json:"views,omitempty"`
}

func (h *Handlers) IncrementViews(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.IncrementViews(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Outcome: res.Outcome.String(), Views: res.Views})
}

type deleteResponse struct {
	Deleted      bool     `json:"deleted"`
	PendingBlobs []string `json:"pendingBlobs"`
}

// DeletePodcast accepts optional imageStorageId and audioStorageId query
// parameters that must match the podcast's blobs.
func (h *Handlers) DeletePodcast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Delete(r.Context(), mux.Vars(r)["id"], q.Get("imageStorageId"), q.Get("audioStorageId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pending := res.PendingBlobs
	if pending == nil {
		pending = []string{}
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true, PendingBlobs: pending})
}
