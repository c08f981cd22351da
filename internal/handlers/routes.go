package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register mounts the API routes on r. Literal paths are registered before
// the {id} patterns they would otherwise collide with.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/podcasts", h.ListPodcasts).Methods(http.MethodGet)
	api.HandleFunc("/podcasts", h.CreatePodcast).Methods(http.MethodPost)
	api.HandleFunc("/podcasts/trending", h.ListTrending).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/search", h.SearchPodcasts).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/{id}", h.GetPodcast).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/{id}", h.DeletePodcast).Methods(http.MethodDelete)
	api.HandleFunc("/podcasts/{id}/similar", h.ListSimilar).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/{id}/views", h.IncrementViews).Methods(http.MethodPost)
	api.HandleFunc("/authors/{authorId}/podcasts", h.ListByAuthor).Methods(http.MethodGet)
	api.HandleFunc("/authors/{authorId}/feed.xml", h.GetRSSFeed).Methods(http.MethodGet)
	api.HandleFunc("/storage", h.UploadBlob).Methods(http.MethodPost)
	api.HandleFunc("/storage/{ref}/url", h.GetBlobURL).Methods(http.MethodGet)

	r.HandleFunc("/files/{ref}", h.ServeBlobFile).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/internal/users", h.SyncUser).Methods(http.MethodPut)
}
