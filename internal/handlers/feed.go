package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"podcastr/internal/feed"
)

func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	authorID := mux.Vars(r)["authorId"]

	author, err := h.svc.ListByAuthor(r.Context(), authorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(author.Podcasts) == 0 {
		http.Error(w, "Author not found", http.StatusNotFound)
		return
	}

	rss, err := feed.GenerateRSS(author, h.baseURL)
	if err != nil {
		log.Error().Err(err).Str("author_id", authorID).Msg("Error generating RSS")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
