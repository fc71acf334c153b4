package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"timeboxd/models"
	"timeboxd/utils"
)

// watchlistService fetches a user's watchlist from the source site.
type watchlistService interface {
	Watchlist(ctx context.Context, username string, cutoffYear int) ([]models.WatchlistEntry, error)
}

// pipelineService resolves releases for a batch of watchlist entries.
type pipelineService interface {
	Process(ctx context.Context, films []models.WatchlistEntry, country string,
		maxConcurrent int, currentYear int) ([]models.FilmWithReleases, error)
}

// TrackHandler serves the track API endpoint: scrape a watchlist, run the
// release pipeline, return the categorized films.
type TrackHandler struct {
	Watchlist     watchlistService
	Pipeline      pipelineService
	MaxConcurrent int
}

// NewTrackHandler creates a new TrackHandler.
func NewTrackHandler(watchlist watchlistService, pipeline pipelineService, maxConcurrent int) *TrackHandler {
	return &TrackHandler{
		Watchlist:     watchlist,
		Pipeline:      pipeline,
		MaxConcurrent: maxConcurrent,
	}
}

// TrackResponse is the body of a successful track call.
type TrackResponse struct {
	Username string                    `json:"username"`
	Country  string                    `json:"country"`
	Films    []models.FilmWithReleases `json:"films"`
}

// Track handles POST /api/track.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req models.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	country, err := utils.NormalizeCountry(req.Country)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	currentYear := time.Now().Year()
	cutoffYear := currentYear - 3

	start := time.Now()
	log.Printf("[track] %s: fetching watchlist (country=%s)", username, country)

	entries, err := h.Watchlist.Watchlist(r.Context(), username, cutoffYear)
	if err != nil {
		log.Printf("[track] %s: watchlist fetch failed: %v", username, err)
		writeError(w, http.StatusBadGateway, "failed to fetch watchlist for "+username)
		return
	}

	films, err := h.Pipeline.Process(r.Context(), entries, country, h.MaxConcurrent, currentYear)
	if err != nil {
		log.Printf("[track] %s: pipeline failed: %v", username, err)
		writeError(w, http.StatusInternalServerError, "failed to resolve releases")
		return
	}

	log.Printf("[track] %s: %d watchlist entries -> %d films in %s",
		username, len(entries), len(films), time.Since(start).Round(time.Millisecond))

	if films == nil {
		films = []models.FilmWithReleases{}
	}
	writeJSON(w, http.StatusOK, TrackResponse{
		Username: username,
		Country:  country,
		Films:    films,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[track] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
