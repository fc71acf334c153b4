package main

import (
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"timeboxd/api"
	"timeboxd/config"
	"timeboxd/handlers"
	"timeboxd/internal/database"
	"timeboxd/services/letterboxd"
	"timeboxd/services/releases"
	"timeboxd/services/tmdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}

	setupLogging(cfg.LogPath)

	db, err := database.NewDB(database.Config{
		DatabasePath: cfg.DatabasePath,
		FilmTTL:      time.Duration(cfg.FilmTTLDays) * 24 * time.Hour,
		ReleaseTTL:   time.Duration(cfg.ReleaseTTLDays) * 24 * time.Hour,
		ProviderTTL:  time.Duration(cfg.ProviderTTLDays) * 24 * time.Hour,
	})
	if err != nil {
		log.Fatalf("[main] failed to open cache database: %v", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	catalog := tmdb.NewClient(cfg.TMDBAPIKey, cfg.TMDBBaseURL, cfg.TMDBRPS, httpClient)
	if catalog.Demo() {
		log.Printf("[main] no TMDB API key configured, running in demo mode")
	}
	source := letterboxd.NewClient(httpClient, "", cfg.LetterboxdDelay)

	pipeline := releases.NewService(db.Films, db.Releases, db.Providers, catalog, source, nil)

	trackHandler := handlers.NewTrackHandler(source, pipeline, cfg.MaxConcurrent)
	trackLimiter := api.NewIPRateLimiter(
		rate.Every(time.Minute/time.Duration(max(cfg.TrackRatePerMinute, 1))),
		max(cfg.TrackRatePerMinute, 1))

	router := mux.NewRouter()
	router.HandleFunc("/api/health", handlers.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/track",
		api.RateLimitHandlerFunc(trackLimiter, trackHandler.Track)).Methods(http.MethodPost)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Track runs scrape and resolve a whole watchlist before responding.
		WriteTimeout: 10 * time.Minute,
	}

	log.Printf("[main] listening on %s", cfg.Addr())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[main] server error: %v", err)
	}
}

// setupLogging routes slog output to a rotating file when LOG_PATH is set,
// mirroring it to stderr.
func setupLogging(logPath string) {
	var out io.Writer = os.Stderr
	if logPath != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, nil)))
	log.SetOutput(out)
}
