package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment
// with an optional .env file.
type Config struct {
	Host string
	Port int

	TMDBAPIKey  string
	TMDBBaseURL string
	TMDBRPS     float64

	DatabasePath    string
	FilmTTLDays     int
	ReleaseTTLDays  int
	ProviderTTLDays int

	MaxConcurrent      int
	LetterboxdDelay    time.Duration
	TrackRatePerMinute int

	LogPath string
}

// Load reads configuration from the environment. Every value has a
// default; only malformed values are an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:        envString("HOST", "0.0.0.0"),
		TMDBAPIKey:  envString("TMDB_API_KEY", ""),
		TMDBBaseURL: envString("TMDB_BASE_URL", "https://api.themoviedb.org/3"),

		DatabasePath: envString("DATABASE_PATH", "timeboxd.db"),

		LogPath: envString("LOG_PATH", ""),
	}

	var err error
	if cfg.Port, err = envInt("PORT", 3000); err != nil {
		return nil, err
	}
	if cfg.TMDBRPS, err = envFloat("TMDB_RPS", 4); err != nil {
		return nil, err
	}
	if cfg.FilmTTLDays, err = envInt("FILM_CACHE_TTL_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.ReleaseTTLDays, err = envInt("RELEASE_CACHE_TTL_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.ProviderTTLDays, err = envInt("PROVIDER_CACHE_TTL_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = envInt("MAX_CONCURRENT_REQUESTS", 5); err != nil {
		return nil, err
	}
	if cfg.TrackRatePerMinute, err = envInt("TRACK_RATE_PER_MINUTE", 5); err != nil {
		return nil, err
	}

	delayMs, err := envInt("LETTERBOXD_DELAY_MS", 250)
	if err != nil {
		return nil, err
	}
	cfg.LetterboxdDelay = time.Duration(delayMs) * time.Millisecond

	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}
