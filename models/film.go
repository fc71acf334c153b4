package models

import "time"

// WatchlistEntry is one item scraped from a user's Letterboxd watchlist.
// The slug is the stable external key; the year is a hint parsed from the
// grid item and may be absent.
type WatchlistEntry struct {
	Slug string `json:"slug"`
	Year int    `json:"year,omitempty"`
}

// FilmIdentity is the canonical catalog record for a film, keyed by its
// Letterboxd slug. TMDBID stays zero until the film has been resolved
// against TMDB; identities without a TMDB ID are still persisted so an
// immediate retry does not re-scrape the detail page.
type FilmIdentity struct {
	Slug       string    `json:"slug"`
	TMDBID     int64     `json:"tmdbId,omitempty"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	PosterPath string    `json:"posterPath,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Resolved reports whether the identity carries a usable TMDB ID.
func (f FilmIdentity) Resolved() bool {
	return f.TMDBID > 0
}

// ReleaseCategory classifies how a film's releases were resolved for the
// requested country.
type ReleaseCategory string

const (
	// CategoryAlreadyAvailable means at least one release in the winning
	// fallback tier is a backfilled past release.
	CategoryAlreadyAvailable ReleaseCategory = "already_available"
	// CategoryUpcoming means the winning tier only has future releases.
	CategoryUpcoming ReleaseCategory = "upcoming"
	// CategoryNoReleases means every fallback tier was empty.
	CategoryNoReleases ReleaseCategory = "no_releases"
)

// FilmWithReleases is the final per-film result returned by the pipeline.
type FilmWithReleases struct {
	Slug       string          `json:"slug"`
	TMDBID     int64           `json:"tmdbId"`
	Title      string          `json:"title"`
	Year       int             `json:"year,omitempty"`
	PosterPath string          `json:"posterPath,omitempty"`
	Category   ReleaseCategory `json:"category"`
	Theatrical []ReleaseEntry  `json:"theatrical"`
	Streaming  []ReleaseEntry  `json:"streaming"`
	Providers  []WatchProvider `json:"providers,omitempty"`
	WatchLink  string          `json:"watchLink,omitempty"`
}

// HasReleases reports whether any release entry survived fallback resolution.
func (f FilmWithReleases) HasReleases() bool {
	return len(f.Theatrical) > 0 || len(f.Streaming) > 0
}

// CatalogMatch is the first hit of a TMDB title search.
type CatalogMatch struct {
	TMDBID     int64  `json:"tmdbId"`
	PosterPath string `json:"posterPath,omitempty"`
}

// FilmDetail is what the watchlist source's film page yields: the
// canonical title and year, plus the TMDB ID when the page embeds one.
type FilmDetail struct {
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	TMDBID int64  `json:"tmdbId,omitempty"`
}

// TrackRequest is the body of POST /api/track.
type TrackRequest struct {
	Username string `json:"username"`
	Country  string `json:"country"`
}
