package releases

import (
	"context"
	"time"

	"timeboxd/models"
	"timeboxd/utils"
)

// resolveIdentity turns one watchlist entry into a canonical identity.
// cached is the fresh cache row for the slug, or nil.
//
// A cached identity with a TMDB ID short-circuits everything except a
// best-effort poster backfill. Otherwise the film page is scraped for
// title, year and an embedded TMDB ID, with a slug-derived title as the
// fallback when the page cannot be fetched, and a catalog search as the
// last resort for the ID. The returned identity may still be unresolved;
// it is persisted regardless so an immediate retry does not re-scrape.
func (s *Service) resolveIdentity(ctx context.Context, entry models.WatchlistEntry, cached *models.FilmIdentity) models.FilmIdentity {
	if cached != nil && cached.Resolved() {
		identity := *cached
		if identity.PosterPath == "" {
			s.backfillPoster(ctx, &identity)
		}
		return identity
	}

	identity := models.FilmIdentity{
		Slug:      entry.Slug,
		Year:      entry.Year,
		UpdatedAt: time.Now(),
	}

	detail, err := s.source.Film(ctx, entry.Slug)
	if err != nil {
		s.log.Warn("film detail fetch failed, deriving title from slug",
			"slug", entry.Slug, "error", err)
		identity.Title = utils.TitleFromSlug(entry.Slug)
	} else {
		identity.Title = detail.Title
		if detail.Year > 0 {
			identity.Year = detail.Year
		}
		identity.TMDBID = detail.TMDBID
	}

	if identity.TMDBID == 0 {
		match, err := s.catalog.SearchMovie(ctx, identity.Title, identity.Year)
		if err != nil {
			s.log.Warn("catalog search failed", "slug", entry.Slug, "title", identity.Title, "error", err)
		} else if match != nil {
			identity.TMDBID = match.TMDBID
			identity.PosterPath = match.PosterPath
		}
	}

	if identity.Resolved() && identity.PosterPath == "" {
		s.backfillPoster(ctx, &identity)
	}

	return identity
}

// backfillPoster fills a missing poster path from the catalog's movie
// details endpoint. Failures are swallowed; a poster is cosmetic.
func (s *Service) backfillPoster(ctx context.Context, identity *models.FilmIdentity) {
	poster, err := s.catalog.MovieDetails(ctx, identity.TMDBID)
	if err != nil {
		s.log.Debug("poster backfill failed", "slug", identity.Slug, "tmdbId", identity.TMDBID, "error", err)
		return
	}
	identity.PosterPath = poster
}
