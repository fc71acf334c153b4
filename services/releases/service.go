package releases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"timeboxd/internal/database"
	"timeboxd/models"
	"timeboxd/utils"
)

// IdentityCache is the identity freshness domain of the cache store.
type IdentityCache interface {
	GetIdentities(slugs []string) (map[string]models.FilmIdentity, error)
	PutIdentities(records []models.FilmIdentity) error
}

// ReleaseCache is the release freshness domain of the cache store.
type ReleaseCache interface {
	GetReleases(pairs []database.ReleasePair) (map[database.ReleasePair]models.CountryReleaseSet, error)
	PutReleases(tmdbID int64, sets []models.CountryReleaseSet) error
}

// ProviderCache is the watch-provider freshness domain of the cache store.
type ProviderCache interface {
	GetProviders(pairs []database.ReleasePair) (map[database.ReleasePair]models.ProviderResult, error)
	PutProviders(tmdbID int64, country string, res models.ProviderResult) error
}

// CatalogClient is the slice of the TMDB client the pipeline needs.
type CatalogClient interface {
	SearchMovie(ctx context.Context, title string, year int) (*models.CatalogMatch, error)
	MovieDetails(ctx context.Context, tmdbID int64) (string, error)
	ReleaseDates(ctx context.Context, tmdbID int64, primaryCountry string) (models.ReleaseDatesResult, error)
	WatchProviders(ctx context.Context, tmdbID int64, country string) (models.ProviderResult, error)
}

// WatchlistSource provides per-film detail pages from the watchlist site.
type WatchlistSource interface {
	Film(ctx context.Context, slug string) (*models.FilmDetail, error)
}

// Service is the release-resolution pipeline: it takes scraped watchlist
// entries and produces categorized release data per film, going to the
// cache store first and the upstream catalog only for misses.
type Service struct {
	films     IdentityCache
	releases  ReleaseCache
	providers ProviderCache
	catalog   CatalogClient
	source    WatchlistSource
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates the pipeline service. A nil logger falls back to the
// default slog logger scoped to this component.
func NewService(films IdentityCache, releases ReleaseCache, providers ProviderCache,
	catalog CatalogClient, source WatchlistSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}
	return &Service{
		films:     films,
		releases:  releases,
		providers: providers,
		catalog:   catalog,
		source:    source,
		log:       logger,
		now:       time.Now,
	}
}

// pendingResolution is one film awaiting identity resolution, with its
// fresh-but-incomplete cache row when one exists.
type pendingResolution struct {
	entry  models.WatchlistEntry
	cached *models.FilmIdentity
}

// Process runs the full pipeline for one watchlist. Films older than
// currentYear-3 are skipped; per-film upstream failures drop only that
// film; cache storage failures abort the whole run.
func (s *Service) Process(ctx context.Context, films []models.WatchlistEntry, country string,
	maxConcurrent int, currentYear int) ([]models.FilmWithReleases, error) {

	country, err := utils.NormalizeCountry(country)
	if err != nil {
		return nil, err
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	runLog := s.log.With("run", uuid.NewString()[:8], "country", country)

	// Step 1: recent films only; an unknown year always passes.
	cutoffYear := currentYear - 3
	eligible := make([]models.WatchlistEntry, 0, len(films))
	for _, film := range films {
		if film.Year == 0 || film.Year >= cutoffYear {
			eligible = append(eligible, film)
		}
	}
	runLog.Info("pipeline start", "films", len(films), "eligible", len(eligible))

	identities, err := s.resolveIdentities(ctx, eligible, maxConcurrent, runLog)
	if err != nil {
		return nil, err
	}

	countries := tiersFor(country)
	releaseData, droppedIDs, err := s.loadReleaseData(ctx, identities, country, countries, maxConcurrent, runLog)
	if err != nil {
		return nil, err
	}

	// Step 7: categorize each film against the merged cached+fresh data.
	results := make([]models.FilmWithReleases, 0, len(identities))
	for _, identity := range identities {
		if droppedIDs[identity.TMDBID] {
			continue
		}
		data := make(map[string]models.CountryReleaseSet, len(countries))
		for _, tier := range countries {
			if set, ok := releaseData[database.ReleasePair{TMDBID: identity.TMDBID, Country: tier}]; ok {
				data[tier] = set
			}
		}
		resolved := resolveFallback(country, data)
		if resolved.Theatrical == nil {
			resolved.Theatrical = []models.ReleaseEntry{}
		}
		if resolved.Streaming == nil {
			resolved.Streaming = []models.ReleaseEntry{}
		}
		results = append(results, models.FilmWithReleases{
			Slug:       identity.Slug,
			TMDBID:     identity.TMDBID,
			Title:      identity.Title,
			Year:       identity.Year,
			PosterPath: identity.PosterPath,
			Category:   resolved.Category,
			Theatrical: resolved.Theatrical,
			Streaming:  resolved.Streaming,
		})
	}

	results, err = s.attachProviders(ctx, results, country, maxConcurrent, runLog)
	if err != nil {
		return nil, err
	}

	sortFilms(results)
	runLog.Info("pipeline done", "results", len(results))
	return results, nil
}

// resolveIdentities is steps 2-4: bulk cache load, concurrent resolution
// of the films the cache cannot answer, one bulk write of everything newly
// resolved. The returned list only has films with a TMDB ID; the rest are
// dropped silently.
func (s *Service) resolveIdentities(ctx context.Context, films []models.WatchlistEntry,
	maxConcurrent int, runLog *slog.Logger) ([]models.FilmIdentity, error) {

	slugs := make([]string, len(films))
	for i, film := range films {
		slugs[i] = film.Slug
	}

	cached, err := s.films.GetIdentities(slugs)
	if err != nil {
		return nil, fmt.Errorf("load identity cache: %w", err)
	}

	var resolved []models.FilmIdentity
	var pending []pendingResolution
	for _, film := range films {
		row, ok := cached[film.Slug]
		if ok && row.Resolved() && row.PosterPath != "" {
			resolved = append(resolved, row)
			continue
		}
		item := pendingResolution{entry: film}
		if ok {
			rowCopy := row
			item.cached = &rowCopy
		}
		pending = append(pending, item)
	}
	runLog.Info("identity cache", "hits", len(resolved), "pending", len(pending))

	if len(pending) == 0 {
		return resolved, nil
	}

	p := pool.NewWithResults[models.FilmIdentity]().WithMaxGoroutines(maxConcurrent)
	for _, item := range pending {
		item := item
		p.Go(func() models.FilmIdentity {
			return s.resolveIdentity(ctx, item.entry, item.cached)
		})
	}
	freshlyResolved := p.Wait()

	// Unresolved identities are persisted too, so an immediate retry does
	// not re-scrape the detail page.
	if err := s.films.PutIdentities(freshlyResolved); err != nil {
		return nil, fmt.Errorf("persist identities: %w", err)
	}

	for _, identity := range freshlyResolved {
		if identity.Resolved() {
			resolved = append(resolved, identity)
		} else {
			runLog.Info("film has no catalog identity, skipping", "slug", identity.Slug)
		}
	}
	return resolved, nil
}

// releaseFetch is the outcome of one upstream release-dates call, covering
// every required country for one TMDB ID.
type releaseFetch struct {
	tmdbID int64
	sets   map[string]models.CountryReleaseSet
	ok     bool
}

// loadReleaseData is steps 5-6: bulk release-cache load for all
// (TMDB ID, country) pairs, then concurrent upstream fetches for the IDs
// with any miss — grouped by ID because one call returns every country.
// Synthetic demo responses are never persisted. Films whose fetch failed
// come back in droppedIDs.
func (s *Service) loadReleaseData(ctx context.Context, identities []models.FilmIdentity,
	primaryCountry string, countries []string, maxConcurrent int,
	runLog *slog.Logger) (map[database.ReleasePair]models.CountryReleaseSet, map[int64]bool, error) {

	ids := make([]int64, 0, len(identities))
	seen := make(map[int64]bool, len(identities))
	for _, identity := range identities {
		if !seen[identity.TMDBID] {
			seen[identity.TMDBID] = true
			ids = append(ids, identity.TMDBID)
		}
	}

	pairs := make([]database.ReleasePair, 0, len(ids)*len(countries))
	for _, id := range ids {
		for _, country := range countries {
			pairs = append(pairs, database.ReleasePair{TMDBID: id, Country: country})
		}
	}

	releaseData, err := s.releases.GetReleases(pairs)
	if err != nil {
		return nil, nil, fmt.Errorf("load release cache: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		for _, country := range countries {
			if _, ok := releaseData[database.ReleasePair{TMDBID: id, Country: country}]; !ok {
				missing = append(missing, id)
				break
			}
		}
	}
	runLog.Info("release cache", "pairs", len(pairs), "films_to_fetch", len(missing))

	droppedIDs := make(map[int64]bool)
	if len(missing) == 0 {
		return releaseData, droppedIDs, nil
	}

	p := pool.NewWithResults[releaseFetch]().WithErrors().WithMaxGoroutines(maxConcurrent)
	for _, id := range missing {
		id := id
		p.Go(func() (releaseFetch, error) {
			result, err := s.catalog.ReleaseDates(ctx, id, primaryCountry)
			if err != nil {
				runLog.Warn("release fetch failed, dropping film", "tmdbId", id, "error", err)
				return releaseFetch{tmdbID: id}, nil
			}

			byCountry := make(map[string]models.CountryReleaseSet, len(result.AllCountries))
			for _, set := range result.AllCountries {
				byCountry[set.Country] = set
			}
			// A required country absent from the response still gets an
			// explicit empty set: "confirmed no releases" is cacheable.
			toPersist := result.AllCountries
			for _, country := range countries {
				if _, ok := byCountry[country]; !ok {
					empty := models.CountryReleaseSet{Country: country}
					byCountry[country] = empty
					toPersist = append(toPersist, empty)
				}
			}

			if !result.Synthetic {
				if err := s.releases.PutReleases(id, toPersist); err != nil {
					return releaseFetch{}, fmt.Errorf("persist releases for %d: %w", id, err)
				}
			}

			needed := make(map[string]models.CountryReleaseSet, len(countries))
			for _, country := range countries {
				needed[country] = byCountry[country]
			}
			return releaseFetch{tmdbID: id, sets: needed, ok: true}, nil
		})
	}

	fetched, err := p.Wait()
	if err != nil {
		return nil, nil, err
	}

	for _, fetch := range fetched {
		if !fetch.ok {
			droppedIDs[fetch.tmdbID] = true
			continue
		}
		for country, set := range fetch.sets {
			releaseData[database.ReleasePair{TMDBID: fetch.tmdbID, Country: country}] = set
		}
	}
	return releaseData, droppedIDs, nil
}

// providerFetch is the outcome of one upstream watch-providers call.
type providerFetch struct {
	pair database.ReleasePair
	res  models.ProviderResult
	ok   bool
}

// attachProviders is step 8: films not already known to stream in the
// future get a watch-provider lookup for the requested country,
// cache-then-fetch. A failed fetch drops the film; a cache error aborts.
func (s *Service) attachProviders(ctx context.Context, films []models.FilmWithReleases,
	country string, maxConcurrent int, runLog *slog.Logger) ([]models.FilmWithReleases, error) {

	today := s.now().Format(time.DateOnly)

	var pairs []database.ReleasePair
	needs := make(map[database.ReleasePair]bool)
	for _, film := range films {
		pair := database.ReleasePair{TMDBID: film.TMDBID, Country: country}
		if needsProviderLookup(film, today) && !needs[pair] {
			needs[pair] = true
			pairs = append(pairs, pair)
		}
	}
	if len(pairs) == 0 {
		return films, nil
	}

	cached, err := s.providers.GetProviders(pairs)
	if err != nil {
		return nil, fmt.Errorf("load provider cache: %w", err)
	}

	var missing []database.ReleasePair
	for _, pair := range pairs {
		if _, ok := cached[pair]; !ok {
			missing = append(missing, pair)
		}
	}
	runLog.Info("provider cache", "lookups", len(pairs), "to_fetch", len(missing))

	failed := make(map[database.ReleasePair]bool)
	if len(missing) > 0 {
		p := pool.NewWithResults[providerFetch]().WithErrors().WithMaxGoroutines(maxConcurrent)
		for _, pair := range missing {
			pair := pair
			p.Go(func() (providerFetch, error) {
				res, err := s.catalog.WatchProviders(ctx, pair.TMDBID, pair.Country)
				if err != nil {
					runLog.Warn("provider fetch failed, dropping film",
						"tmdbId", pair.TMDBID, "error", err)
					return providerFetch{pair: pair}, nil
				}
				if err := s.providers.PutProviders(pair.TMDBID, pair.Country, res); err != nil {
					return providerFetch{}, fmt.Errorf("persist providers for %d/%s: %w",
						pair.TMDBID, pair.Country, err)
				}
				return providerFetch{pair: pair, res: res, ok: true}, nil
			})
		}
		fetched, err := p.Wait()
		if err != nil {
			return nil, err
		}
		for _, fetch := range fetched {
			if !fetch.ok {
				failed[fetch.pair] = true
				continue
			}
			cached[fetch.pair] = fetch.res
		}
	}

	out := films[:0]
	for _, film := range films {
		pair := database.ReleasePair{TMDBID: film.TMDBID, Country: country}
		if !needs[pair] {
			out = append(out, film)
			continue
		}
		if failed[pair] {
			continue
		}
		res := cached[pair]
		film.Providers = res.Providers
		film.WatchLink = res.Link
		out = append(out, film)
	}
	return out, nil
}

// sortFilms orders the final list by earliest release date ascending —
// first theatrical entry, else first streaming entry — with dateless films
// last and ties broken by title.
func sortFilms(films []models.FilmWithReleases) {
	sort.SliceStable(films, func(i, j int) bool {
		a, b := earliestDate(films[i]), earliestDate(films[j])
		if a != b {
			if a == "" {
				return false
			}
			if b == "" {
				return true
			}
			return a < b
		}
		return films[i].Title < films[j].Title
	})
}

func earliestDate(film models.FilmWithReleases) string {
	if len(film.Theatrical) > 0 {
		return film.Theatrical[0].Date
	}
	if len(film.Streaming) > 0 {
		return film.Streaming[0].Date
	}
	return ""
}
