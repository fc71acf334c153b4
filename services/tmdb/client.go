package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"timeboxd/models"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// Client talks to the TMDB API. Every call waits on a shared token bucket
// first, so the configured requests-per-second cap holds across all
// concurrent pipeline tasks. An empty API key switches the client into
// demo mode (see demo.go); demo responses are flagged Synthetic and must
// not be cached.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient creates a TMDB client capped at rps requests per second.
func NewClient(apiKey, baseURL string, rps float64, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		now:        time.Now,
	}
}

// Demo reports whether the client is running without credentials and
// fabricating responses.
func (c *Client) Demo() bool {
	return c.apiKey == ""
}

// SearchMovie returns the first search match for a title, or nil when TMDB
// has no match.
func (c *Client) SearchMovie(ctx context.Context, title string, year int) (*models.CatalogMatch, error) {
	if c.Demo() {
		return c.demoSearch(), nil
	}

	params := url.Values{"query": {title}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/search/movie", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	first := resp.Results[0]
	return &models.CatalogMatch{TMDBID: first.ID, PosterPath: first.PosterPath}, nil
}

// MovieDetails returns the poster path for a film. Used to backfill
// posters for identities resolved without one.
func (c *Client) MovieDetails(ctx context.Context, tmdbID int64) (string, error) {
	if c.Demo() {
		return c.demoPoster(), nil
	}

	var resp movieDetailsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", tmdbID), nil, &resp); err != nil {
		return "", err
	}
	return resp.PosterPath, nil
}

// ReleaseDates fetches release dates for a film. TMDB returns every
// country it knows about in one call; the result carries the full
// per-country breakdown for caching plus a convenience view for
// primaryCountry. Per country, future-or-today entries are kept as they
// are; past entries collapse into at most one "Already available" entry
// per kind — the most recent past date — and only when that date is
// within the last two years.
func (c *Client) ReleaseDates(ctx context.Context, tmdbID int64, primaryCountry string) (models.ReleaseDatesResult, error) {
	if c.Demo() {
		return c.demoReleaseDates(primaryCountry), nil
	}

	var resp releaseDatesResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/release_dates", tmdbID), nil, &resp); err != nil {
		return models.ReleaseDatesResult{}, err
	}

	today := c.now().Format(time.DateOnly)
	horizon := c.now().AddDate(-2, 0, 0).Format(time.DateOnly)

	var result models.ReleaseDatesResult
	for _, country := range resp.Results {
		set, err := partitionCountry(country, today, horizon)
		if err != nil {
			return models.ReleaseDatesResult{}, err
		}
		result.AllCountries = append(result.AllCountries, set)
		if set.Country == primaryCountry {
			result.Requested = set
		}
	}
	if result.Requested.Country == "" {
		result.Requested = models.CountryReleaseSet{Country: primaryCountry}
	}
	sort.Slice(result.AllCountries, func(i, j int) bool {
		return result.AllCountries[i].Country < result.AllCountries[j].Country
	})
	return result, nil
}

// partitionCountry splits one country's raw entries into the upcoming list
// plus at most one backfilled past entry per kind.
func partitionCountry(country releaseDatesCountry, today, horizon string) (models.CountryReleaseSet, error) {
	set := models.CountryReleaseSet{Country: country.ISO31661}
	// most recent past date per kind, empty when none seen
	lastPast := map[models.ReleaseType]string{}

	for _, raw := range country.ReleaseDates {
		kind, ok := models.ReleaseTypeFromCode(raw.Type)
		if !ok {
			continue
		}
		date, err := parseReleaseDate(raw.ReleaseDate)
		if err != nil {
			return models.CountryReleaseSet{}, fmt.Errorf("release date for %s: %w", country.ISO31661, err)
		}

		if date < today {
			if date > lastPast[kind] {
				lastPast[kind] = date
			}
			continue
		}

		entry := models.ReleaseEntry{Date: date, Kind: kind, Note: strings.TrimSpace(raw.Note)}
		switch kind {
		case models.ReleaseTheatrical:
			set.Theatrical = append(set.Theatrical, entry)
		case models.ReleaseDigital:
			set.Streaming = append(set.Streaming, entry)
		}
	}

	for kind, date := range lastPast {
		if date == "" || date < horizon {
			continue
		}
		entry := models.ReleaseEntry{Date: date, Kind: kind, Note: models.AlreadyAvailableNote}
		switch kind {
		case models.ReleaseTheatrical:
			set.Theatrical = append(set.Theatrical, entry)
		case models.ReleaseDigital:
			set.Streaming = append(set.Streaming, entry)
		}
	}

	set.Theatrical = models.NormalizeEntries(set.Theatrical)
	set.Streaming = models.NormalizeEntries(set.Streaming)
	return set, nil
}

// WatchProviders fetches the watch offers for a film in one country.
// Providers listed under several categories are kept only under the
// highest-priority one, stream over rent over buy.
func (c *Client) WatchProviders(ctx context.Context, tmdbID int64, country string) (models.ProviderResult, error) {
	if c.Demo() {
		return c.demoProviders(), nil
	}

	var resp watchProvidersResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/watch/providers", tmdbID), nil, &resp); err != nil {
		return models.ProviderResult{}, err
	}

	entry, ok := resp.Results[country]
	if !ok {
		return models.ProviderResult{}, nil
	}

	byID := make(map[int64]models.WatchProvider)
	collect := func(raw []watchProviderEntry, ptype models.ProviderType) {
		for _, p := range raw {
			existing, seen := byID[p.ProviderID]
			if seen && existing.Type.Priority() <= ptype.Priority() {
				continue
			}
			byID[p.ProviderID] = models.WatchProvider{
				ProviderID: p.ProviderID,
				Name:       p.ProviderName,
				LogoPath:   p.LogoPath,
				Link:       entry.Link,
				Type:       ptype,
			}
		}
	}
	collect(entry.Flatrate, models.ProviderStream)
	collect(entry.Rent, models.ProviderRent)
	collect(entry.Buy, models.ProviderBuy)

	result := models.ProviderResult{Link: entry.Link}
	for _, p := range byID {
		result.Providers = append(result.Providers, p)
	}
	sort.Slice(result.Providers, func(i, j int) bool {
		a, b := result.Providers[i], result.Providers[j]
		if a.Type != b.Type {
			return a.Type.Priority() < b.Type.Priority()
		}
		return a.Name < b.Name
	})
	return result, nil
}

// getJSON performs a rate-limited GET against the TMDB API and decodes the
// response body.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tmdb %s failed: %s - %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response for %s: %w", path, err)
	}
	return nil
}

// parseReleaseDate extracts the calendar date from TMDB's RFC 3339
// release_date values.
func parseReleaseDate(raw string) (string, error) {
	if len(raw) < len(time.DateOnly) {
		return "", fmt.Errorf("malformed release date %q", raw)
	}
	date := raw[:len(time.DateOnly)]
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return "", fmt.Errorf("malformed release date %q: %w", raw, err)
	}
	return date, nil
}

type searchResponse struct {
	Results []struct {
		ID         int64  `json:"id"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

type movieDetailsResponse struct {
	PosterPath string `json:"poster_path"`
}

type releaseDatesResponse struct {
	Results []releaseDatesCountry `json:"results"`
}

type releaseDatesCountry struct {
	ISO31661     string `json:"iso_3166_1"`
	ReleaseDates []struct {
		ReleaseDate string `json:"release_date"`
		Type        int    `json:"type"`
		Note        string `json:"note"`
	} `json:"release_dates"`
}

type watchProvidersResponse struct {
	Results map[string]watchProvidersCountry `json:"results"`
}

type watchProvidersCountry struct {
	Link     string               `json:"link"`
	Flatrate []watchProviderEntry `json:"flatrate"`
	Rent     []watchProviderEntry `json:"rent"`
	Buy      []watchProviderEntry `json:"buy"`
}

type watchProviderEntry struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}
