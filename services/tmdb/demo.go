package tmdb

import (
	"time"

	"timeboxd/models"
)

// Demo mode responses, used when no TMDB API key is configured so the app
// can be exercised end to end without credentials. Everything here is
// fabricated; release results carry Synthetic=true and the pipeline skips
// cache writes for them.

const (
	demoTMDBID     = 550
	demoPosterPath = "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg"
)

func (c *Client) demoSearch() *models.CatalogMatch {
	return &models.CatalogMatch{TMDBID: demoTMDBID, PosterPath: demoPosterPath}
}

func (c *Client) demoPoster() string {
	return demoPosterPath
}

// demoReleaseDates fabricates one theatrical date a year out and one
// digital date three months after that.
func (c *Client) demoReleaseDates(country string) models.ReleaseDatesResult {
	theatrical := c.now().AddDate(1, 0, 0).Format(time.DateOnly)
	digital := c.now().AddDate(1, 3, 0).Format(time.DateOnly)

	set := models.CountryReleaseSet{
		Country: country,
		Theatrical: []models.ReleaseEntry{
			{Date: theatrical, Kind: models.ReleaseTheatrical, Note: "Mock theatrical release"},
		},
		Streaming: []models.ReleaseEntry{
			{Date: digital, Kind: models.ReleaseDigital, Note: "Mock streaming release"},
		},
	}

	return models.ReleaseDatesResult{
		Requested:    set,
		AllCountries: []models.CountryReleaseSet{set},
		Synthetic:    true,
	}
}

func (c *Client) demoProviders() models.ProviderResult {
	return models.ProviderResult{
		Link: "https://www.themoviedb.org/movie/550/watch",
		Providers: []models.WatchProvider{
			{ProviderID: 8, Name: "Netflix", LogoPath: "/pbpMk2JmcoNnQwx5JGpXngfoWtp.jpg", Type: models.ProviderStream},
		},
	}
}
