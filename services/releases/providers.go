package releases

import "timeboxd/models"

// needsProviderLookup reports whether a film should get a watch-provider
// lookup: only when it has no streaming entry dated strictly after today,
// meaning it is not already known to start streaming in the future.
func needsProviderLookup(film models.FilmWithReleases, today string) bool {
	for _, e := range film.Streaming {
		if e.Date > today {
			return false
		}
	}
	return true
}
