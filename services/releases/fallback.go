package releases

import (
	"strings"

	"timeboxd/models"
)

// fallbackTiers maps a requested country to the ordered list of countries
// whose release data is consulted. Countries without an entry fall back to
// the US set. Adding a special-cased fallback is a data change here, not a
// code change.
var fallbackTiers = map[string][]string{
	"US": {"US"},
	"NZ": {"NZ", "AU", "US"},
}

// tiersFor returns the ordered fallback tiers for a requested country.
func tiersFor(country string) []string {
	if tiers, ok := fallbackTiers[country]; ok {
		return tiers
	}
	return []string{country, "US"}
}

// resolvedReleases is the outcome of fallback resolution for one film.
type resolvedReleases struct {
	Category   models.ReleaseCategory
	Theatrical []models.ReleaseEntry
	Streaming  []models.ReleaseEntry
}

// resolveFallback walks the fallback tiers for the requested country and
// categorizes the first tier that has any entries. It is a pure function
// over per-country data the orchestrator has already materialized; sets
// may be missing from data when a tier was never fetched.
//
// Within the winning tier, backfilled already-available entries win over
// upcoming ones: if any exist the film is already watchable somewhere and
// the category says so. Every emitted entry has the tier's country code
// written into its note so the consumer can tell which tier answered.
func resolveFallback(country string, data map[string]models.CountryReleaseSet) resolvedReleases {
	for _, tier := range tiersFor(country) {
		set, ok := data[tier]
		if !ok || set.Empty() {
			continue
		}

		availTheatrical, upTheatrical := partitionByAvailability(set.Theatrical)
		availStreaming, upStreaming := partitionByAvailability(set.Streaming)

		category := models.CategoryUpcoming
		if len(availTheatrical) > 0 || len(availStreaming) > 0 {
			category = models.CategoryAlreadyAvailable
		}

		return resolvedReleases{
			Category:   category,
			Theatrical: tagWithCountry(append(availTheatrical, upTheatrical...), tier),
			Streaming:  tagWithCountry(append(availStreaming, upStreaming...), tier),
		}
	}

	return resolvedReleases{Category: models.CategoryNoReleases}
}

// partitionByAvailability splits entries into backfilled already-available
// ones and upcoming ones, preserving date order within each group.
func partitionByAvailability(entries []models.ReleaseEntry) (available, upcoming []models.ReleaseEntry) {
	for _, e := range entries {
		if strings.Contains(e.Note, models.AlreadyAvailableNote) {
			available = append(available, e)
		} else {
			upcoming = append(upcoming, e)
		}
	}
	return available, upcoming
}

// tagWithCountry overwrites each entry's note with the tier country code.
func tagWithCountry(entries []models.ReleaseEntry, country string) []models.ReleaseEntry {
	out := make([]models.ReleaseEntry, len(entries))
	for i, e := range entries {
		e.Note = country
		out[i] = e
	}
	return out
}
