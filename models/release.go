package models

import (
	"fmt"
	"sort"
)

// ReleaseType mirrors TMDB's release type codes for the two kinds we track.
type ReleaseType int

const (
	ReleaseTheatrical ReleaseType = 3
	ReleaseDigital    ReleaseType = 4
)

// ReleaseTypeFromCode maps a TMDB release type code to a ReleaseType,
// returning false for codes we do not track (premieres, physical, TV).
func ReleaseTypeFromCode(code int) (ReleaseType, bool) {
	switch ReleaseType(code) {
	case ReleaseTheatrical, ReleaseDigital:
		return ReleaseType(code), true
	}
	return 0, false
}

func (t ReleaseType) String() string {
	switch t {
	case ReleaseTheatrical:
		return "theatrical"
	case ReleaseDigital:
		return "digital"
	}
	return fmt.Sprintf("release_type(%d)", int(t))
}

// MarshalJSON emits the human-readable name rather than the TMDB code.
func (t ReleaseType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts the names MarshalJSON emits as well as the raw
// TMDB codes, so API response bodies round-trip.
func (t *ReleaseType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"theatrical"`, "3":
		*t = ReleaseTheatrical
	case `"digital"`, "4":
		*t = ReleaseDigital
	default:
		return fmt.Errorf("unknown release type %s", data)
	}
	return nil
}

// AlreadyAvailableNote marks a backfilled past release. The client sets it
// when it collapses past dates into a single representative entry.
const AlreadyAvailableNote = "Already available"

// ReleaseEntry is one dated release event. Date is a calendar date in
// ISO form (2006-01-02, no time component); ISO dates compare correctly
// as strings, which every sort and future/past check relies on.
type ReleaseEntry struct {
	Date string      `json:"date"`
	Kind ReleaseType `json:"kind"`
	Note string      `json:"note,omitempty"`
}

// CountryReleaseSet holds all release entries for one (TMDB ID, country)
// pair, split by kind. Both lists are sorted by date ascending and
// deduplicated by (date, kind, note).
type CountryReleaseSet struct {
	Country    string         `json:"country"`
	Theatrical []ReleaseEntry `json:"theatrical"`
	Streaming  []ReleaseEntry `json:"streaming"`
}

// Empty reports whether the set has no entries of either kind.
func (s CountryReleaseSet) Empty() bool {
	return len(s.Theatrical) == 0 && len(s.Streaming) == 0
}

// NormalizeEntries sorts entries by date ascending and drops exact
// duplicates by (date, kind, note). Every list handed to a consumer —
// cached or freshly fetched — goes through this first.
func NormalizeEntries(entries []ReleaseEntry) []ReleaseEntry {
	if len(entries) == 0 {
		return entries
	}
	sorted := make([]ReleaseEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	out := sorted[:0]
	var prev ReleaseEntry
	for i, e := range sorted {
		if i > 0 && e == prev {
			continue
		}
		out = append(out, e)
		prev = e
	}
	return out
}

// ReleaseDatesResult is the outcome of a single TMDB release-dates call.
// One upstream call returns every country TMDB knows about; Requested is
// the convenience view for the caller's primary country and AllCountries
// the full breakdown for caching. Synthetic results come from demo mode
// and must never reach the cache.
type ReleaseDatesResult struct {
	Requested    CountryReleaseSet
	AllCountries []CountryReleaseSet
	Synthetic    bool
}
