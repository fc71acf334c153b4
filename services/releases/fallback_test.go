package releases

import (
	"testing"

	"timeboxd/models"
)

func upcoming(date string, kind models.ReleaseType) models.ReleaseEntry {
	return models.ReleaseEntry{Date: date, Kind: kind}
}

func available(date string, kind models.ReleaseType) models.ReleaseEntry {
	return models.ReleaseEntry{Date: date, Kind: kind, Note: models.AlreadyAvailableNote}
}

func TestTiersFor(t *testing.T) {
	cases := map[string][]string{
		"US": {"US"},
		"NZ": {"NZ", "AU", "US"},
		"FR": {"FR", "US"},
		"DE": {"DE", "US"},
	}
	for country, want := range cases {
		got := tiersFor(country)
		if len(got) != len(want) {
			t.Fatalf("tiersFor(%s) = %v, want %v", country, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("tiersFor(%s) = %v, want %v", country, got, want)
			}
		}
	}
}

func TestResolveFallback_LocalUpcoming(t *testing.T) {
	result := resolveFallback("US", map[string]models.CountryReleaseSet{
		"US": {Country: "US", Theatrical: []models.ReleaseEntry{
			upcoming("2026-03-01", models.ReleaseTheatrical),
		}},
	})

	if result.Category != models.CategoryUpcoming {
		t.Fatalf("expected upcoming, got %s", result.Category)
	}
	if len(result.Theatrical) != 1 || result.Theatrical[0].Note != "US" {
		t.Fatalf("expected theatrical entry tagged US, got %+v", result.Theatrical)
	}
	if len(result.Streaming) != 0 {
		t.Fatalf("expected no streaming entries, got %+v", result.Streaming)
	}
}

func TestResolveFallback_AlreadyAvailableFirst(t *testing.T) {
	result := resolveFallback("US", map[string]models.CountryReleaseSet{
		"US": {Country: "US",
			Theatrical: []models.ReleaseEntry{
				upcoming("2026-06-01", models.ReleaseTheatrical),
			},
			Streaming: []models.ReleaseEntry{
				available("2025-06-01", models.ReleaseDigital),
				upcoming("2026-09-01", models.ReleaseDigital),
			},
		},
	})

	if result.Category != models.CategoryAlreadyAvailable {
		t.Fatalf("expected already_available, got %s", result.Category)
	}
	// Backfilled entries come first within each kind.
	if result.Streaming[0].Date != "2025-06-01" {
		t.Fatalf("expected backfilled entry first, got %+v", result.Streaming)
	}
	for _, e := range append(result.Theatrical, result.Streaming...) {
		if e.Note != "US" {
			t.Fatalf("expected every entry tagged US, got %+v", e)
		}
	}
}

func TestResolveFallback_USFallbackTagged(t *testing.T) {
	result := resolveFallback("FR", map[string]models.CountryReleaseSet{
		"FR": {Country: "FR"},
		"US": {Country: "US", Theatrical: []models.ReleaseEntry{
			upcoming("2026-03-01", models.ReleaseTheatrical),
		}},
	})

	if result.Category != models.CategoryUpcoming {
		t.Fatalf("expected upcoming via US fallback, got %s", result.Category)
	}
	if result.Theatrical[0].Note != "US" {
		t.Fatalf("expected US tag, got %q", result.Theatrical[0].Note)
	}
}

func TestResolveFallback_NZUsesAustraliaBeforeUS(t *testing.T) {
	result := resolveFallback("NZ", map[string]models.CountryReleaseSet{
		"NZ": {Country: "NZ"},
		"AU": {Country: "AU", Streaming: []models.ReleaseEntry{
			upcoming("2026-05-01", models.ReleaseDigital),
		}},
		"US": {Country: "US", Theatrical: []models.ReleaseEntry{
			upcoming("2026-03-01", models.ReleaseTheatrical),
		}},
	})

	if result.Category != models.CategoryUpcoming {
		t.Fatalf("expected upcoming via AU, got %s", result.Category)
	}
	if len(result.Streaming) != 1 || result.Streaming[0].Note != "AU" {
		t.Fatalf("expected AU-tagged streaming entry, got %+v", result.Streaming)
	}
	if len(result.Theatrical) != 0 {
		t.Fatalf("US tier must not leak when AU answered, got %+v", result.Theatrical)
	}
}

func TestResolveFallback_NoReleases(t *testing.T) {
	result := resolveFallback("NZ", map[string]models.CountryReleaseSet{
		"NZ": {Country: "NZ"},
		"AU": {Country: "AU"},
		"US": {Country: "US"},
	})

	if result.Category != models.CategoryNoReleases {
		t.Fatalf("expected no_releases, got %s", result.Category)
	}
	if len(result.Theatrical) != 0 || len(result.Streaming) != 0 {
		t.Fatal("expected empty lists for no_releases")
	}
}

func TestResolveFallback_MissingTierDataSkipped(t *testing.T) {
	// A tier that was never materialized behaves like an empty one.
	result := resolveFallback("FR", map[string]models.CountryReleaseSet{
		"US": {Country: "US", Theatrical: []models.ReleaseEntry{
			upcoming("2026-03-01", models.ReleaseTheatrical),
		}},
	})
	if result.Category != models.CategoryUpcoming || result.Theatrical[0].Note != "US" {
		t.Fatalf("expected US fallback, got %+v", result)
	}
}
