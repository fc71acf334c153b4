package database

import (
	"testing"
	"time"

	"timeboxd/models"
)

func usSet(entries ...models.ReleaseEntry) models.CountryReleaseSet {
	set := models.CountryReleaseSet{Country: "US"}
	for _, e := range entries {
		switch e.Kind {
		case models.ReleaseTheatrical:
			set.Theatrical = append(set.Theatrical, e)
		case models.ReleaseDigital:
			set.Streaming = append(set.Streaming, e)
		}
	}
	return set
}

func TestPutReleases_RoundTripSortedDeduped(t *testing.T) {
	db := setupTestDB(t)

	err := db.Releases.PutReleases(603, []models.CountryReleaseSet{usSet(
		models.ReleaseEntry{Date: "2026-06-01", Kind: models.ReleaseTheatrical},
		models.ReleaseEntry{Date: "2026-03-01", Kind: models.ReleaseTheatrical, Note: "IMAX"},
		models.ReleaseEntry{Date: "2026-03-01", Kind: models.ReleaseTheatrical, Note: "IMAX"},
		models.ReleaseEntry{Date: "2026-09-01", Kind: models.ReleaseDigital},
	)})
	if err != nil {
		t.Fatalf("PutReleases failed: %v", err)
	}

	got, err := db.Releases.GetReleases([]ReleasePair{{TMDBID: 603, Country: "US"}})
	if err != nil {
		t.Fatalf("GetReleases failed: %v", err)
	}
	set, ok := got[ReleasePair{TMDBID: 603, Country: "US"}]
	if !ok {
		t.Fatal("expected a fresh entry for 603/US")
	}
	if len(set.Theatrical) != 2 {
		t.Fatalf("expected 2 deduplicated theatrical entries, got %d", len(set.Theatrical))
	}
	if set.Theatrical[0].Date != "2026-03-01" || set.Theatrical[1].Date != "2026-06-01" {
		t.Errorf("expected date-ascending order, got %+v", set.Theatrical)
	}
	if len(set.Streaming) != 1 || set.Streaming[0].Date != "2026-09-01" {
		t.Errorf("unexpected streaming entries: %+v", set.Streaming)
	}
}

func TestPutReleases_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	sets := []models.CountryReleaseSet{usSet(
		models.ReleaseEntry{Date: "2026-03-01", Kind: models.ReleaseTheatrical},
		models.ReleaseEntry{Date: "2026-05-01", Kind: models.ReleaseDigital, Note: "4K"},
	)}
	for i := 0; i < 2; i++ {
		if err := db.Releases.PutReleases(603, sets); err != nil {
			t.Fatalf("PutReleases call %d failed: %v", i+1, err)
		}
	}

	got, err := db.Releases.GetReleases([]ReleasePair{{TMDBID: 603, Country: "US"}})
	if err != nil {
		t.Fatalf("GetReleases failed: %v", err)
	}
	set := got[ReleasePair{TMDBID: 603, Country: "US"}]
	if len(set.Theatrical) != 1 || len(set.Streaming) != 1 {
		t.Fatalf("expected delete-then-insert to prevent duplication, got %+v", set)
	}
	if set.Streaming[0].Note != "4K" {
		t.Errorf("expected note to survive, got %q", set.Streaming[0].Note)
	}
}

func TestGetReleases_FreshEmptySetIsConfirmedNoReleases(t *testing.T) {
	db := setupTestDB(t)

	// An empty set still writes a meta row: "checked, nothing there".
	if err := db.Releases.PutReleases(603, []models.CountryReleaseSet{{Country: "FR"}}); err != nil {
		t.Fatalf("PutReleases failed: %v", err)
	}

	got, err := db.Releases.GetReleases([]ReleasePair{
		{TMDBID: 603, Country: "FR"},
		{TMDBID: 603, Country: "DE"},
	})
	if err != nil {
		t.Fatalf("GetReleases failed: %v", err)
	}

	set, ok := got[ReleasePair{TMDBID: 603, Country: "FR"}]
	if !ok {
		t.Fatal("expected confirmed-empty FR entry to be present")
	}
	if !set.Empty() {
		t.Errorf("expected empty set, got %+v", set)
	}
	if _, ok := got[ReleasePair{TMDBID: 603, Country: "DE"}]; ok {
		t.Error("expected unchecked DE pair to be absent")
	}
}

func TestGetReleases_TTLExpiryExcludesPair(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Releases.PutReleases(603, []models.CountryReleaseSet{usSet(
		models.ReleaseEntry{Date: "2026-03-01", Kind: models.ReleaseTheatrical},
	)}); err != nil {
		t.Fatalf("PutReleases failed: %v", err)
	}

	pair := ReleasePair{TMDBID: 603, Country: "US"}

	got, err := db.Releases.GetReleases([]ReleasePair{pair})
	if err != nil {
		t.Fatalf("GetReleases failed: %v", err)
	}
	if _, ok := got[pair]; !ok {
		t.Fatal("expected pair to be fresh within TTL")
	}

	db.Releases.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	got, err = db.Releases.GetReleases([]ReleasePair{pair})
	if err != nil {
		t.Fatalf("GetReleases after expiry failed: %v", err)
	}
	if _, ok := got[pair]; ok {
		t.Fatal("expected expired pair to be excluded from bulk read")
	}
}

func TestPutReleases_ReplacesOldRows(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Releases.PutReleases(603, []models.CountryReleaseSet{usSet(
		models.ReleaseEntry{Date: "2026-03-01", Kind: models.ReleaseTheatrical},
		models.ReleaseEntry{Date: "2026-04-01", Kind: models.ReleaseTheatrical},
	)}); err != nil {
		t.Fatalf("first PutReleases failed: %v", err)
	}
	if err := db.Releases.PutReleases(603, []models.CountryReleaseSet{usSet(
		models.ReleaseEntry{Date: "2026-05-01", Kind: models.ReleaseTheatrical},
	)}); err != nil {
		t.Fatalf("second PutReleases failed: %v", err)
	}

	got, err := db.Releases.GetReleases([]ReleasePair{{TMDBID: 603, Country: "US"}})
	if err != nil {
		t.Fatalf("GetReleases failed: %v", err)
	}
	set := got[ReleasePair{TMDBID: 603, Country: "US"}]
	if len(set.Theatrical) != 1 || set.Theatrical[0].Date != "2026-05-01" {
		t.Fatalf("expected full replacement, got %+v", set.Theatrical)
	}
}

func TestGetReleases_MultipleCountriesOneFilm(t *testing.T) {
	db := setupTestDB(t)

	err := db.Releases.PutReleases(603, []models.CountryReleaseSet{
		usSet(models.ReleaseEntry{Date: "2026-03-01", Kind: models.ReleaseTheatrical}),
		{Country: "NZ"},
		{Country: "AU", Streaming: []models.ReleaseEntry{
			{Date: "2026-07-01", Kind: models.ReleaseDigital},
		}},
	})
	if err != nil {
		t.Fatalf("PutReleases failed: %v", err)
	}

	got, err := db.Releases.GetReleases([]ReleasePair{
		{TMDBID: 603, Country: "US"},
		{TMDBID: 603, Country: "NZ"},
		{TMDBID: 603, Country: "AU"},
	})
	if err != nil {
		t.Fatalf("GetReleases failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 fresh pairs, got %d", len(got))
	}
	au := got[ReleasePair{TMDBID: 603, Country: "AU"}]
	if len(au.Streaming) != 1 || au.Streaming[0].Date != "2026-07-01" {
		t.Errorf("unexpected AU set: %+v", au)
	}
}
