package database

import (
	"testing"
	"time"

	"timeboxd/models"
)

func TestPutProviders_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	res := models.ProviderResult{
		Link: "https://www.themoviedb.org/movie/603/watch?locale=US",
		Providers: []models.WatchProvider{
			{ProviderID: 8, Name: "Netflix", LogoPath: "/netflix.jpg", Type: models.ProviderStream},
			{ProviderID: 10, Name: "Amazon Video", LogoPath: "/amazon.jpg", Type: models.ProviderRent},
		},
	}
	if err := db.Providers.PutProviders(603, "US", res); err != nil {
		t.Fatalf("PutProviders failed: %v", err)
	}

	pair := ReleasePair{TMDBID: 603, Country: "US"}
	got, err := db.Providers.GetProviders([]ReleasePair{pair})
	if err != nil {
		t.Fatalf("GetProviders failed: %v", err)
	}
	cached, ok := got[pair]
	if !ok {
		t.Fatal("expected fresh provider entry")
	}
	if len(cached.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cached.Providers))
	}
	if cached.Link == "" {
		t.Error("expected deep link to persist")
	}
}

func TestPutProviders_EmptyResultStillFresh(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Providers.PutProviders(603, "NZ", models.ProviderResult{}); err != nil {
		t.Fatalf("PutProviders failed: %v", err)
	}

	pair := ReleasePair{TMDBID: 603, Country: "NZ"}
	got, err := db.Providers.GetProviders([]ReleasePair{pair})
	if err != nil {
		t.Fatalf("GetProviders failed: %v", err)
	}
	cached, ok := got[pair]
	if !ok {
		t.Fatal("expected confirmed-empty provider entry to be present")
	}
	if len(cached.Providers) != 0 {
		t.Fatalf("expected no providers, got %+v", cached.Providers)
	}
}

func TestPutProviders_ReplacesAndExpires(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Providers.PutProviders(603, "US", models.ProviderResult{
		Providers: []models.WatchProvider{
			{ProviderID: 8, Name: "Netflix", Type: models.ProviderStream},
		},
	}); err != nil {
		t.Fatalf("first PutProviders failed: %v", err)
	}
	if err := db.Providers.PutProviders(603, "US", models.ProviderResult{
		Providers: []models.WatchProvider{
			{ProviderID: 337, Name: "Disney Plus", Type: models.ProviderStream},
		},
	}); err != nil {
		t.Fatalf("second PutProviders failed: %v", err)
	}

	pair := ReleasePair{TMDBID: 603, Country: "US"}
	got, err := db.Providers.GetProviders([]ReleasePair{pair})
	if err != nil {
		t.Fatalf("GetProviders failed: %v", err)
	}
	cached := got[pair]
	if len(cached.Providers) != 1 || cached.Providers[0].Name != "Disney Plus" {
		t.Fatalf("expected replacement, got %+v", cached.Providers)
	}

	db.Providers.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	got, err = db.Providers.GetProviders([]ReleasePair{pair})
	if err != nil {
		t.Fatalf("GetProviders after expiry failed: %v", err)
	}
	if _, ok := got[pair]; ok {
		t.Fatal("expected expired pair to be excluded")
	}
}
