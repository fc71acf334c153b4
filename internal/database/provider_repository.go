package database

import (
	"database/sql"
	"fmt"
	"time"

	"timeboxd/models"
)

// ProviderRepository is the watch-provider freshness domain, keyed by
// (TMDB ID, country) like releases but written one country at a time.
type ProviderRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewProviderRepository creates a provider repository with the given TTL.
func NewProviderRepository(db *sql.DB, ttl time.Duration) *ProviderRepository {
	return &ProviderRepository{db: db, ttl: ttl, now: time.Now}
}

// GetProviders returns the cached provider sets for every requested pair
// whose meta row is fresh. A fresh pair with no provider rows yields an
// entry with an empty list.
func (r *ProviderRepository) GetProviders(pairs []ReleasePair) (map[ReleasePair]models.ProviderResult, error) {
	out := make(map[ReleasePair]models.ProviderResult, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}

	where, args := pairFilter(pairs)
	cutoff := r.now().Add(-r.ttl).Unix()

	metaRows, err := r.db.Query(
		"SELECT tmdb_id, country, cached_at FROM provider_cache_meta WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query provider cache meta: %w", err)
	}
	defer metaRows.Close()

	wanted := make(map[ReleasePair]bool, len(pairs))
	for _, p := range pairs {
		wanted[p] = true
	}

	fresh := make(map[ReleasePair]bool)
	for metaRows.Next() {
		var p ReleasePair
		var cachedAt int64
		if err := metaRows.Scan(&p.TMDBID, &p.Country, &cachedAt); err != nil {
			return nil, fmt.Errorf("scan provider cache meta: %w", err)
		}
		if wanted[p] && cachedAt >= cutoff {
			fresh[p] = true
			out[p] = models.ProviderResult{}
		}
	}
	if err := metaRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider cache meta: %w", err)
	}
	if len(fresh) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(`
		SELECT tmdb_id, country, provider_id, provider_name, logo_path, link, provider_type
		FROM provider_cache WHERE `+where+`
		ORDER BY provider_type, provider_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query provider cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        ReleasePair
			provider models.WatchProvider
			link     sql.NullString
			ptype    string
		)
		if err := rows.Scan(&p.TMDBID, &p.Country, &provider.ProviderID, &provider.Name,
			&provider.LogoPath, &link, &ptype); err != nil {
			return nil, fmt.Errorf("scan provider cache row: %w", err)
		}
		if !fresh[p] {
			continue
		}
		provider.Type = models.ProviderType(ptype)
		provider.Link = link.String
		res := out[p]
		res.Providers = append(res.Providers, provider)
		if res.Link == "" && link.String != "" {
			res.Link = link.String
		}
		out[p] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider cache rows: %w", err)
	}
	return out, nil
}

// PutProviders replaces the stored providers for one (TMDB ID, country)
// pair and refreshes its meta timestamp in one transaction.
func (r *ProviderRepository) PutProviders(tmdbID int64, country string, res models.ProviderResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin provider cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM provider_cache WHERE tmdb_id = ? AND country = ?",
		tmdbID, country); err != nil {
		return fmt.Errorf("clear provider cache for %d/%s: %w", tmdbID, country, err)
	}

	now := r.now().Unix()
	for _, provider := range res.Providers {
		var link any
		if res.Link != "" {
			link = res.Link
		}
		if _, err := tx.Exec(`
			INSERT INTO provider_cache (tmdb_id, country, provider_id, provider_name, logo_path, link, provider_type, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tmdb_id, country, provider_id, provider_type) DO UPDATE SET
				provider_name = excluded.provider_name,
				logo_path = excluded.logo_path,
				link = excluded.link,
				cached_at = excluded.cached_at`,
			tmdbID, country, provider.ProviderID, provider.Name, provider.LogoPath,
			link, string(provider.Type), now); err != nil {
			return fmt.Errorf("upsert provider %d for %d/%s: %w", provider.ProviderID, tmdbID, country, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO provider_cache_meta (tmdb_id, country, cached_at)
		VALUES (?, ?, ?)
		ON CONFLICT (tmdb_id, country) DO UPDATE SET cached_at = excluded.cached_at`,
		tmdbID, country, now); err != nil {
		return fmt.Errorf("upsert provider meta for %d/%s: %w", tmdbID, country, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provider cache write: %w", err)
	}
	return nil
}
