package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"timeboxd/models"
)

// ReleasePair keys the release and provider freshness domains.
type ReleasePair struct {
	TMDBID  int64
	Country string
}

// ReleaseRepository is the release freshness domain: per (TMDB ID, country)
// release sets with a meta row as the sole freshness marker. A fresh meta
// row with no release rows means "confirmed no releases", which is distinct
// from "not yet checked".
type ReleaseRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewReleaseRepository creates a release repository with the given TTL.
func NewReleaseRepository(db *sql.DB, ttl time.Duration) *ReleaseRepository {
	return &ReleaseRepository{db: db, ttl: ttl, now: time.Now}
}

// GetReleases returns a release set for every requested pair whose meta row
// exists and is fresh. Stale or unchecked pairs are absent from the result.
func (r *ReleaseRepository) GetReleases(pairs []ReleasePair) (map[ReleasePair]models.CountryReleaseSet, error) {
	out := make(map[ReleasePair]models.CountryReleaseSet, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}

	where, args := pairFilter(pairs)
	cutoff := r.now().Add(-r.ttl).Unix()

	metaRows, err := r.db.Query(
		"SELECT tmdb_id, country, cached_at FROM release_cache_meta WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query release cache meta: %w", err)
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
			return nil, fmt.Errorf("scan release cache meta: %w", err)
		}
		if wanted[p] && cachedAt >= cutoff {
			fresh[p] = true
			out[p] = models.CountryReleaseSet{Country: p.Country}
		}
	}
	if err := metaRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate release cache meta: %w", err)
	}
	if len(fresh) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(
		"SELECT tmdb_id, country, release_date, release_type, note FROM release_cache WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query release cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        ReleasePair
			date     string
			typeCode int
			note     sql.NullString
		)
		if err := rows.Scan(&p.TMDBID, &p.Country, &date, &typeCode, &note); err != nil {
			return nil, fmt.Errorf("scan release cache row: %w", err)
		}
		if !fresh[p] {
			continue
		}
		kind, ok := models.ReleaseTypeFromCode(typeCode)
		if !ok {
			continue
		}
		set := out[p]
		entry := models.ReleaseEntry{Date: date, Kind: kind, Note: note.String}
		switch kind {
		case models.ReleaseTheatrical:
			set.Theatrical = append(set.Theatrical, entry)
		case models.ReleaseDigital:
			set.Streaming = append(set.Streaming, entry)
		}
		out[p] = set
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate release cache rows: %w", err)
	}

	for p, set := range out {
		set.Theatrical = models.NormalizeEntries(set.Theatrical)
		set.Streaming = models.NormalizeEntries(set.Streaming)
		out[p] = set
	}
	return out, nil
}

// PutReleases replaces the stored release sets for one TMDB ID. For each
// country in sets it deletes the existing rows, inserts the new ones and
// upserts the meta timestamp, all in one transaction, so a reader never
// observes a partially replaced set. Calling it twice with the same input
// leaves the stored data identical to a single call.
func (r *ReleaseRepository) PutReleases(tmdbID int64, sets []models.CountryReleaseSet) error {
	if len(sets) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin release cache write: %w", err)
	}
	defer tx.Rollback()

	now := r.now().Unix()
	for _, set := range sets {
		if _, err := tx.Exec(
			"DELETE FROM release_cache WHERE tmdb_id = ? AND country = ?",
			tmdbID, set.Country); err != nil {
			return fmt.Errorf("clear release cache for %d/%s: %w", tmdbID, set.Country, err)
		}

		for _, entry := range append(models.NormalizeEntries(set.Theatrical), models.NormalizeEntries(set.Streaming)...) {
			var note any
			if entry.Note != "" {
				note = entry.Note
			}
			if _, err := tx.Exec(`
				INSERT INTO release_cache (tmdb_id, country, release_date, release_type, note, cached_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				tmdbID, set.Country, entry.Date, int(entry.Kind), note, now); err != nil {
				return fmt.Errorf("insert release for %d/%s: %w", tmdbID, set.Country, err)
			}
		}

		if _, err := tx.Exec(`
			INSERT INTO release_cache_meta (tmdb_id, country, cached_at)
			VALUES (?, ?, ?)
			ON CONFLICT (tmdb_id, country) DO UPDATE SET cached_at = excluded.cached_at`,
			tmdbID, set.Country, now); err != nil {
			return fmt.Errorf("upsert release meta for %d/%s: %w", tmdbID, set.Country, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit release cache write: %w", err)
	}
	return nil
}

// pairFilter builds an OR-of-pairs WHERE clause for the given keys.
func pairFilter(pairs []ReleasePair) (string, []any) {
	clauses := make([]string, len(pairs))
	args := make([]any, 0, len(pairs)*2)
	for i, p := range pairs {
		clauses[i] = "(tmdb_id = ? AND country = ?)"
		args = append(args, p.TMDBID, p.Country)
	}
	return strings.Join(clauses, " OR "), args
}
