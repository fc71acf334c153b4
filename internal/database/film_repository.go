package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"timeboxd/models"
)

// FilmRepository is the identity freshness domain: Letterboxd slug to
// canonical TMDB identity, bounded by the film TTL.
type FilmRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewFilmRepository creates a film identity repository with the given TTL.
func NewFilmRepository(db *sql.DB, ttl time.Duration) *FilmRepository {
	return &FilmRepository{db: db, ttl: ttl, now: time.Now}
}

// GetIdentities returns the cached identities for the given slugs. Rows
// older than the TTL are treated as absent; a missing or stale slug is
// simply not in the result, never an error.
func (r *FilmRepository) GetIdentities(slugs []string) (map[string]models.FilmIdentity, error) {
	out := make(map[string]models.FilmIdentity, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(slugs)-1) + "?"
	args := make([]any, len(slugs))
	for i, slug := range slugs {
		args[i] = slug
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT letterboxd_slug, tmdb_id, title, year, poster_path, updated_at
		FROM film_cache
		WHERE letterboxd_slug IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query film cache: %w", err)
	}
	defer rows.Close()

	cutoff := r.now().Add(-r.ttl).Unix()
	for rows.Next() {
		var (
			identity   models.FilmIdentity
			tmdbID     sql.NullInt64
			year       sql.NullInt64
			posterPath sql.NullString
			updatedAt  int64
		)
		if err := rows.Scan(&identity.Slug, &tmdbID, &identity.Title, &year, &posterPath, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan film cache row: %w", err)
		}
		if updatedAt < cutoff {
			continue
		}
		identity.TMDBID = tmdbID.Int64
		identity.Year = int(year.Int64)
		identity.PosterPath = posterPath.String
		identity.UpdatedAt = time.Unix(updatedAt, 0)
		out[identity.Slug] = identity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate film cache rows: %w", err)
	}
	return out, nil
}

// PutIdentities upserts the given identities by slug inside one
// transaction. Empty input is a no-op.
func (r *FilmRepository) PutIdentities(records []models.FilmIdentity) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin film cache write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO film_cache (letterboxd_slug, tmdb_id, title, year, poster_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (letterboxd_slug) DO UPDATE SET
			tmdb_id = excluded.tmdb_id,
			title = excluded.title,
			year = excluded.year,
			poster_path = excluded.poster_path,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare film cache upsert: %w", err)
	}
	defer stmt.Close()

	now := r.now().Unix()
	for _, rec := range records {
		var tmdbID any
		if rec.TMDBID > 0 {
			tmdbID = rec.TMDBID
		}
		var year any
		if rec.Year != 0 {
			year = rec.Year
		}
		if _, err := stmt.Exec(rec.Slug, tmdbID, rec.Title, year, rec.PosterPath, now); err != nil {
			return fmt.Errorf("upsert film %q: %w", rec.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit film cache write: %w", err)
	}
	return nil
}
