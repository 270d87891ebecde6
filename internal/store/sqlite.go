// Package store gives read access to the local SQLite database of saved
// trips and restaurants. The reservation UI owns the writes; this side only
// reads phone numbers and known scores to strengthen identity resolution.
package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tablescout/tablescout/internal/model"
)

// SavedScore is a previously saved platform score for a restaurant.
type SavedScore struct {
	Name  string
	URL   string
	Score float64
}

// SQLiteStore implements read access using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS trips (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	city       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS trip_restaurants (
	id              TEXT PRIMARY KEY,
	trip_id         TEXT REFERENCES trips(id),
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	url             TEXT,
	phone           TEXT,
	score           REAL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_trip_restaurants_normalized_name
	ON trip_restaurants(normalized_name);
CREATE INDEX IF NOT EXISTS idx_trip_restaurants_trip_id
	ON trip_restaurants(trip_id);
`

// Migrate creates the tables if absent, so the engine works standalone
// against a fresh data directory.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PhoneByName returns the saved phone number for a restaurant, matched on
// normalized name. Empty string when nothing is saved.
func (s *SQLiteStore) PhoneByName(ctx context.Context, name string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phone FROM trip_restaurants
		 WHERE normalized_name = ? AND phone IS NOT NULL AND phone != ''
		 ORDER BY created_at DESC LIMIT 1`,
		model.NormalizeName(name),
	)
	var phone string
	if err := row.Scan(&phone); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", eris.Wrapf(err, "sqlite: phone for %s", name)
	}
	return phone, nil
}

// SavedScores returns every saved (name, url, score) triple, used to enrich
// results for restaurants the user has already researched.
func (s *SQLiteStore) SavedScores(ctx context.Context) ([]SavedScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, COALESCE(url, ''), score FROM trip_restaurants
		 WHERE score IS NOT NULL`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query saved scores")
	}
	defer rows.Close()

	var out []SavedScore
	for rows.Next() {
		var s SavedScore
		if err := rows.Scan(&s.Name, &s.URL, &s.Score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saved score")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate saved scores")
}
