package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/model"
)

// SeedResult reports how many rows a seeding pass inserted.
type SeedResult struct {
	Songs      int64 `json:"songs"`
	Activities int64 `json:"activities"`
}

// MoodCounts holds row counts for the catalog tables.
type MoodCounts struct {
	Songs      int `json:"songs"`
	Activities int `json:"activities"`
}

// MoodStore implements Catalogs on SQLite.
type MoodStore struct {
	db      *sql.DB
	logger  zerolog.Logger
	catalog Catalog

	seedMu sync.Mutex
	seeded bool
}

// OpenMoodStore opens the catalog database at dbPath and migrates it.
func OpenMoodStore(dbPath string, catalog Catalog, logger zerolog.Logger) (*MoodStore, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewMoodStore(db, catalog, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewMoodStore wraps an open handle. The store owns db from here on.
func NewMoodStore(db *sql.DB, catalog Catalog, logger zerolog.Logger) (*MoodStore, error) {
	s := &MoodStore{
		db:      db,
		logger:  logger.With().Str("component", "mood_store").Logger(),
		catalog: catalog,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *MoodStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS songs (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		link TEXT,
		mood TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_songs_mood ON songs(mood);
	CREATE INDEX IF NOT EXISTS idx_songs_name_link ON songs(name, link);

	CREATE TABLE IF NOT EXISTS activities (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		mood     TEXT,
		activity TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_activities_mood ON activities(mood, activity);
	`
	_, err := s.db.Exec(schema)
	return err
}

const (
	insertSongSQL = `INSERT INTO songs (name, link, mood)
		SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM songs WHERE name = ? AND link = ?)`
	insertActivitySQL = `INSERT INTO activities (mood, activity)
		SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM activities WHERE mood = ? AND activity = ?)`
)

// EnsureSeeded inserts the catalog in a single transaction. Rows already
// present are skipped, so a pass after a partial failure completes the
// catalog without duplicates. After one successful pass it is a no-op.
func (s *MoodStore) EnsureSeeded(ctx context.Context) (SeedResult, error) {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	var result SeedResult
	if s.seeded {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	for _, song := range s.catalog.Songs {
		res, err := tx.ExecContext(ctx, insertSongSQL,
			song.Name, song.Link, string(song.Mood), song.Name, song.Link)
		if err != nil {
			return SeedResult{}, fmt.Errorf("insert song %q: %w", song.Name, err)
		}
		n, _ := res.RowsAffected()
		result.Songs += n
	}

	for _, a := range s.catalog.Activities {
		res, err := tx.ExecContext(ctx, insertActivitySQL,
			string(a.Mood), a.Activity, string(a.Mood), a.Activity)
		if err != nil {
			return SeedResult{}, fmt.Errorf("insert activity %q: %w", a.Activity, err)
		}
		n, _ := res.RowsAffected()
		result.Activities += n
	}

	if err := tx.Commit(); err != nil {
		return SeedResult{}, err
	}
	s.seeded = true

	s.logger.Info().
		Int64("songs", result.Songs).
		Int64("activities", result.Activities).
		Msg("mood catalog seeded")
	return result, nil
}

func (s *MoodStore) SongsForMood(ctx context.Context, mood string) ([]model.Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, link, mood FROM songs WHERE mood = ? ORDER BY id`, mood)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []model.Song{}
	for rows.Next() {
		var song model.Song
		var name, link, m sql.NullString
		if err := rows.Scan(&song.ID, &name, &link, &m); err != nil {
			return nil, err
		}
		song.Name, song.Link, song.Mood = name.String, link.String, model.Mood(m.String)
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

func (s *MoodStore) ActivitiesForMood(ctx context.Context, mood string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mood, activity FROM activities WHERE mood = ? ORDER BY id`, mood)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		var m, text sql.NullString
		if err := rows.Scan(&a.ID, &m, &text); err != nil {
			return nil, err
		}
		a.Mood, a.Text = model.Mood(m.String), text.String
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// Counts returns the number of catalog rows.
func (s *MoodStore) Counts(ctx context.Context) (MoodCounts, error) {
	var c MoodCounts
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&c.Songs); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&c.Activities); err != nil {
		return c, err
	}
	return c, nil
}

func (s *MoodStore) Close() error {
	return s.db.Close()
}
