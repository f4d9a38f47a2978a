package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/model"
)

// WeightEntry is one logged body weight.
type WeightEntry struct {
	ID       int64     `json:"id"`
	WeightKg int       `json:"weight_kg"`
	LoggedAt time.Time `json:"logged_at"`
}

// WeightLog keeps a rolling log of body weights on SQLite.
type WeightLog struct {
	db     *sql.DB
	logger zerolog.Logger
	keep   int

	writeMu sync.Mutex
}

// OpenWeightLog opens the health database at dbPath. Only the most recent
// keep entries are retained.
func OpenWeightLog(dbPath string, keep int, logger zerolog.Logger) (*WeightLog, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	l := &WeightLog{
		db:     db,
		logger: logger.With().Str("component", "weight_log").Logger(),
		keep:   keep,
	}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *WeightLog) migrate() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS weights (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		weight    INTEGER NOT NULL,
		loggedAt  INTEGER NOT NULL
	);
	`)
	return err
}

// Add logs a weight at the given instant and drops entries beyond the
// retention limit.
func (l *WeightLog) Add(ctx context.Context, kg int, at time.Time) (*WeightEntry, error) {
	if kg <= 0 {
		return nil, &ValidationError{Field: "weight", Reason: "must be positive"}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO weights (weight, loggedAt) VALUES (?, ?)`, kg, model.EpochMillis(at))
	if err != nil {
		return nil, fmt.Errorf("insert weight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("weight id: %w", err)
	}
	if l.keep > 0 {
		if _, err := l.db.ExecContext(ctx,
			`DELETE FROM weights WHERE id NOT IN (SELECT id FROM weights ORDER BY id DESC LIMIT ?)`, l.keep); err != nil {
			return nil, fmt.Errorf("trim weights: %w", err)
		}
	}

	l.logger.Debug().Int64("id", id).Int("kg", kg).Msg("weight logged")
	return &WeightEntry{ID: id, WeightKg: kg, LoggedAt: model.FromEpochMillis(model.EpochMillis(at))}, nil
}

// Entries returns the retained entries, oldest first.
func (l *WeightLog) Entries(ctx context.Context) ([]WeightEntry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, weight, loggedAt FROM weights ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []WeightEntry{}
	for rows.Next() {
		var e WeightEntry
		var at int64
		if err := rows.Scan(&e.ID, &e.WeightKg, &at); err != nil {
			return nil, err
		}
		e.LoggedAt = model.FromEpochMillis(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *WeightLog) Close() error {
	return l.db.Close()
}
