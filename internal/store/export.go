package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/smartlife/internal/model"
)

// ExportAll returns every task in scheduled order.
func (s *TaskStore) ExportAll(ctx context.Context) ([]model.Task, error) {
	return s.List(ctx)
}

// Import stores tasks from an export in one transaction. Each task gets a
// fresh id and keeps its completion flag. Nothing is stored when any task
// is invalid, and watchers see a single new snapshot.
func (s *TaskStore) Import(ctx context.Context, tasks []model.Task) (int, error) {
	for i, t := range tasks {
		if err := validateTask(strings.TrimSpace(t.Name), t.ScheduledAt); err != nil {
			return 0, fmt.Errorf("task %d: %w", i+1, err)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (name, description, dateTime, isCompleted) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, t := range tasks {
		if _, err := stmt.ExecContext(ctx,
			strings.TrimSpace(t.Name), t.Description, model.EpochMillis(t.ScheduledAt), boolToInt(t.Completed)); err != nil {
			return 0, fmt.Errorf("import task %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	s.logger.Info().Int("count", len(tasks)).Msg("tasks imported")
	if len(tasks) > 0 {
		s.publishLocked(ctx)
	}
	return len(tasks), nil
}
