package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/model"
)

// TaskStore implements Tasks on SQLite. Mutations are serialized per
// instance; reads run concurrently with the live feed.
type TaskStore struct {
	db     *sql.DB
	logger zerolog.Logger
	feed   *feed

	writeMu sync.Mutex
	closed  atomic.Bool
}

// OpenTaskStore opens the tasks database at dbPath and migrates it.
func OpenTaskStore(dbPath string, logger zerolog.Logger) (*TaskStore, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewTaskStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewTaskStore wraps an open handle. The store owns db from here on.
func NewTaskStore(db *sql.DB, logger zerolog.Logger) (*TaskStore, error) {
	s := &TaskStore{
		db:     db,
		logger: logger.With().Str("component", "task_store").Logger(),
		feed:   newFeed(),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *TaskStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT,
		dateTime    INTEGER NOT NULL,
		isCompleted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_datetime ON tasks(dateTime);
	`
	_, err := s.db.Exec(schema)
	return err
}

const taskColumns = `id, name, description, dateTime, isCompleted`

func (s *TaskStore) List(ctx context.Context) ([]model.Task, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY dateTime ASC, id ASC`)
	if err != nil {
		return nil, s.readErr(err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *TaskStore) ListBetween(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE dateTime >= ? AND dateTime < ?
		 ORDER BY dateTime ASC, id ASC`,
		model.EpochMillis(from), model.EpochMillis(to))
	if err != nil {
		return nil, s.readErr(err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *TaskStore) Get(ctx context.Context, id int64) (*model.Task, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, s.readErr(err)
	}
	return &t, nil
}

// readErr reports a read that lost a race with Close as ErrClosed.
func (s *TaskStore) readErr(err error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return err
}

func (s *TaskStore) Add(ctx context.Context, p AddTaskParams) (*model.Task, error) {
	name := strings.TrimSpace(p.Name)
	if err := validateTask(name, p.ScheduledAt); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return nil, ErrClosed
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (name, description, dateTime, isCompleted) VALUES (?, ?, ?, 0)`,
		name, p.Description, model.EpochMillis(p.ScheduledAt))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}

	t := &model.Task{
		ID:          id,
		Name:        name,
		Description: p.Description,
		ScheduledAt: model.FromEpochMillis(model.EpochMillis(p.ScheduledAt)),
	}
	s.logger.Debug().Int64("id", id).Str("name", name).Msg("task added")
	s.publishLocked(ctx)
	return t, nil
}

func (s *TaskStore) Update(ctx context.Context, t model.Task) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.updateLocked(ctx, t); err != nil {
		return err
	}
	s.publishLocked(ctx)
	return nil
}

// Modify applies fn to the stored task with the given id and saves the
// result. The read and the write happen under one lock, so concurrent
// partial updates do not overwrite each other.
func (s *TaskStore) Modify(ctx context.Context, id int64, fn func(*model.Task)) (*model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return nil, ErrClosed
	}

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(t)
	t.ID = id
	t.Name = strings.TrimSpace(t.Name)
	t.ScheduledAt = model.FromEpochMillis(model.EpochMillis(t.ScheduledAt))
	if err := s.updateLocked(ctx, *t); err != nil {
		return nil, err
	}
	s.publishLocked(ctx)
	return t, nil
}

// updateLocked writes t over the stored row. Caller holds writeMu.
func (s *TaskStore) updateLocked(ctx context.Context, t model.Task) error {
	name := strings.TrimSpace(t.Name)
	if err := validateTask(name, t.ScheduledAt); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, description = ?, dateTime = ?, isCompleted = ? WHERE id = ?`,
		name, t.Description, model.EpochMillis(t.ScheduledAt), boolToInt(t.Completed), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", t.ID, ErrNotFound)
	}

	s.logger.Debug().Int64("id", t.ID).Bool("completed", t.Completed).Msg("task updated")
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, t model.Task) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, t.ID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	s.logger.Debug().Int64("id", t.ID).Msg("task deleted")
	s.publishLocked(ctx)
	return nil
}

// Watch returns a channel that receives the current ordered list and then
// a new list after every mutation. The channel closes when ctx is done or
// the store is closed.
func (s *TaskStore) Watch(ctx context.Context) (<-chan []model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return nil, ErrClosed
	}

	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	w := s.feed.subscribe()
	if w == nil {
		return nil, ErrClosed
	}
	s.feed.send(w, tasks)

	go func() {
		select {
		case <-ctx.Done():
			s.feed.unsubscribe(w)
		case <-w.done:
		}
	}()
	return w.ch, nil
}

// publishLocked re-reads the list and fans it out. Caller holds writeMu.
func (s *TaskStore) publishLocked(ctx context.Context) {
	tasks, err := s.List(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Warn().Err(err).Msg("refresh task feed")
		return
	}
	s.feed.publish(tasks)
}

func (s *TaskStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	s.feed.close()
	return s.db.Close()
}

func validateTask(name string, at time.Time) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if at.IsZero() {
		return &ValidationError{Field: "scheduled_at", Reason: "must be set"}
	}
	return nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row scanner) (model.Task, error) {
	var t model.Task
	var desc sql.NullString
	var at int64
	var completed int

	if err := row.Scan(&t.ID, &t.Name, &desc, &at, &completed); err != nil {
		return t, err
	}
	if desc.Valid {
		d := desc.String
		t.Description = &d
	}
	t.ScheduledAt = model.FromEpochMillis(at)
	t.Completed = completed != 0
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
