// Package store provides the SQLite-backed task store and mood catalog store.
package store

import (
	"context"
	"time"

	"github.com/rcliao/smartlife/internal/model"
)

// AddTaskParams holds parameters for creating a task.
type AddTaskParams struct {
	Name        string
	Description *string
	ScheduledAt time.Time
}

// Tasks defines the task storage interface.
type Tasks interface {
	// List returns all tasks ordered ascending by scheduled instant.
	List(ctx context.Context) ([]model.Task, error)

	// ListBetween returns tasks scheduled in [from, to), ascending.
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Task, error)

	// Get returns a single task by id.
	Get(ctx context.Context, id int64) (*model.Task, error)

	// Add persists a new incomplete task and returns it with its assigned id.
	Add(ctx context.Context, p AddTaskParams) (*model.Task, error)

	// Update replaces the stored record with the same id.
	Update(ctx context.Context, t model.Task) error

	// Modify applies fn to the stored record with id and saves it atomically.
	Modify(ctx context.Context, id int64, fn func(*model.Task)) (*model.Task, error)

	// Delete removes the record with the same id. Missing records are not an error.
	Delete(ctx context.Context, t model.Task) error

	// Watch streams the ordered task list, starting with the current snapshot.
	Watch(ctx context.Context) (<-chan []model.Task, error)

	// Close closes the store.
	Close() error
}

// Catalogs defines the mood catalog interface.
type Catalogs interface {
	// EnsureSeeded inserts the catalog once, skipping rows that already exist.
	EnsureSeeded(ctx context.Context) (SeedResult, error)

	// SongsForMood returns songs whose mood label equals mood exactly.
	SongsForMood(ctx context.Context, mood string) ([]model.Song, error)

	// ActivitiesForMood returns activities whose mood label equals mood exactly.
	ActivitiesForMood(ctx context.Context, mood string) ([]model.Activity, error)

	// Close closes the store.
	Close() error
}
