package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/model"
)

func newTestStore(t *testing.T) *TaskStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenTaskStore(filepath.Join(dir, "tasks.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	task, err := s.Add(ctx, AddTaskParams{
		Name: "drink water", Description: strPtr("two glasses"), ScheduledAt: base,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if task.ID == 0 {
		t.Error("expected assigned id")
	}
	if task.Completed {
		t.Error("new task should not be completed")
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}
	got := list[0]
	if got.ID != task.ID || got.Name != "drink water" || got.DescriptionText() != "two glasses" {
		t.Errorf("unexpected task: %+v", got)
	}
	if !got.ScheduledAt.Equal(base) {
		t.Errorf("expected %v, got %v", base, got.ScheduledAt)
	}
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		task, err := s.Add(ctx, AddTaskParams{Name: "t", ScheduledAt: base})
		if err != nil {
			t.Fatal(err)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %d", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestAddRejectsBlankName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.Add(ctx, AddTaskParams{Name: name, ScheduledAt: base})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("name %q: expected validation error, got %v", name, err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "name" {
			t.Errorf("name %q: expected field name, got %v", name, err)
		}
	}

	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty store, got %d", len(list))
	}
}

func TestAddRejectsZeroInstant(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add(context.Background(), AddTaskParams{Name: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestListEmpty(t *testing.T) {
	s := newTestStore(t)
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestListOrderedBySchedule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	offsets := []int{5, -3, 0, 12, -7, 2}
	for _, h := range offsets {
		if _, err := s.Add(ctx, AddTaskParams{Name: "t", ScheduledAt: base.Add(time.Duration(h) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := s.List(ctx)
	if len(list) != len(offsets) {
		t.Fatalf("expected %d, got %d", len(offsets), len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].ScheduledAt.Before(list[i-1].ScheduledAt) {
			t.Errorf("list not sorted at %d: %v before %v", i, list[i].ScheduledAt, list[i-1].ScheduledAt)
		}
	}
}

func TestUpdateTogglesCompletion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	task, _ := s.Add(ctx, AddTaskParams{Name: "stretch", ScheduledAt: base})
	task.Completed = true
	if err := s.Update(ctx, *task); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Completed {
		t.Error("expected completed")
	}
	if !got.ScheduledAt.Equal(base) {
		t.Error("scheduled instant changed")
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Update(ctx, model.Task{ID: 42, Name: "ghost", ScheduledAt: base})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Error("update must not upsert")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.Add(ctx, AddTaskParams{Name: "a", ScheduledAt: base})
	b, _ := s.Add(ctx, AddTaskParams{Name: "b", ScheduledAt: base.Add(time.Hour)})

	if err := s.Delete(ctx, *a); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("expected only b, got %+v", list)
	}

	// Deleting again is a no-op.
	if err := s.Delete(ctx, *a); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if err := s.Delete(ctx, model.Task{ID: 999}); err != nil {
		t.Errorf("delete unknown: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListBetween(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	s.Add(ctx, AddTaskParams{Name: "yesterday", ScheduledAt: day.Add(-time.Hour)})
	s.Add(ctx, AddTaskParams{Name: "evening", ScheduledAt: day.Add(20 * time.Hour)})
	s.Add(ctx, AddTaskParams{Name: "morning", ScheduledAt: day.Add(8 * time.Hour)})
	s.Add(ctx, AddTaskParams{Name: "tomorrow", ScheduledAt: day.Add(24 * time.Hour)})

	list, err := s.ListBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
	if list[0].Name != "morning" || list[1].Name != "evening" {
		t.Errorf("unexpected order: %s, %s", list[0].Name, list[1].Name)
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenTaskStore(filepath.Join(dir, "tasks.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := s.Add(context.Background(), AddTaskParams{Name: "x", ScheduledAt: base}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestClosedStoreRejectsReads(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task, _ := s.Add(ctx, AddTaskParams{Name: "x", ScheduledAt: base})
	s.Close()

	if _, err := s.List(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("List: expected ErrClosed, got %v", err)
	}
	if _, err := s.ListBetween(ctx, base, base.Add(time.Hour)); !errors.Is(err, ErrClosed) {
		t.Errorf("ListBetween: expected ErrClosed, got %v", err)
	}
	if _, err := s.Get(ctx, task.ID); !errors.Is(err, ErrClosed) {
		t.Errorf("Get: expected ErrClosed, got %v", err)
	}
	if _, err := s.Modify(ctx, task.ID, func(*model.Task) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Modify: expected ErrClosed, got %v", err)
	}
	if _, err := s.Stats(ctx, base); !errors.Is(err, ErrClosed) {
		t.Errorf("Stats: expected ErrClosed, got %v", err)
	}
}

func TestModify(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task, _ := s.Add(ctx, AddTaskParams{Name: "read", Description: strPtr("ten pages"), ScheduledAt: base})

	got, err := s.Modify(ctx, task.ID, func(t *model.Task) {
		t.Completed = true
		t.Name = "  read more "
	})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if !got.Completed || got.Name != "read more" || got.DescriptionText() != "ten pages" {
		t.Errorf("unexpected result: %+v", got)
	}

	stored, _ := s.Get(ctx, task.ID)
	if !stored.Completed || stored.Name != "read more" {
		t.Errorf("change not stored: %+v", stored)
	}

	if _, err := s.Modify(ctx, 999, func(*model.Task) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	var verr *ValidationError
	if _, err := s.Modify(ctx, task.ID, func(t *model.Task) { t.Name = " " }); !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestModifyConcurrentFieldsBothLand(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task, _ := s.Add(ctx, AddTaskParams{Name: "swim", ScheduledAt: base})

	later := base.Add(2 * time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Modify(ctx, task.ID, func(t *model.Task) { t.Completed = true })
		}()
		go func() {
			defer wg.Done()
			s.Modify(ctx, task.ID, func(t *model.Task) { t.ScheduledAt = later })
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, task.ID)
	if !got.Completed || !got.ScheduledAt.Equal(later) {
		t.Errorf("lost update: %+v", got)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := base
	s.Add(ctx, AddTaskParams{Name: "future", ScheduledAt: now.Add(time.Hour)})
	s.Add(ctx, AddTaskParams{Name: "missed", ScheduledAt: now.Add(-time.Hour)})
	done, _ := s.Add(ctx, AddTaskParams{Name: "done", ScheduledAt: now.Add(-2 * time.Hour)})
	done.Completed = true
	s.Update(ctx, *done)

	st, err := s.Stats(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.Pending != 1 || st.Missed != 1 || st.Done != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}
