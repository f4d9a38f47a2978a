package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/smartlife/internal/model"
)

func recv(t *testing.T, ch <-chan []model.Task) []model.Task {
	t.Helper()
	select {
	case tasks, ok := <-ch:
		if !ok {
			t.Fatal("feed closed")
		}
		return tasks
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestWatchEmitsInitialSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	ch, err := s.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got := recv(t, ch); len(got) != 0 {
		t.Errorf("expected empty initial snapshot, got %d", len(got))
	}
}

func TestWatchReflectsMutations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	ch, _ := s.Watch(ctx)
	recv(t, ch)

	task, _ := s.Add(ctx, AddTaskParams{Name: "walk", ScheduledAt: base})
	got := recv(t, ch)
	if len(got) != 1 || got[0].ID != task.ID {
		t.Fatalf("expected new task in snapshot, got %+v", got)
	}

	task.Completed = true
	s.Update(ctx, *task)
	got = recv(t, ch)
	if !got[0].Completed {
		t.Error("expected completed in snapshot")
	}

	s.Delete(ctx, *task)
	got = recv(t, ch)
	if len(got) != 0 {
		t.Errorf("expected empty after delete, got %d", len(got))
	}
}

func TestWatchSlowConsumerSeesLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	ch, _ := s.Watch(ctx)
	for i := 0; i < 5; i++ {
		s.Add(ctx, AddTaskParams{Name: "t", ScheduledAt: base.Add(time.Duration(i) * time.Minute)})
	}

	got := recv(t, ch)
	if len(got) != 5 {
		t.Errorf("expected latest snapshot with 5 tasks, got %d", len(got))
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestStore(t)

	ch, _ := s.Watch(ctx)
	recv(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A snapshot may race with cancellation; the next read must close.
			if _, ok := <-ch; ok {
				t.Error("expected channel to close")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestWatchClosesOnStoreClose(t *testing.T) {
	s := newTestStore(t)
	ch, _ := s.Watch(context.Background())
	recv(t, ch)
	s.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after store close")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	a, _ := s.Watch(ctx)
	b, _ := s.Watch(ctx)
	recv(t, a)
	recv(t, b)

	s.Add(ctx, AddTaskParams{Name: "shared", Description: strPtr("x"), ScheduledAt: base})
	ga := recv(t, a)
	gb := recv(t, b)
	*ga[0].Description = "mutated"
	ga[0].Name = "mutated"
	if gb[0].Name != "shared" || *gb[0].Description != "x" {
		t.Error("watchers share snapshot memory")
	}
}
