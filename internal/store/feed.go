package store

import (
	"sync"

	"github.com/rcliao/smartlife/internal/model"
)

// feed fans task snapshots out to watchers. Each watcher holds at most one
// pending snapshot; a newer one replaces it so writers never block.
type feed struct {
	mu     sync.Mutex
	subs   map[*watcher]struct{}
	closed bool
}

type watcher struct {
	ch   chan []model.Task
	done chan struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[*watcher]struct{})}
}

func (f *feed) subscribe() *watcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	w := &watcher{
		ch:   make(chan []model.Task, 1),
		done: make(chan struct{}),
	}
	f.subs[w] = struct{}{}
	return w
}

func (f *feed) unsubscribe(w *watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[w]; !ok {
		return
	}
	delete(f.subs, w)
	close(w.done)
	close(w.ch)
}

func (f *feed) publish(tasks []model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for w := range f.subs {
		offer(w.ch, cloneTasks(tasks))
	}
}

// send delivers a snapshot to a single watcher, used for the initial list.
func (f *feed) send(w *watcher, tasks []model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[w]; ok {
		offer(w.ch, cloneTasks(tasks))
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for w := range f.subs {
		delete(f.subs, w)
		close(w.done)
		close(w.ch)
	}
}

func offer(ch chan []model.Task, tasks []model.Task) {
	select {
	case ch <- tasks:
		return
	default:
	}
	// Drop the stale snapshot, then retry once.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- tasks:
	default:
	}
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		if t.Description != nil {
			d := *t.Description
			t.Description = &d
		}
		out[i] = t
	}
	return out
}
