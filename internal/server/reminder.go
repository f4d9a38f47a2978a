package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/model"
	"github.com/rcliao/smartlife/internal/store"
)

// Reminder announces tasks as they become due. Tasks that are already
// overdue when it starts are not announced.
type Reminder struct {
	tasks    store.Tasks
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	tick     func(time.Duration) (<-chan time.Time, func())

	// OnDue is called once per task when its scheduled instant passes.
	OnDue func(model.Task)
}

func NewReminder(tasks store.Tasks, interval time.Duration, logger zerolog.Logger) *Reminder {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reminder{
		tasks:    tasks,
		interval: interval,
		logger:   logger.With().Str("component", "reminder").Logger(),
		now:      time.Now,
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run checks on every feed snapshot and every interval until ctx is done
// or the store closes.
func (r *Reminder) Run(ctx context.Context) error {
	feed, err := r.tasks.Watch(ctx)
	if err != nil {
		return err
	}
	latest, ok := <-feed
	if !ok {
		return nil
	}
	notified := make(map[int64]bool)
	now := r.now()
	for _, t := range latest {
		if t.Missed(now) {
			notified[t.ID] = true
		}
	}

	ticks, stop := r.tick(r.interval)
	defer stop()
	for {
		select {
		case tasks, ok := <-feed:
			if !ok {
				return nil
			}
			latest = tasks
		case <-ticks:
			select {
			case tasks, ok := <-feed:
				if !ok {
					return nil
				}
				latest = tasks
			default:
			}
		case <-ctx.Done():
			return nil
		}
		r.check(r.now(), latest, notified)
	}
}

func (r *Reminder) check(now time.Time, tasks []model.Task, notified map[int64]bool) {
	seen := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		if !t.Missed(now) {
			continue
		}
		seen[t.ID] = true
		if notified[t.ID] {
			continue
		}
		notified[t.ID] = true
		r.logger.Info().Int64("id", t.ID).Str("name", t.Name).Time("scheduled_at", t.ScheduledAt).Msg("task due")
		if r.OnDue != nil {
			r.OnDue(t)
		}
	}
	// Completed, rescheduled or deleted tasks may become due again.
	for id := range notified {
		if !seen[id] {
			delete(notified, id)
		}
	}
}
