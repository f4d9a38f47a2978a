package store

import (
	"context"
	"time"

	"github.com/rcliao/smartlife/internal/model"
)

// TaskStats holds task counts by derived status.
type TaskStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Missed  int `json:"missed"`
	Done    int `json:"done"`
}

// Stats counts tasks by their status at now.
func (s *TaskStore) Stats(ctx context.Context, now time.Time) (*TaskStats, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	st := &TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		switch model.Status(now, t) {
		case model.StatusDone:
			st.Done++
		case model.StatusMissed:
			st.Missed++
		default:
			st.Pending++
		}
	}
	return st, nil
}
