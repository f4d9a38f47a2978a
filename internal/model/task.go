// Package model defines the core task and mood catalog data types.
package model

import (
	"encoding/json"
	"time"
)

// Task represents a user-scheduled reminder.
type Task struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Completed   bool      `json:"completed"`
}

// TaskStatus is derived from a task and the current time. It is never stored.
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusMissed  TaskStatus = "missed"
	StatusDone    TaskStatus = "done"
)

// Status classifies t at the instant now.
func Status(now time.Time, t Task) TaskStatus {
	switch {
	case t.Completed:
		return StatusDone
	case now.After(t.ScheduledAt):
		return StatusMissed
	default:
		return StatusPending
	}
}

// Missed reports whether t is incomplete and its scheduled instant has passed.
func (t Task) Missed(now time.Time) bool {
	return Status(now, t) == StatusMissed
}

// DescriptionText returns the description or "" when unset.
func (t Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// TaskView is a task annotated with its status at render time.
type TaskView struct {
	Task
	Status TaskStatus `json:"status"`
}

// Views annotates tasks with their status at now.
func Views(now time.Time, tasks []Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskView{Task: t, Status: Status(now, t)})
	}
	return out
}

// MarshalJSON keeps the embedded task fields flat next to the status.
func (v TaskView) MarshalJSON() ([]byte, error) {
	type flat struct {
		ID          int64      `json:"id"`
		Name        string     `json:"name"`
		Description *string    `json:"description,omitempty"`
		ScheduledAt time.Time  `json:"scheduled_at"`
		Completed   bool       `json:"completed"`
		Status      TaskStatus `json:"status"`
	}
	return json.Marshal(flat{
		ID:          v.ID,
		Name:        v.Name,
		Description: v.Description,
		ScheduledAt: v.ScheduledAt,
		Completed:   v.Completed,
		Status:      v.Status,
	})
}

// EpochMillis converts t to the persisted dateTime representation.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts a persisted dateTime back to a time in UTC.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
