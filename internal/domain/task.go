package domain

import (
	"math"
	"slices"
	"time"
)

// SecondInHours is the spent-time quantum added by one timer tick.
const SecondInHours = 1.0 / 3600.0

type Task struct {
	ID          string
	Name        string
	Description string

	EstimatedTime float64 // hours
	SpentTime     float64 // hours

	Quantity int
	Produced int
	Progress int
	Status   TaskStatus

	ResourceIDs []string
	CommentIDs  []string
	PieceID     string

	DueDate          time.Time
	ActualFinishDate *time.Time

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so snapshots never alias the live record.
func (t Task) Clone() Task {
	c := t
	c.ResourceIDs = slices.Clone(t.ResourceIDs)
	c.CommentIDs = slices.Clone(t.CommentIDs)
	if t.ActualFinishDate != nil {
		d := *t.ActualFinishDate
		c.ActualFinishDate = &d
	}
	return c
}

// HasResource reports whether resourceID is assigned to the task.
func (t *Task) HasResource(resourceID string) bool {
	return slices.Contains(t.ResourceIDs, resourceID)
}

// ProducedFromProgress recovers a produced-unit count from a stored progress
// percentage when the remote store does not carry the counter.
func ProducedFromProgress(progress, target int) int {
	if target <= 0 || progress <= 0 {
		return 0
	}
	return int(math.Floor(float64(progress) / 100 * float64(target)))
}

// SetStatus moves the task to next, stamping or clearing ActualFinishDate
// on transitions into and out of Completed.
func (t *Task) SetStatus(next TaskStatus, now time.Time) {
	if next == t.Status {
		return
	}
	if next == StatusCompleted {
		finished := now
		t.ActualFinishDate = &finished
	} else if t.Status == StatusCompleted {
		t.ActualFinishDate = nil
	}
	t.Status = next
	t.UpdatedAt = now
}

// AddSpentTime accumulates elapsed hours. Negative values are ignored so
// SpentTime never decreases.
func (t *Task) AddSpentTime(hours float64) {
	if hours <= 0 {
		return
	}
	t.SpentTime += hours
}

// TimeProgress returns spent time as a percentage of the estimate.
func (t *Task) TimeProgress() int {
	if t.EstimatedTime <= 0 {
		return 0
	}
	return int(math.Round(t.SpentTime / t.EstimatedTime * 100))
}

// IsOverdue reports whether the task is unfinished past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != StatusCompleted && !t.DueDate.IsZero() && t.DueDate.Before(now)
}
