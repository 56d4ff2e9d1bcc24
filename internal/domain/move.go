package domain

import (
	"fmt"
	"time"
)

// ApplyMove computes the states after moving a task from one board column
// to another. Moving into Completed marks the whole target produced; a task
// whose produced count rounds to 100% cannot leave Completed, since its
// progress would still read 100.
func ApplyMove(task Task, piece *Piece, from, to TaskStatus, now time.Time) (Production, error) {
	if !from.Valid() {
		return Production{}, &ValidationError{Field: "from", Reason: fmt.Sprintf("unknown status %q", from)}
	}
	if !to.Valid() {
		return Production{}, &ValidationError{Field: "to", Reason: fmt.Sprintf("unknown status %q", to)}
	}
	if from == to {
		return Production{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("task is already %s", to)}
	}
	if task.Status != from {
		return Production{}, &ValidationError{Field: "from", Reason: fmt.Sprintf("task %s is %s, not %s", task.ID, task.Status, from)}
	}

	target := ProductionTarget(task, piece)
	next := task.Clone()

	switch {
	case to == StatusCompleted:
		next.Progress = 100
		if target > 0 {
			next.Produced = target
		}
	case from == StatusCompleted:
		if target > 0 && ComputeProgress(task.Produced, target) >= 100 {
			return Production{}, &ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("task %s has produced %d of %d; lower the produced quantity first", task.ID, task.Produced, target),
			}
		}
		next.Progress = ComputeProgress(next.Produced, target)
	}
	next.SetStatus(to, now)

	out := Production{Task: next}
	if piece != nil && next.Progress != task.Progress {
		p := piece.Clone()
		p.Progress = next.Progress
		p.Status = DeriveStatus(piece.Status, next.Progress)
		p.UpdatedAt = now
		out.Piece = &p
	}
	return out, nil
}
