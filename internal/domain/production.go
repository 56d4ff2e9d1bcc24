package domain

import (
	"fmt"
	"time"
)

// Production is the paired outcome of a task change. Task and Piece are
// always computed and applied together. A nil Piece means the piece is
// unaffected.
type Production struct {
	Task  Task
	Piece *Piece
}

// ProductionTarget returns the denominator used for progress: the owning
// piece's quantity when present, otherwise the task's own quantity.
func ProductionTarget(task Task, piece *Piece) int {
	if piece != nil {
		return piece.Quantity
	}
	return task.Quantity
}

// ApplyProduction computes the new task and piece states for a produced
// count. Inputs are taken by value and never modified.
func ApplyProduction(task Task, piece *Piece, produced int, now time.Time) (Production, error) {
	target := ProductionTarget(task, piece)
	if target <= 0 {
		return Production{}, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("task %s has no target quantity", task.ID)}
	}
	if produced < 0 || produced > target {
		return Production{}, &ValidationError{
			Field:  "produced",
			Reason: fmt.Sprintf("%d is outside [0, %d]", produced, target),
		}
	}

	progress := ComputeProgress(produced, target)

	next := task.Clone()
	next.Produced = produced
	next.Progress = progress
	next.SetStatus(DeriveStatus(task.Status, progress), now)
	next.UpdatedAt = now

	out := Production{Task: next}
	if piece != nil {
		p := piece.Clone()
		p.Progress = progress
		p.Status = DeriveStatus(piece.Status, progress)
		p.UpdatedAt = now
		out.Piece = &p
	}
	return out, nil
}
