package domain

import "math"

// ComputeProgress maps a produced count against a target to a percentage in
// [0,100]. A non-positive target yields 0 and overproduction clamps to 100.
func ComputeProgress(produced, target int) int {
	if target <= 0 || produced <= 0 {
		return 0
	}
	pct := math.Round(float64(produced) / float64(target) * 100)
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// DeriveStatus applies the progress-driven status rule. Status only moves
// forward automatically: a task never falls back to ToDo, and a task that
// drops below 100 while Completed returns to InProgress.
func DeriveStatus(prev TaskStatus, progress int) TaskStatus {
	switch {
	case progress >= 100:
		return StatusCompleted
	case prev == StatusCompleted:
		return StatusInProgress
	case progress > 0 && prev == StatusToDo:
		return StatusInProgress
	default:
		return prev
	}
}
