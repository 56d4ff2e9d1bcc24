package contract

import (
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// TaskPatch carries only the fields a mutation changed. Nil means untouched.
type TaskPatch struct {
	Status           *domain.TaskStatus
	Progress         *int
	Produced         *int
	SpentTime        *float64
	ActualFinishDate *time.Time
	// ClearFinishDate removes ActualFinishDate when a task leaves Completed.
	ClearFinishDate bool
}

func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.Progress == nil && p.Produced == nil &&
		p.SpentTime == nil && p.ActualFinishDate == nil && !p.ClearFinishDate
}

// ApplyTo writes the patched fields onto t.
func (p TaskPatch) ApplyTo(t *domain.Task) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.Produced != nil {
		t.Produced = *p.Produced
	}
	if p.SpentTime != nil && *p.SpentTime > t.SpentTime {
		t.SpentTime = *p.SpentTime
	}
	if p.ClearFinishDate {
		t.ActualFinishDate = nil
	}
	if p.ActualFinishDate != nil {
		ts := *p.ActualFinishDate
		t.ActualFinishDate = &ts
	}
}

// PiecePatch carries the derived fields of a piece.
type PiecePatch struct {
	Progress *int
	Status   *domain.TaskStatus
}

func (p PiecePatch) Empty() bool {
	return p.Progress == nil && p.Status == nil
}

func (p PiecePatch) ApplyTo(piece *domain.Piece) {
	if p.Progress != nil {
		piece.Progress = *p.Progress
	}
	if p.Status != nil {
		piece.Status = *p.Status
	}
}
