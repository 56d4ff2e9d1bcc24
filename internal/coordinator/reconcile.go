package coordinator

import (
	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

// reconcile merges an authoritative task with the local copy: the remote
// version wins except for elapsed time, which only grows.
func reconcile(remote, local domain.Task, target int) domain.Task {
	out := remote.Clone()
	if local.SpentTime > out.SpentTime {
		out.SpentTime = local.SpentTime
	}
	if out.Produced == 0 && out.Progress > 0 {
		out.Produced = domain.ProducedFromProgress(out.Progress, target)
	}
	return out
}

func taskPatch(before, after domain.Task) contract.TaskPatch {
	var p contract.TaskPatch
	if after.Status != before.Status {
		s := after.Status
		p.Status = &s
	}
	if after.Progress != before.Progress {
		v := after.Progress
		p.Progress = &v
	}
	if after.Produced != before.Produced {
		v := after.Produced
		p.Produced = &v
	}
	switch {
	case after.ActualFinishDate == nil && before.ActualFinishDate != nil:
		p.ClearFinishDate = true
	case after.ActualFinishDate != nil &&
		(before.ActualFinishDate == nil || !after.ActualFinishDate.Equal(*before.ActualFinishDate)):
		d := *after.ActualFinishDate
		p.ActualFinishDate = &d
	}
	return p
}

func piecePatch(before, after domain.Piece) contract.PiecePatch {
	var p contract.PiecePatch
	if after.Progress != before.Progress {
		v := after.Progress
		p.Progress = &v
	}
	if after.Status != before.Status {
		s := after.Status
		p.Status = &s
	}
	return p
}
