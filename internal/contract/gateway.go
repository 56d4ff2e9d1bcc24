// Package contract defines what the board engine expects from the
// authoritative store and the push channel, independent of transport.
package contract

import (
	"context"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// Gateway is the authoritative remote store. Every call may fail; the
// coordinator treats a failure as a rejection of the optimistic change.
type Gateway interface {
	ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	PatchTask(ctx context.Context, id string, patch TaskPatch) (domain.Task, error)
	PatchPiece(ctx context.Context, id string, patch PiecePatch) (domain.Piece, error)
	PostComment(ctx context.Context, taskID, text string) (domain.Comment, error)
	ListMaterials(ctx context.Context) ([]domain.Material, error)
	ListPieces(ctx context.Context) ([]domain.Piece, error)
	ListResources(ctx context.Context) ([]domain.Resource, error)
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	ResourceID string
	PieceID    string
	Status     domain.TaskStatus
}

func (f TaskFilter) Matches(t domain.Task) bool {
	if f.ResourceID != "" && !t.HasResource(f.ResourceID) {
		return false
	}
	if f.PieceID != "" && t.PieceID != f.PieceID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}
