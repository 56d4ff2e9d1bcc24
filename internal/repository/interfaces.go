package repository

import (
	"context"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// TaskQuery narrows List. Empty fields match everything.
type TaskQuery struct {
	ResourceID string
	PieceID    string
	Status     domain.TaskStatus
}

type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, q TaskQuery) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
}

type PieceRepo interface {
	Create(ctx context.Context, p *domain.Piece) error
	GetByID(ctx context.Context, id string) (*domain.Piece, error)
	GetByReference(ctx context.Context, reference string) (*domain.Piece, error)
	List(ctx context.Context) ([]*domain.Piece, error)
	Update(ctx context.Context, p *domain.Piece) error
	Delete(ctx context.Context, id string) error
}

type MaterialRepo interface {
	Create(ctx context.Context, m *domain.Material) error
	GetByID(ctx context.Context, id string) (*domain.Material, error)
	List(ctx context.Context) ([]*domain.Material, error)
	Update(ctx context.Context, m *domain.Material) error
	Delete(ctx context.Context, id string) error
}

type ResourceRepo interface {
	Create(ctx context.Context, r *domain.Resource) error
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	List(ctx context.Context) ([]*domain.Resource, error)
	Update(ctx context.Context, r *domain.Resource) error
}

type CommentRepo interface {
	Create(ctx context.Context, c *domain.Comment) error
	ListByTask(ctx context.Context, taskID string) ([]*domain.Comment, error)
}
