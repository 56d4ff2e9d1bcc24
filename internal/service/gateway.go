// Package service implements the authoritative shop floor store on top of
// the SQLite repositories.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/repository"
	"github.com/google/uuid"
)

// LocalGateway is a contract.Gateway backed by the local database. Every
// write runs in its own transaction.
type LocalGateway struct {
	db       *sql.DB
	uow      db.UnitOfWork
	observer UseCaseObserver
	now      func() time.Time
	authorID string
}

type GatewayOption func(*LocalGateway)

// WithClock overrides the time source used for UpdatedAt and CreatedAt.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *LocalGateway) { g.now = now }
}

// WithAuthor sets the author recorded on posted comments.
func WithAuthor(id string) GatewayOption {
	return func(g *LocalGateway) { g.authorID = id }
}

// WithUnitOfWork replaces the transaction runner.
func WithUnitOfWork(uow db.UnitOfWork) GatewayOption {
	return func(g *LocalGateway) { g.uow = uow }
}

func WithObserver(o UseCaseObserver) GatewayOption {
	return func(g *LocalGateway) { g.observer = o }
}

func NewLocalGateway(database *sql.DB, opts ...GatewayOption) *LocalGateway {
	g := &LocalGateway{
		db:       database,
		uow:      db.NewSQLiteUnitOfWork(database),
		observer: NoopUseCaseObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.observer == nil {
		g.observer = NoopUseCaseObserver{}
	}
	return g
}

func (g *LocalGateway) observe(ctx context.Context, name string, startedAt time.Time, fields map[string]any, err error) {
	g.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

func (g *LocalGateway) ListTasks(ctx context.Context, filter contract.TaskFilter) ([]domain.Task, error) {
	tasks, err := repository.NewSQLiteTaskRepo(g.db).List(ctx, repository.TaskQuery{
		ResourceID: filter.ResourceID,
		PieceID:    filter.PieceID,
		Status:     filter.Status,
	})
	if err != nil {
		return nil, err
	}
	return derefAll(tasks), nil
}

// PatchTask applies patch to the stored task and returns the result. The
// patched task must still hold a board status and a progress in [0,100].
func (g *LocalGateway) PatchTask(ctx context.Context, id string, patch contract.TaskPatch) (task domain.Task, err error) {
	startedAt := time.Now()
	fields := map[string]any{"task_id": id}
	defer func() { g.observe(ctx, "patch-task", startedAt, fields, err) }()

	err = g.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tasks := repository.NewSQLiteTaskRepo(tx)
		t, err := tasks.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("task %s: %w", id, domain.ErrTaskNotFound)
		}
		if err != nil {
			return err
		}

		patch.ApplyTo(t)
		if err := validateTask(t); err != nil {
			return err
		}
		t.UpdatedAt = g.now().UTC()
		if err := tasks.Update(ctx, t); err != nil {
			return err
		}
		task = *t
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	fields["status"] = string(task.Status)
	fields["progress"] = task.Progress
	return task, nil
}

func (g *LocalGateway) PatchPiece(ctx context.Context, id string, patch contract.PiecePatch) (piece domain.Piece, err error) {
	startedAt := time.Now()
	fields := map[string]any{"piece_id": id}
	defer func() { g.observe(ctx, "patch-piece", startedAt, fields, err) }()

	err = g.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		pieces := repository.NewSQLitePieceRepo(tx)
		p, err := pieces.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("piece %s: %w", id, domain.ErrPieceNotFound)
		}
		if err != nil {
			return err
		}

		patch.ApplyTo(p)
		if p.Progress < 0 || p.Progress > 100 {
			return &domain.ValidationError{Field: "progress", Reason: fmt.Sprintf("%d is outside [0, 100]", p.Progress)}
		}
		if !p.Status.Valid() {
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
		}
		p.UpdatedAt = g.now().UTC()
		if err := pieces.Update(ctx, p); err != nil {
			return err
		}
		piece = *p
		return nil
	})
	if err != nil {
		return domain.Piece{}, err
	}
	return piece, nil
}

func (g *LocalGateway) PostComment(ctx context.Context, taskID, text string) (comment domain.Comment, err error) {
	startedAt := time.Now()
	fields := map[string]any{"task_id": taskID}
	defer func() { g.observe(ctx, "post-comment", startedAt, fields, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, &domain.ValidationError{Field: "comment", Reason: "text is empty"}
	}

	err = g.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := repository.NewSQLiteTaskRepo(tx).GetByID(ctx, taskID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("task %s: %w", taskID, domain.ErrTaskNotFound)
			}
			return err
		}
		comment = domain.Comment{
			ID:        uuid.New().String(),
			TaskID:    taskID,
			AuthorID:  g.authorID,
			Message:   text,
			CreatedAt: g.now().UTC(),
		}
		return repository.NewSQLiteCommentRepo(tx).Create(ctx, &comment)
	})
	if err != nil {
		return domain.Comment{}, err
	}
	fields["comment_id"] = comment.ID
	return comment, nil
}

func (g *LocalGateway) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	materials, err := repository.NewSQLiteMaterialRepo(g.db).List(ctx)
	if err != nil {
		return nil, err
	}
	return derefAll(materials), nil
}

func (g *LocalGateway) ListPieces(ctx context.Context) ([]domain.Piece, error) {
	pieces, err := repository.NewSQLitePieceRepo(g.db).List(ctx)
	if err != nil {
		return nil, err
	}
	return derefAll(pieces), nil
}

func (g *LocalGateway) ListResources(ctx context.Context) ([]domain.Resource, error) {
	resources, err := repository.NewSQLiteResourceRepo(g.db).List(ctx)
	if err != nil {
		return nil, err
	}
	return derefAll(resources), nil
}

// UpdateMaterial stores new stock figures for a material.
func (g *LocalGateway) UpdateMaterial(ctx context.Context, m domain.Material) (err error) {
	startedAt := time.Now()
	defer func() { g.observe(ctx, "update-material", startedAt, map[string]any{"material_id": m.ID}, err) }()

	m.LastUpdated = g.now().UTC()
	return g.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteMaterialRepo(tx).Update(ctx, &m)
	})
}

func validateTask(t *domain.Task) error {
	if !t.Status.Valid() {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if t.Progress < 0 || t.Progress > 100 {
		return &domain.ValidationError{Field: "progress", Reason: fmt.Sprintf("%d is outside [0, 100]", t.Progress)}
	}
	if t.Produced < 0 {
		return &domain.ValidationError{Field: "produced", Reason: "must not be negative"}
	}
	return nil
}

func derefAll[T any](items []*T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = *it
	}
	return out
}

var _ contract.Gateway = (*LocalGateway)(nil)
