package importer

import (
	"fmt"
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/google/uuid"
)

// Batch is a converted seed, ready for persistence in dependency order:
// resources, materials, pieces, then tasks.
type Batch struct {
	Resources []domain.Resource
	Materials []domain.Material
	Pieces    []domain.Piece
	Tasks     []domain.Task
}

const defaultCreatedBy = "import"

// Convert turns a validated seed into domain objects with fresh IDs. Task
// progress and status follow the produced counters, and each piece takes
// its progress from the furthest-behind of its tasks. Call ValidateSeed
// first; Convert assumes the seed is valid.
func Convert(s *Seed, now time.Time) (*Batch, error) {
	now = now.UTC()
	b := &Batch{}

	resourceIDs := make(map[string]string, len(s.Resources))
	for _, r := range s.Resources {
		id := uuid.New().String()
		resourceIDs[r.Ref] = id
		b.Resources = append(b.Resources, domain.Resource{
			ID:          id,
			Name:        r.Name,
			Type:        domain.ResourceType(r.Type),
			IsAvailable: domain.Deref(r.Available, true),
			Skills:      r.Skills,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	materialIDs := make(map[string]string, len(s.Materials))
	for _, m := range s.Materials {
		id := uuid.New().String()
		materialIDs[m.Ref] = id
		b.Materials = append(b.Materials, domain.Material{
			ID:              id,
			Name:            m.Name,
			Type:            m.Type,
			Shape:           domain.MaterialShape(m.Shape),
			Quantity:        domain.Deref(m.Quantity, 1),
			AvailableLength: m.AvailableLength,
			MinLength:       m.MinLength,
			AvailableArea:   m.AvailableArea,
			MinArea:         m.MinArea,
			Diameter:        m.Diameter,
			Length:          m.Length,
			X:               m.X,
			Y:               m.Y,
			Thickness:       m.Thickness,
			LastUpdated:     now,
			CreatedAt:       now,
		})
	}

	pieceIdx := make(map[string]int, len(s.Pieces))
	for i, p := range s.Pieces {
		pieceIdx[p.Reference] = i
		b.Pieces = append(b.Pieces, domain.Piece{
			ID:               uuid.New().String(),
			Reference:        p.Reference,
			Name:             p.Name,
			Description:      p.Description,
			MaterialID:       materialIDs[p.MaterialRef],
			MaterialQuantity: p.MaterialQuantity,
			Quantity:         p.Quantity,
			Status:           domain.StatusToDo,
			ProjectID:        p.ProjectID,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	var defaults DefaultsImport
	if s.Defaults != nil {
		defaults = *s.Defaults
	}

	for _, t := range s.Tasks {
		task := domain.Task{
			ID:            uuid.New().String(),
			Name:          t.Name,
			Description:   t.Description,
			EstimatedTime: domain.Deref(t.EstimatedTime, domain.Deref(defaults.EstimatedTime, 0)),
			SpentTime:     t.SpentTime,
			Quantity:      taskQuantity(t, s.Defaults),
			Status:        domain.StatusToDo,
			CreatedBy:     domain.CoalesceStr(t.CreatedBy, defaults.CreatedBy, defaultCreatedBy),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		for _, ref := range t.Resources {
			task.ResourceIDs = append(task.ResourceIDs, resourceIDs[ref])
		}
		if t.DueDate != "" {
			due, err := time.Parse(DateLayout, t.DueDate)
			if err != nil {
				return nil, fmt.Errorf("parsing due_date of task %q: %w", t.Ref, err)
			}
			task.DueDate = due
		}

		var piece *domain.Piece
		if t.PieceRef != "" {
			piece = &b.Pieces[pieceIdx[t.PieceRef]]
			task.PieceID = piece.ID
			piece.TaskIDs = append(piece.TaskIDs, task.ID)
		}

		task.Produced = t.Produced
		task.Progress = domain.ComputeProgress(t.Produced, domain.ProductionTarget(task, piece))
		status := domain.DeriveStatus(domain.StatusToDo, task.Progress)
		if t.Status != "" {
			parsed, err := domain.ParseTaskStatus(t.Status)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", t.Ref, err)
			}
			status = parsed
		}
		task.SetStatus(status, now)
		b.Tasks = append(b.Tasks, task)
	}

	for i := range b.Pieces {
		rollupPiece(&b.Pieces[i], b.Tasks)
	}
	return b, nil
}

func rollupPiece(p *domain.Piece, tasks []domain.Task) {
	if len(p.TaskIDs) == 0 {
		return
	}
	lowest := 100
	for _, t := range tasks {
		if p.Owns(t.ID) && t.Progress < lowest {
			lowest = t.Progress
		}
	}
	p.Progress = lowest
	p.Status = domain.DeriveStatus(domain.StatusToDo, lowest)
}
