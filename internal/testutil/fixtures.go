package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/google/uuid"
)

var testReferenceCounter atomic.Int64

// FixtureTime is the fixed clock used by fixtures.
var FixtureTime = time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)

// Task options
type TaskOption func(*domain.Task)

func WithStatus(s domain.TaskStatus) TaskOption {
	return func(t *domain.Task) {
		t.Status = s
	}
}

func WithQuantity(q int) TaskOption {
	return func(t *domain.Task) {
		t.Quantity = q
	}
}

// WithProduced sets the produced counter and the matching progress against
// the task's own quantity. Apply after WithQuantity.
func WithProduced(n int) TaskOption {
	return func(t *domain.Task) {
		t.Produced = n
		t.Progress = domain.ComputeProgress(n, t.Quantity)
	}
}

func WithPiece(pieceID string) TaskOption {
	return func(t *domain.Task) {
		t.PieceID = pieceID
	}
}

func WithDueDate(d time.Time) TaskOption {
	return func(t *domain.Task) {
		t.DueDate = d
	}
}

func WithResources(ids ...string) TaskOption {
	return func(t *domain.Task) {
		t.ResourceIDs = ids
	}
}

func WithSpentTime(hours float64) TaskOption {
	return func(t *domain.Task) {
		t.SpentTime = hours
	}
}

func WithEstimate(hours float64) TaskOption {
	return func(t *domain.Task) {
		t.EstimatedTime = hours
	}
}

func WithTaskID(id string) TaskOption {
	return func(t *domain.Task) {
		t.ID = id
	}
}

func NewTestTask(name string, opts ...TaskOption) domain.Task {
	t := domain.Task{
		ID:            uuid.New().String(),
		Name:          name,
		EstimatedTime: 8,
		Quantity:      10,
		Status:        domain.StatusToDo,
		DueDate:       FixtureTime.AddDate(0, 0, 7),
		CreatedBy:     "manager",
		CreatedAt:     FixtureTime,
		UpdatedAt:     FixtureTime,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Piece options
type PieceOption func(*domain.Piece)

func WithPieceQuantity(q int) PieceOption {
	return func(p *domain.Piece) {
		p.Quantity = q
	}
}

func WithPieceID(id string) PieceOption {
	return func(p *domain.Piece) {
		p.ID = id
	}
}

func WithMaterial(materialID string, quantity float64) PieceOption {
	return func(p *domain.Piece) {
		p.MaterialID = materialID
		p.MaterialQuantity = quantity
	}
}

// NewTestPiece creates a piece that owns the given tasks.
func NewTestPiece(name string, taskIDs []string, opts ...PieceOption) domain.Piece {
	n := testReferenceCounter.Add(1)
	p := domain.Piece{
		ID:        uuid.New().String(),
		Reference: fmt.Sprintf("PC-%03d", n),
		Name:      name,
		Quantity:  10,
		Status:    domain.StatusToDo,
		TaskIDs:   taskIDs,
		CreatedAt: FixtureTime,
		UpdatedAt: FixtureTime,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// NewTestBar creates a cylindrical bar tracked by length in mm.
func NewTestBar(name string, available, min float64) domain.Material {
	return domain.Material{
		ID:              uuid.New().String(),
		Name:            name,
		Type:            "S235",
		Shape:           domain.ShapeBar,
		Quantity:        1,
		AvailableLength: &available,
		MinLength:       &min,
		LastUpdated:     FixtureTime,
		CreatedAt:       FixtureTime,
	}
}

// NewTestPlate creates a plate tracked by area in mm².
func NewTestPlate(name string, available, min float64) domain.Material {
	return domain.Material{
		ID:            uuid.New().String(),
		Name:          name,
		Type:          "AlMg3",
		Shape:         domain.ShapePlate,
		Quantity:      1,
		AvailableArea: &available,
		MinArea:       &min,
		LastUpdated:   FixtureTime,
		CreatedAt:     FixtureTime,
	}
}

func NewTestResource(name string, kind domain.ResourceType) domain.Resource {
	return domain.Resource{
		ID:          uuid.New().String(),
		Name:        name,
		Type:        kind,
		IsAvailable: true,
		CreatedAt:   FixtureTime,
		UpdatedAt:   FixtureTime,
	}
}
