package domain

import (
	"slices"
	"time"
)

type Piece struct {
	ID               string
	Reference        string
	Name             string
	Description      string
	MaterialID       string
	MaterialQuantity float64
	Quantity         int
	Progress         int
	Status           TaskStatus
	TaskIDs          []string
	ProjectID        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p Piece) Clone() Piece {
	c := p
	c.TaskIDs = slices.Clone(p.TaskIDs)
	return c
}

// Owns reports whether the piece lists taskID among its tasks.
func (p *Piece) Owns(taskID string) bool {
	return slices.Contains(p.TaskIDs, taskID)
}
