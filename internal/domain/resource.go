package domain

import "time"

type Resource struct {
	ID          string
	Name        string
	Type        ResourceType
	IsAvailable bool
	Skills      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Comment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Message   string
	CreatedAt time.Time
}
