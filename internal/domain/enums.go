package domain

import "fmt"

type TaskStatus string

const (
	StatusToDo       TaskStatus = "To Do"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
	StatusOnHold     TaskStatus = "On Hold"
)

// BoardStatuses lists the board columns in display order.
var BoardStatuses = []TaskStatus{StatusToDo, StatusInProgress, StatusCompleted, StatusOnHold}

// ParseTaskStatus accepts either the wire value ("In Progress") or a
// snake_case alias ("in_progress").
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case string(StatusToDo), "todo", "to_do":
		return StatusToDo, nil
	case string(StatusInProgress), "in_progress":
		return StatusInProgress, nil
	case string(StatusCompleted), "completed", "done":
		return StatusCompleted, nil
	case string(StatusOnHold), "on_hold":
		return StatusOnHold, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Valid reports whether s is one of the four board statuses.
func (s TaskStatus) Valid() bool {
	for _, v := range BoardStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type MaterialShape string

const (
	ShapeBar   MaterialShape = "Cylindrical Bar"
	ShapePlate MaterialShape = "Plate"
)

type StockLevel string

const (
	StockNormal   StockLevel = "normal"
	StockLow      StockLevel = "low"
	StockCritical StockLevel = "critical"
)

type AlertType string

const (
	AlertLowStock      AlertType = "low-stock"
	AlertCriticalStock AlertType = "critical-stock"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type ResourceType string

const (
	ResourcePerson  ResourceType = "Person"
	ResourceMachine ResourceType = "Machine"
)
