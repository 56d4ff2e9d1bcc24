package domain

import "time"

type Alert struct {
	ID         string
	Type       AlertType
	Title      string
	Message    string
	Severity   Severity
	MaterialID string
	Read       bool
	Timestamp  time.Time
}

// AlertKey identifies the underlying condition of an alert. Two alerts with
// the same key describe the same condition.
type AlertKey struct {
	Type    AlertType
	Message string
}

func (a *Alert) Key() AlertKey {
	return AlertKey{Type: a.Type, Message: a.Message}
}
