package contract

import (
	"context"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

type EventKind string

const (
	EventTaskUpdated          EventKind = "task:updated"
	EventMaterialStockUpdated EventKind = "material:stock-updated"
	EventConnectionLost       EventKind = "connection:lost"
)

// Event is one message from the push channel. Exactly one payload field is
// set, matching Kind.
type Event struct {
	Kind     EventKind
	Task     *domain.Task
	Material *domain.Material
	Err      error
}

func TaskUpdated(t domain.Task) Event {
	return Event{Kind: EventTaskUpdated, Task: &t}
}

func StockUpdated(m domain.Material) Event {
	return Event{Kind: EventMaterialStockUpdated, Material: &m}
}

func ConnectionLost(err error) Event {
	return Event{Kind: EventConnectionLost, Err: err}
}

// Feed is a source of push events. The returned channel is closed once the
// feed stops, either because ctx was cancelled or the source ended.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}
