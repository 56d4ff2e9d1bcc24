package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

type Kind string

const (
	KindMove    Kind = "move"
	KindProduce Kind = "produce"
	KindComment Kind = "comment"
)

type State int

const (
	StatePending State = iota
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// transform computes the optimistic state of a task (and its piece) from
// the current one. It must not modify its inputs.
type transform func(task domain.Task, piece *domain.Piece, now time.Time) (domain.Production, error)

// Mutation is the handle for one user change. It resolves exactly once, to
// Confirmed or RolledBack.
type Mutation struct {
	ID     string
	TaskID string
	Kind   Kind

	seq   uint64
	apply transform
	text  string

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newMutation(id, taskID string, kind Kind) *Mutation {
	return &Mutation{ID: id, TaskID: taskID, Kind: kind, done: make(chan struct{})}
}

func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the reason a mutation was rolled back, or nil.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Done is closed once the mutation is resolved.
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation resolves and returns Err.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation) resolve(state State, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePending {
		return false
	}
	m.state = state
	m.err = err
	close(m.done)
	return true
}
