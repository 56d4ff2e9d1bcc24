// Package board holds the in-memory mirror of the tasks, pieces and
// resources of an open board session, and the read projections the board
// columns and dashboards render from.
package board

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// Snapshot is an immutable view of the board published after every write.
// Callers must treat the returned tasks as read-only.
type Snapshot struct {
	Version uint64
	buckets map[domain.TaskStatus][]domain.Task
	all     []domain.Task
}

// Column returns the tasks in a status bucket, ordered by due date then ID.
func (s *Snapshot) Column(status domain.TaskStatus) []domain.Task {
	return s.buckets[status]
}

// Len returns the number of tasks on the board.
func (s *Snapshot) Len() int {
	return len(s.all)
}

// Observer receives every published snapshot, in publication order.
// Observers run synchronously and must not write to the store.
type Observer func(*Snapshot)

// Change is a set of task and piece replacements applied atomically.
type Change struct {
	Tasks  []domain.Task
	Pieces []domain.Piece
}

type Store struct {
	mu        sync.RWMutex
	tasks     map[string]domain.Task
	pieces    map[string]domain.Piece
	resources map[string]domain.Resource
	owner     map[string]string // task ID -> piece ID
	version   uint64

	snap atomic.Pointer[Snapshot]

	// publishMu serializes observer delivery so observers see snapshots in
	// version order.
	publishMu sync.Mutex
	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

func NewStore() *Store {
	s := &Store{observers: make(map[int]Observer)}
	s.reset()
	s.snap.Store(s.build())
	return s
}

func (s *Store) reset() {
	s.tasks = make(map[string]domain.Task)
	s.pieces = make(map[string]domain.Piece)
	s.resources = make(map[string]domain.Resource)
	s.owner = make(map[string]string)
}

// Load replaces the whole working set.
func (s *Store) Load(tasks []domain.Task, pieces []domain.Piece, resources []domain.Resource) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	prevTasks, prevPieces, prevRes, prevOwner := s.tasks, s.pieces, s.resources, s.owner
	s.reset()
	for _, r := range resources {
		s.resources[r.ID] = r
	}
	if err := s.applyLocked(Change{Tasks: tasks, Pieces: pieces}); err != nil {
		s.tasks, s.pieces, s.resources, s.owner = prevTasks, prevPieces, prevRes, prevOwner
		s.mu.Unlock()
		return err
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// Upsert inserts or replaces a task and republishes the status buckets.
func (s *Store) Upsert(task domain.Task) {
	// A task-only change cannot violate piece ownership.
	_ = s.Apply(Change{Tasks: []domain.Task{task}})
}

// UpsertPiece inserts or replaces a piece. It fails when the piece claims a
// task already owned by another piece.
func (s *Store) UpsertPiece(piece domain.Piece) error {
	return s.Apply(Change{Pieces: []domain.Piece{piece}})
}

// Apply writes every task and piece in c, or none of them. All projections
// are recomputed before the single resulting snapshot is published.
func (s *Store) Apply(c Change) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if err := s.applyLocked(c); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) applyLocked(c Change) error {
	claims := make(map[string]string, len(c.Pieces))
	for _, p := range c.Pieces {
		for _, taskID := range p.TaskIDs {
			if other, ok := claims[taskID]; ok && other != p.ID {
				return fmt.Errorf("pieces %s and %s both claim task %s", other, p.ID, taskID)
			}
			if other, ok := s.owner[taskID]; ok && other != p.ID && !replacedWithout(c.Pieces, other, taskID) {
				return fmt.Errorf("piece %s claims task %s already owned by piece %s", p.ID, taskID, other)
			}
			claims[taskID] = p.ID
		}
	}

	for _, p := range c.Pieces {
		if old, ok := s.pieces[p.ID]; ok {
			for _, taskID := range old.TaskIDs {
				if s.owner[taskID] == p.ID {
					delete(s.owner, taskID)
				}
			}
		}
		s.pieces[p.ID] = p.Clone()
	}
	for taskID, pieceID := range claims {
		s.owner[taskID] = pieceID
	}
	for _, t := range c.Tasks {
		s.tasks[t.ID] = t.Clone()
	}
	return nil
}

// replacedWithout reports whether the change replaces piece pieceID with a
// version that no longer claims taskID.
func replacedWithout(pieces []domain.Piece, pieceID, taskID string) bool {
	for _, p := range pieces {
		if p.ID == pieceID {
			return !p.Owns(taskID)
		}
	}
	return false
}

func (s *Store) commitLocked() *Snapshot {
	s.version++
	snap := s.build()
	s.snap.Store(snap)
	return snap
}

func (s *Store) build() *Snapshot {
	all := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		all = append(all, t)
	}
	slices.SortFunc(all, compareTasks)

	buckets := make(map[domain.TaskStatus][]domain.Task, len(domain.BoardStatuses))
	for _, st := range domain.BoardStatuses {
		buckets[st] = []domain.Task{}
	}
	for _, t := range all {
		buckets[t.Status] = append(buckets[t.Status], t)
	}
	return &Snapshot{Version: s.version, buckets: buckets, all: all}
}

func compareTasks(a, b domain.Task) int {
	if c := a.DueDate.Compare(b.DueDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *Store) publish(snap *Snapshot) {
	s.obsMu.Lock()
	obs := make([]Observer, 0, len(s.observers))
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, o := range obs {
		o(snap)
	}
}

// Subscribe registers an observer and immediately delivers the current
// snapshot to it. The returned function unregisters it.
func (s *Store) Subscribe(o Observer) func() {
	s.publishMu.Lock()
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()
	o(s.snap.Load())
	s.publishMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// Snapshot returns the latest published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// ByStatus returns one board column.
func (s *Store) ByStatus(status domain.TaskStatus) []domain.Task {
	return slices.Clone(s.snap.Load().Column(status))
}

// ByResource returns the tasks assigned to a resource, in board order.
func (s *Store) ByResource(resourceID string) []domain.Task {
	var out []domain.Task
	for _, t := range s.snap.Load().all {
		if t.HasResource(resourceID) {
			out = append(out, t)
		}
	}
	return out
}

// ByPiece returns the tasks belonging to a piece, in board order.
func (s *Store) ByPiece(pieceID string) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Task
	for _, t := range s.snap.Load().all {
		if s.owner[t.ID] == pieceID || (t.PieceID == pieceID && s.owner[t.ID] == "") {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return t.Clone(), true
}

func (s *Store) Piece(id string) (domain.Piece, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pieces[id]
	if !ok {
		return domain.Piece{}, false
	}
	return p.Clone(), true
}

// PieceForTask returns the piece that owns a task. Ownership declared by a
// piece's TaskIDs wins over the task's own PieceID.
func (s *Store) PieceForTask(taskID string) (domain.Piece, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pieceID, ok := s.owner[taskID]
	if !ok {
		t, found := s.tasks[taskID]
		if !found || t.PieceID == "" {
			return domain.Piece{}, false
		}
		pieceID = t.PieceID
	}
	p, ok := s.pieces[pieceID]
	if !ok {
		return domain.Piece{}, false
	}
	return p.Clone(), true
}

func (s *Store) Resource(id string) (domain.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	return r, ok
}

// Resources returns all loaded resources ordered by name.
func (s *Store) Resources() []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Resource) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Reset discards the working set and publishes an empty board.
func (s *Store) Reset() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.reset()
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
}
