// Package alerts keeps the live stock alert feed and the pipeline that feeds
// it from material snapshots.
package alerts

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// Listener receives the full feed after every change.
type Listener func([]domain.Alert)

// Store is the deduplicated alert feed, newest first. Alerts stay until a
// user dismisses them or the feed is cleared.
type Store struct {
	mu     sync.Mutex
	alerts []domain.Alert
	keys   map[domain.AlertKey]struct{}
	now    func() time.Time
	newID  func() string
	// removals counts Dismiss and Clear calls that removed something.
	removals uint64

	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextID    int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		keys:      make(map[domain.AlertKey]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile merges candidate alerts into the feed. A candidate whose
// (type, message) is already live is discarded and the live alert keeps its
// original timestamp. Each new alert is prepended in turn, so the last new
// candidate ends up first. It returns the added alerts in candidate order.
func (s *Store) Reconcile(candidates []domain.Alert) []domain.Alert {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	var added []domain.Alert
	for _, c := range candidates {
		key := c.Key()
		if _, live := s.keys[key]; live {
			continue
		}
		if c.ID == "" {
			c.ID = s.newID()
		}
		if c.Timestamp.IsZero() {
			c.Timestamp = s.now()
		}
		s.keys[key] = struct{}{}
		added = append(added, c)
	}
	if len(added) == 0 {
		s.mu.Unlock()
		return nil
	}
	front := slices.Clone(added)
	slices.Reverse(front)
	s.alerts = append(front, s.alerts...)
	feed := slices.Clone(s.alerts)
	s.mu.Unlock()

	s.notify(feed)
	return added
}

// Dismiss removes an alert. The same condition may alert again afterwards.
func (s *Store) Dismiss(id string) bool {
	return s.update(func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		delete(s.keys, s.alerts[i].Key())
		s.alerts = slices.Delete(s.alerts, i, i+1)
		s.removals++
		return true
	})
}

func (s *Store) MarkRead(id string) bool {
	return s.update(func() bool {
		i := s.indexLocked(id)
		if i < 0 || s.alerts[i].Read {
			return false
		}
		s.alerts[i].Read = true
		return true
	})
}

func (s *Store) Clear() {
	s.update(func() bool {
		if len(s.alerts) == 0 {
			return false
		}
		s.alerts = nil
		s.keys = make(map[domain.AlertKey]struct{})
		s.removals++
		return true
	})
}

// update runs fn under the lock and notifies listeners when fn reports a
// change.
func (s *Store) update(fn func() bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := fn()
	feed := slices.Clone(s.alerts)
	s.mu.Unlock()

	if changed {
		s.notify(feed)
	}
	return changed
}

func (s *Store) removalCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removals
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.alerts, func(a domain.Alert) bool { return a.ID == id })
}

// List returns the feed, newest first.
func (s *Store) List() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.alerts)
}

func (s *Store) Unread() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if !a.Read {
			out = append(out, a)
		}
	}
	return out
}

// Subscribe registers a listener. The returned function unregisters it.
func (s *Store) Subscribe(l Listener) func() {
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.listeners, id)
		s.notifyMu.Unlock()
	}
}

// notify must be called with notifyMu held.
func (s *Store) notify(feed []domain.Alert) {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		s.listeners[id](feed)
	}
}
