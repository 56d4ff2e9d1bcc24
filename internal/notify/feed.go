// Package notify holds the transient, user-dismissible notifications raised
// while a board session is open.
package notify

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

type Kind string

const (
	KindProgress Kind = "progress"
	KindInfo     Kind = "info"
	KindWarning  Kind = "warning"
	KindSuccess  Kind = "success"
)

type Notification struct {
	ID        string
	Title     string
	Message   string
	Kind      Kind
	TaskID    string
	Read      bool
	Timestamp time.Time
}

// DefaultCapacity bounds the feed; the oldest notifications fall off first.
const DefaultCapacity = 100

// Feed is a newest-first notification list.
type Feed struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	now      func() time.Time
	newID    func() string

	notifyMu  sync.Mutex
	listeners map[int]func([]Notification)
	nextID    int
}

type Option func(*Feed)

func WithCapacity(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.capacity = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		capacity:  DefaultCapacity,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		listeners: make(map[int]func([]Notification)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Push prepends n, filling in ID and Timestamp when unset.
func (f *Feed) Push(n Notification) Notification {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	if n.ID == "" {
		n.ID = f.newID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = f.now()
	}
	f.items = append([]Notification{n}, f.items...)
	if len(f.items) > f.capacity {
		f.items = f.items[:f.capacity]
	}
	snapshot := slices.Clone(f.items)
	f.mu.Unlock()

	f.notify(snapshot)
	return n
}

// Failure records a rolled-back mutation.
func (f *Feed) Failure(taskName string, err error) Notification {
	var re *domain.ReconciliationError
	taskID := ""
	if errors.As(err, &re) {
		taskID = re.TaskID
	}
	return f.Push(Notification{
		Title:   "Update Failed",
		Message: fmt.Sprintf("Changes to %q were reverted: %v", taskName, err),
		Kind:    KindWarning,
		TaskID:  taskID,
	})
}

// Progress records a confirmed produced-quantity change. actor may be empty.
func (f *Feed) Progress(actor string, task domain.Task, produced, target int) Notification {
	msg := fmt.Sprintf("%d out of %d pieces completed on %q", produced, target, task.Name)
	if actor != "" {
		msg = actor + ": " + msg
	}
	return f.Push(Notification{
		Title:   "Progress Update",
		Message: msg,
		Kind:    KindProgress,
		TaskID:  task.ID,
	})
}

func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

func (f *Feed) Dismiss(id string) bool {
	return f.update(func() bool {
		i := slices.IndexFunc(f.items, func(n Notification) bool { return n.ID == id })
		if i < 0 {
			return false
		}
		f.items = slices.Delete(f.items, i, i+1)
		return true
	})
}

func (f *Feed) MarkRead(id string) bool {
	return f.update(func() bool {
		i := slices.IndexFunc(f.items, func(n Notification) bool { return n.ID == id })
		if i < 0 || f.items[i].Read {
			return false
		}
		f.items[i].Read = true
		return true
	})
}

// MarkAllRead returns how many notifications changed.
func (f *Feed) MarkAllRead() int {
	changed := 0
	f.update(func() bool {
		for i := range f.items {
			if !f.items[i].Read {
				f.items[i].Read = true
				changed++
			}
		}
		return changed > 0
	})
	return changed
}

func (f *Feed) update(fn func() bool) bool {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	changed := fn()
	snapshot := slices.Clone(f.items)
	f.mu.Unlock()

	if changed {
		f.notify(snapshot)
	}
	return changed
}

func (f *Feed) Subscribe(l func([]Notification)) func() {
	f.notifyMu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	f.notifyMu.Unlock()

	return func() {
		f.notifyMu.Lock()
		delete(f.listeners, id)
		f.notifyMu.Unlock()
	}
}

func (f *Feed) notify(items []Notification) {
	ids := make([]int, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		f.listeners[id](items)
	}
}
