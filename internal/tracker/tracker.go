// Package tracker runs the per-task stopwatches that accumulate elapsed
// time while an operator works on a task.
package tracker

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink receives one call per elapsed second. The coordinator implements it.
type Sink interface {
	Tick(taskID string)
}

// Ticker is the subset of *time.Ticker the tracker needs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) Chan() <-chan time.Time { return t.C }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type Tracker struct {
	sink      Sink
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	log       *zap.Logger

	mu     sync.Mutex
	timers map[string]*timer
}

type timer struct {
	stop chan struct{}
	done chan struct{}
}

type Option func(*Tracker)

// WithInterval sets the tick cadence. Each tick credits the whole interval,
// rounded down to seconds, with a minimum of one second.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(t *Tracker) { t.newTicker = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

func New(sink Sink, opts ...Option) *Tracker {
	t := &Tracker{
		sink:      sink,
		interval:  time.Second,
		newTicker: newRealTicker,
		log:       zap.NewNop(),
		timers:    make(map[string]*timer),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.Named("tracker")
	return t
}

// Start begins timing a task. It reports false if the task is already
// being timed.
func (t *Tracker) Start(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.timers[taskID]; ok {
		return false
	}
	tm := &timer{stop: make(chan struct{}), done: make(chan struct{})}
	t.timers[taskID] = tm

	ticker := t.newTicker(t.interval)
	seconds := max(1, int(t.interval/time.Second))
	go func() {
		defer close(tm.done)
		defer ticker.Stop()
		for {
			select {
			case <-tm.stop:
				return
			case <-ticker.Chan():
				for range seconds {
					t.sink.Tick(taskID)
				}
			}
		}
	}()
	t.log.Debug("timer started", zap.String("task_id", taskID))
	return true
}

// Pause stops timing a task and waits for its timer to exit. It reports
// false if the task was not being timed.
func (t *Tracker) Pause(taskID string) bool {
	t.mu.Lock()
	tm, ok := t.timers[taskID]
	delete(t.timers, taskID)
	t.mu.Unlock()
	if !ok {
		return false
	}
	close(tm.stop)
	<-tm.done
	t.log.Debug("timer paused", zap.String("task_id", taskID))
	return true
}

func (t *Tracker) Running(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[taskID]
	return ok
}

// RunningTasks returns the IDs of every task being timed, sorted.
func (t *Tracker) RunningTasks() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.timers))
	for id := range t.timers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// StopAll pauses every timer, as when the task dialog or session closes.
func (t *Tracker) StopAll() {
	for _, id := range t.RunningTasks() {
		t.Pause(id)
	}
}
