// Package session opens a board session: it loads the working set from a
// gateway and runs the coordinator, timers, alerts and push feed for as long
// as the board is open.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/shopfloor/internal/alerts"
	"github.com/alexanderramin/shopfloor/internal/board"
	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/coordinator"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/notify"
	"github.com/alexanderramin/shopfloor/internal/tracker"
)

type Session struct {
	board   *board.Store
	alerts  *alerts.Store
	monitor *alerts.Monitor
	notes   *notify.Feed
	coord   *coordinator.Coordinator
	timers  *tracker.Tracker
	log     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type options struct {
	feeds        []contract.Feed
	logger       *zap.Logger
	actor        string
	tickInterval time.Duration
	callTimeout  time.Duration
	filter       contract.TaskFilter
	coordOpts    []coordinator.Option
	trackerOpts  []tracker.Option
	alertOpts    []alerts.Option
	notifyOpts   []notify.Option
}

type Option func(*options)

// WithFeed consumes push events from f while the session is open. It may be
// given more than once.
func WithFeed(f contract.Feed) Option {
	return func(o *options) {
		if f != nil {
			o.feeds = append(o.feeds, f)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithActor names the operator in progress notifications.
func WithActor(name string) Option {
	return func(o *options) { o.actor = name }
}

func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

// WithCallTimeout bounds each remote call made for a mutation.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithTaskFilter restricts the loaded tasks, e.g. to one resource's board.
func WithTaskFilter(f contract.TaskFilter) Option {
	return func(o *options) { o.filter = f }
}

// WithCoordinatorOptions appends options after the session's own, so they
// take precedence.
func WithCoordinatorOptions(opts ...coordinator.Option) Option {
	return func(o *options) { o.coordOpts = append(o.coordOpts, opts...) }
}

func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(o *options) { o.trackerOpts = append(o.trackerOpts, opts...) }
}

func WithAlertOptions(opts ...alerts.Option) Option {
	return func(o *options) { o.alertOpts = append(o.alertOpts, opts...) }
}

func WithNotifyOptions(opts ...notify.Option) Option {
	return func(o *options) { o.notifyOpts = append(o.notifyOpts, opts...) }
}

type workingSet struct {
	tasks     []domain.Task
	pieces    []domain.Piece
	resources []domain.Resource
	materials []domain.Material
}

func load(ctx context.Context, gw contract.Gateway, filter contract.TaskFilter) (workingSet, error) {
	var ws workingSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if ws.tasks, err = gw.ListTasks(gctx, filter); err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if ws.pieces, err = gw.ListPieces(gctx); err != nil {
			return fmt.Errorf("load pieces: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if ws.resources, err = gw.ListResources(gctx); err != nil {
			return fmt.Errorf("load resources: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if ws.materials, err = gw.ListMaterials(gctx); err != nil {
			return fmt.Errorf("load materials: %w", err)
		}
		return nil
	})
	return ws, g.Wait()
}

// Open loads the working set and starts the session. ctx bounds loading and
// the feed subscription only; the session runs until Close.
func Open(ctx context.Context, gw contract.Gateway, opts ...Option) (*Session, error) {
	o := options{logger: zap.NewNop(), tickInterval: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.Named("session")

	ws, err := load(ctx, gw, o.filter)
	if err != nil {
		return nil, err
	}

	store := board.NewStore()
	if err := store.Load(ws.tasks, ws.pieces, ws.resources); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}

	alertStore := alerts.NewStore(o.alertOpts...)
	monitor := alerts.NewMonitor(alertStore, o.logger)
	if _, err := monitor.EvaluateSnapshot(ws.materials); err != nil {
		return nil, fmt.Errorf("evaluate stock: %w", err)
	}

	notes := notify.NewFeed(o.notifyOpts...)
	coordOpts := append([]coordinator.Option{
		coordinator.WithLogger(o.logger),
		coordinator.WithNotifier(notes),
		coordinator.WithStockSink(monitor),
		coordinator.WithActor(o.actor),
		coordinator.WithCallTimeout(o.callTimeout),
	}, o.coordOpts...)
	coord := coordinator.New(store, gw, coordOpts...)

	trackerOpts := append([]tracker.Option{
		tracker.WithInterval(o.tickInterval),
		tracker.WithLogger(o.logger),
	}, o.trackerOpts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		board:   store,
		alerts:  alertStore,
		monitor: monitor,
		notes:   notes,
		coord:   coord,
		timers:  tracker.New(coord, trackerOpts...),
		log:     log,
		cancel:  cancel,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := coord.Run(runCtx); err != nil {
			log.Error("coordinator stopped", zap.Error(err))
		}
	}()

	for _, feed := range o.feeds {
		events, err := feed.Subscribe(runCtx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe push feed: %w", err)
		}
		s.wg.Add(1)
		go s.consume(runCtx, events)
	}

	log.Info("session opened",
		zap.Int("tasks", len(ws.tasks)),
		zap.Int("pieces", len(ws.pieces)),
		zap.Int("resources", len(ws.resources)),
		zap.Int("materials", len(ws.materials)),
	)
	return s, nil
}

// consume folds push events until the feed closes its channel.
func (s *Session) consume(ctx context.Context, events <-chan contract.Event) {
	defer s.wg.Done()
	for ev := range events {
		err := s.coord.Fold(ctx, ev)
		var stale *domain.StaleDataError
		switch {
		case err == nil:
		case errors.As(err, &stale):
			s.log.Debug("ignored stale push", zap.String("kind", stale.Kind), zap.String("id", stale.ID))
		case errors.Is(err, domain.ErrSessionClosed), errors.Is(err, context.Canceled):
		default:
			s.log.Warn("push event rejected", zap.String("event", string(ev.Kind)), zap.Error(err))
		}
	}
}

// Close stops every timer and the coordinator loop, resolving pending
// mutations to RolledBack, then empties the board. It is safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.timers.StopAll()
		s.cancel()
		s.wg.Wait()
		s.board.Reset()
		s.log.Info("session closed")
	})
}

func (s *Session) MoveTask(ctx context.Context, taskID string, from, to domain.TaskStatus) (*coordinator.Mutation, error) {
	return s.coord.MoveTask(ctx, taskID, from, to)
}

func (s *Session) AdjustProducedQuantity(ctx context.Context, taskID string, delta int) (*coordinator.Mutation, error) {
	return s.coord.AdjustProducedQuantity(ctx, taskID, delta)
}

func (s *Session) AddComment(ctx context.Context, taskID, text string) (*coordinator.Mutation, error) {
	return s.coord.AddComment(ctx, taskID, text)
}

// StartTimer begins timing a task that is on the board.
func (s *Session) StartTimer(taskID string) error {
	if _, ok := s.board.Task(taskID); !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrTaskNotFound)
	}
	s.timers.Start(taskID)
	return nil
}

func (s *Session) PauseTimer(taskID string) bool {
	return s.timers.Pause(taskID)
}

func (s *Session) Board() *board.Store          { return s.board }
func (s *Session) Alerts() *alerts.Store        { return s.alerts }
func (s *Session) Notifications() *notify.Feed  { return s.notes }
func (s *Session) Tracker() *tracker.Tracker    { return s.timers }
func (s *Session) Materials() []domain.Material { return s.monitor.Materials() }
