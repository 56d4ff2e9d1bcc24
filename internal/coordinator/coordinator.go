// Package coordinator applies user changes to the board optimistically and
// reconciles them against the authoritative store.
//
// A single event loop (Run) owns every pending mutation. User commands,
// remote responses and push events all pass through its inbox, so they are
// handled in the order they arrive. At most one mutation per task is in
// flight; later ones wait in a per-task queue and start only after the
// earlier one resolves.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexanderramin/shopfloor/internal/board"
	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/notify"
)

// StockSink receives pushed material updates.
type StockSink interface {
	UpdateMaterial(m domain.Material) ([]domain.Alert, error)
}

// Notifier surfaces rollbacks and confirmed progress to the user.
type Notifier interface {
	Failure(taskName string, err error) notify.Notification
	Progress(actor string, task domain.Task, produced, target int) notify.Notification
}

const defaultInboxSize = 64

type Coordinator struct {
	board *board.Store
	gw    contract.Gateway
	stock StockSink
	notes Notifier
	log   *zap.Logger
	now   func() time.Time
	newID func() string
	actor string

	// timeout bounds each remote call; zero means no bound.
	timeout time.Duration

	inbox   chan any
	stopped chan struct{}
	running atomic.Bool
	calls   sync.WaitGroup

	// Owned by the loop goroutine.
	callCtx  context.Context
	seq      uint64
	inflight map[string]*flight
	queues   map[string][]*Mutation
	comments map[uint64]*commentFlight
	acked    map[string]float64
}

// flight is the mutation currently awaiting the remote store for a task.
type flight struct {
	m         *Mutation
	base      domain.Task
	basePiece *domain.Piece
	applied   domain.Production
	piece     contract.PiecePatch
	server    domain.Task
	cancel    context.CancelFunc

	// compensating is set after the task patch was accepted but the piece
	// patch failed; the task stays busy until the reverting patch returns.
	compensating bool
}

type commentFlight struct {
	m      *Mutation
	cancel context.CancelFunc
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newID = gen }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notes = n }
}

func WithStockSink(s StockSink) Option {
	return func(c *Coordinator) { c.stock = s }
}

// WithActor names the user in progress notifications.
func WithActor(name string) Option {
	return func(c *Coordinator) { c.actor = name }
}

// WithCallTimeout bounds every gateway call. A call that times out rolls
// its mutation back like any other remote failure.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func WithInboxSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.inbox = make(chan any, n)
		}
	}
}

func New(store *board.Store, gw contract.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		board:    store,
		gw:       gw,
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		inbox:    make(chan any, defaultInboxSize),
		stopped:  make(chan struct{}),
		inflight: make(map[string]*flight),
		queues:   make(map[string][]*Mutation),
		comments: make(map[uint64]*commentFlight),
		acked:    make(map[string]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("coordinator")
	return c
}

// Inbox messages.
type (
	submitMsg struct {
		m     *Mutation
		reply chan error
	}
	eventMsg struct {
		ev    contract.Event
		reply chan error
	}
	tickMsg struct {
		taskID string
		hours  float64
	}
	taskResult struct {
		seq    uint64
		taskID string
		task   domain.Task
		err    error
	}
	pieceResult struct {
		seq    uint64
		taskID string
		piece  domain.Piece
		err    error
	}
	compensateResult struct {
		seq    uint64
		taskID string
		err    error
	}
	commentResult struct {
		seq     uint64
		comment domain.Comment
		err     error
	}
)

// Run processes the inbox until ctx is cancelled. On exit every pending and
// queued mutation resolves to RolledBack with ErrSessionClosed, and Run
// waits for outstanding remote calls to return.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	callCtx, cancel := context.WithCancel(ctx)
	c.callCtx = callCtx
	defer func() {
		c.dropAll(domain.ErrSessionClosed, false)
		cancel()
		close(c.stopped)
		c.calls.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

func (c *Coordinator) handle(msg any) {
	switch msg := msg.(type) {
	case submitMsg:
		msg.reply <- c.handleSubmit(msg.m)
	case eventMsg:
		msg.reply <- c.handleEvent(msg.ev)
	case tickMsg:
		c.handleTick(msg.taskID, msg.hours)
	case taskResult:
		c.handleTaskResult(msg)
	case pieceResult:
		c.handlePieceResult(msg)
	case compensateResult:
		c.handleCompensateResult(msg)
	case commentResult:
		c.handleCommentResult(msg)
	default:
		c.log.Error("unknown inbox message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// MoveTask moves a task between board columns.
func (c *Coordinator) MoveTask(ctx context.Context, taskID string, from, to domain.TaskStatus) (*Mutation, error) {
	if from == to {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("task is already %s", to)}
	}
	m := newMutation(c.newID(), taskID, KindMove)
	m.apply = func(t domain.Task, p *domain.Piece, now time.Time) (domain.Production, error) {
		return domain.ApplyMove(t, p, from, to, now)
	}
	if err := c.submit(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AdjustProducedQuantity changes a task's produced count by delta and
// recomputes task and piece progress together.
func (c *Coordinator) AdjustProducedQuantity(ctx context.Context, taskID string, delta int) (*Mutation, error) {
	if delta == 0 {
		return nil, &domain.ValidationError{Field: "delta", Reason: "must not be zero"}
	}
	m := newMutation(c.newID(), taskID, KindProduce)
	m.apply = func(t domain.Task, p *domain.Piece, now time.Time) (domain.Production, error) {
		return domain.ApplyProduction(t, p, t.Produced+delta, now)
	}
	if err := c.submit(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddComment posts a comment and attaches it to the task once stored.
// Nothing is shown optimistically.
func (c *Coordinator) AddComment(ctx context.Context, taskID, text string) (*Mutation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.ValidationError{Field: "comment", Reason: "must not be empty"}
	}
	m := newMutation(c.newID(), taskID, KindComment)
	m.text = text
	if err := c.submit(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Tick adds one second of elapsed time to a task. It is local only; the
// accumulated time is sent with the task's next patch.
func (c *Coordinator) Tick(taskID string) {
	select {
	case c.inbox <- tickMsg{taskID: taskID, hours: domain.SecondInHours}:
	case <-c.stopped:
	}
}

// Fold applies a push event. A task update for a task that is not on the
// board returns a StaleDataError and changes nothing.
func (c *Coordinator) Fold(ctx context.Context, ev contract.Event) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, eventMsg{ev: ev, reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

func (c *Coordinator) submit(ctx context.Context, m *Mutation) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, submitMsg{m: m, reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

func (c *Coordinator) send(ctx context.Context, msg any) error {
	select {
	case c.inbox <- msg:
		return nil
	case <-c.stopped:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-c.stopped:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) callContext() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(c.callCtx, c.timeout)
	}
	return context.WithCancel(c.callCtx)
}

// call runs fn off the loop and posts its result back to the inbox.
func (c *Coordinator) call(fn func() any) {
	c.calls.Add(1)
	go func() {
		defer c.calls.Done()
		msg := fn()
		select {
		case c.inbox <- msg:
		case <-c.stopped:
		}
	}()
}

func (c *Coordinator) handleSubmit(m *Mutation) error {
	c.seq++
	m.seq = c.seq

	task, ok := c.board.Task(m.TaskID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, m.TaskID)
	}
	if m.Kind == KindComment {
		c.startComment(m)
		return nil
	}

	// Validate against the state this mutation will actually start from:
	// the optimistic board plus everything already queued for the task.
	projected := domain.Production{Task: task, Piece: c.pieceFor(task.ID)}
	now := c.now()
	for _, q := range c.queues[m.TaskID] {
		if next, err := q.apply(projected.Task, projected.Piece, now); err == nil {
			projected = advance(projected, next)
		}
	}
	if _, err := m.apply(projected.Task, projected.Piece, now); err != nil {
		return err
	}

	c.log.Debug("mutation accepted",
		zap.String("mutation_id", m.ID),
		zap.String("task_id", m.TaskID),
		zap.String("kind", string(m.Kind)))

	if _, busy := c.inflight[m.TaskID]; busy {
		c.queues[m.TaskID] = append(c.queues[m.TaskID], m)
		return nil
	}
	c.start(m)
	return nil
}

// advance carries a projected state forward; a nil piece means unchanged.
func advance(cur, next domain.Production) domain.Production {
	if next.Piece == nil {
		next.Piece = cur.Piece
	}
	return next
}

func (c *Coordinator) pieceFor(taskID string) *domain.Piece {
	p, ok := c.board.PieceForTask(taskID)
	if !ok {
		return nil
	}
	return &p
}

// start applies m optimistically and issues the task patch.
func (c *Coordinator) start(m *Mutation) {
	task, ok := c.board.Task(m.TaskID)
	if !ok {
		c.reject(m, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, m.TaskID), "")
		return
	}
	piece := c.pieceFor(task.ID)
	prod, err := m.apply(task, piece, c.now())
	if err != nil {
		c.reject(m, err, task.Name)
		return
	}

	change := board.Change{Tasks: []domain.Task{prod.Task}}
	if prod.Piece != nil {
		change.Pieces = []domain.Piece{*prod.Piece}
	}
	if err := c.board.Apply(change); err != nil {
		c.reject(m, err, task.Name)
		return
	}

	patch := taskPatch(task, prod.Task)
	if spent, ok := c.unsent(task); ok {
		patch.SpentTime = &spent
	}

	ctx, cancel := c.callContext()
	f := &flight{m: m, base: task, basePiece: piece, applied: prod, cancel: cancel}
	if prod.Piece != nil && piece != nil {
		f.piece = piecePatch(*piece, *prod.Piece)
	}
	c.inflight[m.TaskID] = f

	c.log.Debug("mutation applied",
		zap.String("mutation_id", m.ID),
		zap.String("task_id", m.TaskID),
		zap.String("state", StatePending.String()))

	seq, taskID := m.seq, m.TaskID
	c.call(func() any {
		t, err := c.gw.PatchTask(ctx, taskID, patch)
		return taskResult{seq: seq, taskID: taskID, task: t, err: err}
	})
}

// unsent reports local elapsed time the remote store has not seen yet.
func (c *Coordinator) unsent(task domain.Task) (float64, bool) {
	acked, seen := c.acked[task.ID]
	if !seen {
		c.acked[task.ID] = task.SpentTime
		return 0, false
	}
	return task.SpentTime, task.SpentTime > acked
}

// reject resolves a mutation that could not be applied when its turn came.
func (c *Coordinator) reject(m *Mutation, err error, taskName string) {
	c.log.Info("queued mutation rejected",
		zap.String("mutation_id", m.ID),
		zap.String("task_id", m.TaskID),
		zap.Error(err))
	c.fail(m, taskName, err)
}

func (c *Coordinator) fail(m *Mutation, taskName string, err error) {
	if c.notes != nil {
		c.notes.Failure(cmpName(taskName, m.TaskID), err)
	}
	m.resolve(StateRolledBack, err)
}

func cmpName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func (c *Coordinator) current(taskID string, seq uint64) *flight {
	f := c.inflight[taskID]
	if f == nil || f.m.seq != seq {
		return nil
	}
	return f
}

func (c *Coordinator) handleTaskResult(r taskResult) {
	f := c.current(r.taskID, r.seq)
	if f == nil || f.compensating {
		c.log.Debug("ignoring late task response", zap.String("task_id", r.taskID), zap.Uint64("seq", r.seq))
		return
	}
	if r.err != nil {
		c.rollback(f, "patch task", r.err, true)
		c.next(r.taskID)
		return
	}
	f.server = r.task
	if f.piece.Empty() {
		c.confirm(f, nil)
		return
	}

	pieceID, patch, seq, taskID := f.applied.Piece.ID, f.piece, f.m.seq, f.m.TaskID
	ctx, cancel := c.callContext()
	prev := f.cancel
	f.cancel = func() { cancel(); prev() }
	c.call(func() any {
		p, err := c.gw.PatchPiece(ctx, pieceID, patch)
		return pieceResult{seq: seq, taskID: taskID, piece: p, err: err}
	})
}

func (c *Coordinator) handlePieceResult(r pieceResult) {
	f := c.current(r.taskID, r.seq)
	if f == nil || f.compensating {
		c.log.Debug("ignoring late piece response", zap.String("task_id", r.taskID), zap.Uint64("seq", r.seq))
		return
	}
	if r.err == nil {
		c.confirm(f, &r.piece)
		return
	}

	// The remote store accepted the task patch; revert it there too before
	// the next mutation for this task is sent.
	revert := taskPatch(f.server, f.base)
	c.rollback(f, "patch piece", r.err, false)
	if revert.Empty() {
		delete(c.inflight, r.taskID)
		c.next(r.taskID)
		return
	}
	f.compensating = true
	ctx, cancel := c.callContext()
	f.cancel = cancel
	seq, taskID := f.m.seq, r.taskID
	c.call(func() any {
		_, err := c.gw.PatchTask(ctx, taskID, revert)
		return compensateResult{seq: seq, taskID: taskID, err: err}
	})
}

func (c *Coordinator) handleCompensateResult(r compensateResult) {
	f := c.current(r.taskID, r.seq)
	if f == nil || !f.compensating {
		return
	}
	if r.err != nil {
		c.log.Warn("reverting remote task failed",
			zap.String("task_id", r.taskID),
			zap.String("mutation_id", f.m.ID),
			zap.Error(r.err))
	}
	f.cancel()
	delete(c.inflight, r.taskID)
	c.next(r.taskID)
}

// confirm makes the server's version authoritative. Elapsed time is the one
// field the local copy may be ahead on.
func (c *Coordinator) confirm(f *flight, serverPiece *domain.Piece) {
	taskID := f.m.TaskID
	local, _ := c.board.Task(taskID)

	piece := serverPiece
	if piece == nil {
		piece = c.pieceFor(taskID)
	}
	merged := reconcile(f.server, local, domain.ProductionTarget(f.server, piece))

	change := board.Change{Tasks: []domain.Task{merged}}
	if serverPiece != nil {
		change.Pieces = []domain.Piece{*serverPiece}
	}
	if err := c.board.Apply(change); err != nil {
		c.log.Warn("server piece rejected by board", zap.String("task_id", taskID), zap.Error(err))
		c.board.Upsert(merged)
	}
	c.acked[taskID] = f.server.SpentTime

	f.cancel()
	delete(c.inflight, taskID)

	if f.m.Kind == KindProduce && c.notes != nil {
		c.notes.Progress(c.actor, merged, merged.Produced, domain.ProductionTarget(merged, piece))
	}
	f.m.resolve(StateConfirmed, nil)
	c.log.Debug("mutation confirmed",
		zap.String("mutation_id", f.m.ID),
		zap.String("task_id", taskID),
		zap.String("state", StateConfirmed.String()))

	c.next(taskID)
}

// rollback restores the pre-mutation task and piece in one board write and
// resolves the mutation. Elapsed time is never rolled back.
func (c *Coordinator) rollback(f *flight, op string, cause error, release bool) {
	taskID := f.m.TaskID
	restored := f.base.Clone()
	if local, ok := c.board.Task(taskID); ok && local.SpentTime > restored.SpentTime {
		restored.SpentTime = local.SpentTime
	}
	change := board.Change{Tasks: []domain.Task{restored}}
	if f.applied.Piece != nil && f.basePiece != nil {
		change.Pieces = []domain.Piece{*f.basePiece}
	}
	if err := c.board.Apply(change); err != nil {
		c.log.Error("restoring board failed", zap.String("task_id", taskID), zap.Error(err))
		c.board.Upsert(restored)
	}

	f.cancel()
	if release {
		delete(c.inflight, taskID)
	}

	rerr := &domain.ReconciliationError{MutationID: f.m.ID, TaskID: taskID, Op: op, Err: cause}
	c.log.Warn("mutation rolled back",
		zap.String("mutation_id", f.m.ID),
		zap.String("task_id", taskID),
		zap.String("state", StateRolledBack.String()),
		zap.Error(cause))
	c.fail(f.m, restored.Name, rerr)
}

// next starts the first queued mutation for a task that is not busy.
func (c *Coordinator) next(taskID string) {
	for c.inflight[taskID] == nil && len(c.queues[taskID]) > 0 {
		m := c.queues[taskID][0]
		c.queues[taskID] = c.queues[taskID][1:]
		c.start(m)
	}
	if len(c.queues[taskID]) == 0 {
		delete(c.queues, taskID)
	}
}

func (c *Coordinator) handleTick(taskID string, hours float64) {
	t, ok := c.board.Task(taskID)
	if !ok {
		c.log.Debug("tick for unknown task", zap.String("task_id", taskID))
		return
	}
	if _, seen := c.acked[taskID]; !seen {
		c.acked[taskID] = t.SpentTime
	}
	t.AddSpentTime(hours)
	c.board.Upsert(t)
}

func (c *Coordinator) startComment(m *Mutation) {
	ctx, cancel := c.callContext()
	c.comments[m.seq] = &commentFlight{m: m, cancel: cancel}
	seq, taskID, text := m.seq, m.TaskID, m.text
	c.call(func() any {
		cm, err := c.gw.PostComment(ctx, taskID, text)
		return commentResult{seq: seq, comment: cm, err: err}
	})
}

func (c *Coordinator) handleCommentResult(r commentResult) {
	cf := c.comments[r.seq]
	if cf == nil {
		return
	}
	delete(c.comments, r.seq)
	cf.cancel()
	taskID := cf.m.TaskID

	if r.err != nil {
		name := ""
		if t, ok := c.board.Task(taskID); ok {
			name = t.Name
		}
		rerr := &domain.ReconciliationError{MutationID: cf.m.ID, TaskID: taskID, Op: "post comment", Err: r.err}
		c.log.Warn("comment rejected", zap.String("task_id", taskID), zap.Error(r.err))
		c.fail(cf.m, name, rerr)
		return
	}

	if t, ok := c.board.Task(taskID); ok && !slices.Contains(t.CommentIDs, r.comment.ID) {
		t.CommentIDs = append(t.CommentIDs, r.comment.ID)
		c.board.Upsert(t)
	}
	if f := c.inflight[taskID]; f != nil && !slices.Contains(f.base.CommentIDs, r.comment.ID) {
		f.base.CommentIDs = append(f.base.CommentIDs, r.comment.ID)
	}
	cf.m.resolve(StateConfirmed, nil)
}

func (c *Coordinator) handleEvent(ev contract.Event) error {
	switch ev.Kind {
	case contract.EventTaskUpdated:
		if ev.Task == nil {
			return fmt.Errorf("%s event without task", ev.Kind)
		}
		return c.foldTask(*ev.Task)
	case contract.EventMaterialStockUpdated:
		if ev.Material == nil {
			return fmt.Errorf("%s event without material", ev.Kind)
		}
		if c.stock == nil {
			return nil
		}
		if _, err := c.stock.UpdateMaterial(*ev.Material); err != nil {
			c.log.Warn("stock update failed", zap.String("material_id", ev.Material.ID), zap.Error(err))
			return err
		}
		return nil
	case contract.EventConnectionLost:
		cause := domain.ErrConnectionLost
		if ev.Err != nil && !errors.Is(ev.Err, domain.ErrConnectionLost) {
			cause = fmt.Errorf("%w: %w", domain.ErrConnectionLost, ev.Err)
		}
		c.log.Warn("connection lost", zap.Int("in_flight", len(c.inflight)), zap.Error(ev.Err))
		c.dropAll(cause, true)
		return nil
	default:
		return fmt.Errorf("unknown event %q", ev.Kind)
	}
}

// foldTask reconciles a pushed task like a successful response. While a
// mutation is pending the pushed task becomes its rollback base and the
// optimistic view stays on the board.
func (c *Coordinator) foldTask(pushed domain.Task) error {
	local, ok := c.board.Task(pushed.ID)
	if !ok {
		err := &domain.StaleDataError{Kind: "task", ID: pushed.ID}
		c.log.Debug("ignoring push", zap.Error(err))
		return err
	}
	if acked := c.acked[pushed.ID]; pushed.SpentTime > acked {
		c.acked[pushed.ID] = pushed.SpentTime
	}

	piece := c.pieceFor(pushed.ID)
	merged := reconcile(pushed, local, domain.ProductionTarget(pushed, piece))
	if f := c.inflight[pushed.ID]; f != nil && !f.compensating {
		f.base = merged
		return nil
	}
	c.board.Upsert(merged)
	return nil
}

// dropAll resolves every pending and queued mutation to RolledBack.
func (c *Coordinator) dropAll(cause error, notifyUser bool) {
	notes := c.notes
	if !notifyUser {
		c.notes = nil
		defer func() { c.notes = notes }()
	}

	ids := make([]string, 0, len(c.inflight))
	for id := range c.inflight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		f := c.inflight[id]
		if f.compensating {
			f.cancel()
			delete(c.inflight, id)
			continue
		}
		c.rollback(f, "connection", cause, true)
	}

	qids := make([]string, 0, len(c.queues))
	for id := range c.queues {
		qids = append(qids, id)
	}
	slices.Sort(qids)
	for _, id := range qids {
		name := ""
		if t, ok := c.board.Task(id); ok {
			name = t.Name
		}
		for _, m := range c.queues[id] {
			c.fail(m, name, &domain.ReconciliationError{MutationID: m.ID, TaskID: id, Op: "queued", Err: cause})
		}
		delete(c.queues, id)
	}

	seqs := make([]uint64, 0, len(c.comments))
	for seq := range c.comments {
		seqs = append(seqs, seq)
	}
	slices.Sort(seqs)
	for _, seq := range seqs {
		cf := c.comments[seq]
		cf.cancel()
		delete(c.comments, seq)
		m := cf.m
		c.fail(m, "", &domain.ReconciliationError{MutationID: m.ID, TaskID: m.TaskID, Op: "post comment", Err: cause})
	}
}
