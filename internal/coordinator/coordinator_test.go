package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/alexanderramin/shopfloor/internal/alerts"
	"github.com/alexanderramin/shopfloor/internal/board"
	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/notify"
	"github.com/alexanderramin/shopfloor/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = testutil.FixtureTime.Add(time.Hour)

type harness struct {
	c      *Coordinator
	board  *board.Store
	gw     *testutil.ScriptedGateway
	feed   *notify.Feed
	alerts *alerts.Store
	ctx    context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := board.NewStore()
	gw := testutil.NewScriptedGateway()
	feed := notify.NewFeed(notify.WithClock(func() time.Time { return testNow }))
	alertStore := alerts.NewStore(alerts.WithClock(func() time.Time { return testNow }))

	n := 0
	c := New(store, gw,
		WithNotifier(feed),
		WithStockSink(alerts.NewMonitor(alertStore, zap.NewNop())),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("m%d", n) }),
		WithActor("Operator"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return &harness{c: c, board: store, gw: gw, feed: feed, alerts: alertStore, ctx: context.Background()}
}

// seed puts tasks and pieces on both the board and the server.
func (h *harness) seed(t *testing.T, tasks []domain.Task, pieces ...domain.Piece) {
	t.Helper()
	require.NoError(t, h.board.Load(tasks, pieces, nil))
	h.gw.PutTask(tasks...)
	h.gw.PutPiece(pieces...)
}

func (h *harness) task(t *testing.T, id string) domain.Task {
	t.Helper()
	task, ok := h.board.Task(id)
	require.True(t, ok)
	return task
}

func (h *harness) piece(t *testing.T, id string) domain.Piece {
	t.Helper()
	p, ok := h.board.Piece(id)
	require.True(t, ok)
	return p
}

func waitResolved(t *testing.T, m *Mutation) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("mutation %s did not resolve", m.ID)
	}
}

func pieceTask() (domain.Task, domain.Piece) {
	task := testutil.NewTestTask("Metal Cutting", testutil.WithTaskID("t1"), testutil.WithPiece("p1"))
	piece := testutil.NewTestPiece("Engine Bracket", []string{"t1"}, testutil.WithPieceID("p1"))
	return task, piece
}

func TestMoveTask_ConfirmedServerWins(t *testing.T) {
	h := newHarness(t)
	task := testutil.NewTestTask("Assembly", testutil.WithTaskID("t1"))
	h.seed(t, []domain.Task{task})

	m, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)

	call := h.gw.Next(t)
	assert.Equal(t, testutil.OpPatchTask, call.Op)
	require.NotNil(t, call.TaskPatch.Status)
	assert.Equal(t, domain.StatusInProgress, *call.TaskPatch.Status)
	assert.Equal(t, StatePending, m.State())
	assert.Equal(t, domain.StatusInProgress, h.task(t, "t1").Status, "applied optimistically")
	assert.Equal(t, []string{"t1"}, taskIDs(h.board.ByStatus(domain.StatusInProgress)))

	call.Succeed()
	waitResolved(t, m)

	assert.Equal(t, StateConfirmed, m.State())
	assert.NoError(t, m.Err())
	assert.Equal(t, domain.StatusInProgress, h.task(t, "t1").Status)
	assert.Empty(t, h.feed.List())
}

func TestMoveTask_FailureRestoresSnapshotExactly(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	task.Status = domain.StatusInProgress
	task.Produced = 3
	task.Progress = 30
	h.seed(t, []domain.Task{task}, piece)
	beforeTask, beforePiece := h.task(t, "t1"), h.piece(t, "p1")

	m, err := h.c.MoveTask(h.ctx, "t1", domain.StatusInProgress, domain.StatusCompleted)
	require.NoError(t, err)
	call := h.gw.Next(t)

	optimistic := h.task(t, "t1")
	assert.Equal(t, domain.StatusCompleted, optimistic.Status)
	assert.Equal(t, 100, optimistic.Progress)
	assert.NotNil(t, optimistic.ActualFinishDate)
	assert.Equal(t, 100, h.piece(t, "p1").Progress)

	call.Fail(testutil.ErrServerRejected)
	waitResolved(t, m)

	assert.Equal(t, StateRolledBack, m.State())
	var rerr *domain.ReconciliationError
	require.ErrorAs(t, m.Err(), &rerr)
	assert.ErrorIs(t, m.Err(), testutil.ErrServerRejected)
	assert.Equal(t, "t1", rerr.TaskID)

	if diff := cmp.Diff(beforeTask, h.task(t, "t1")); diff != "" {
		t.Errorf("task not restored (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(beforePiece, h.piece(t, "p1")); diff != "" {
		t.Errorf("piece not restored (-want +got):\n%s", diff)
	}
	require.Len(t, h.feed.List(), 1, "exactly one failure notification")
	assert.Equal(t, notify.KindWarning, h.feed.List()[0].Kind)
}

func TestMoveTask_Validation(t *testing.T) {
	h := newHarness(t)
	task := testutil.NewTestTask("Assembly", testutil.WithTaskID("t1"))
	h.seed(t, []domain.Task{task})

	_, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusToDo)
	assert.True(t, domain.IsValidation(err))

	_, err = h.c.MoveTask(h.ctx, "t1", domain.StatusOnHold, domain.StatusInProgress)
	assert.True(t, domain.IsValidation(err), "stale from column")

	_, err = h.c.MoveTask(h.ctx, "missing", domain.StatusToDo, domain.StatusInProgress)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	h.gw.ExpectNoCall(t, 50*time.Millisecond)
	assert.Equal(t, domain.StatusToDo, h.task(t, "t1").Status)
}

func TestMoveTask_QueuedMutationsBothSucceed(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Welding", testutil.WithTaskID("t1"))})

	a, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	b, err := h.c.MoveTask(h.ctx, "t1", domain.StatusInProgress, domain.StatusOnHold)
	require.NoError(t, err)

	first := h.gw.Next(t)
	h.gw.ExpectNoCall(t, 50*time.Millisecond)
	assert.Equal(t, domain.StatusInProgress, h.task(t, "t1").Status, "second move waits for the first")

	first.Succeed()
	waitResolved(t, a)

	second := h.gw.Next(t)
	assert.Equal(t, domain.StatusOnHold, *second.TaskPatch.Status)
	second.Succeed()
	waitResolved(t, b)

	assert.Equal(t, StateConfirmed, a.State())
	assert.Equal(t, StateConfirmed, b.State())
	assert.Equal(t, domain.StatusOnHold, h.task(t, "t1").Status)
}

func TestMoveTask_QueuedMutationsBothFail(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Welding", testutil.WithTaskID("t1"))})

	a, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	b, err := h.c.MoveTask(h.ctx, "t1", domain.StatusInProgress, domain.StatusOnHold)
	require.NoError(t, err)

	h.gw.Next(t).Fail(testutil.ErrServerRejected)
	waitResolved(t, a)
	waitResolved(t, b)

	assert.Equal(t, StateRolledBack, a.State())
	assert.Equal(t, StateRolledBack, b.State())
	assert.Equal(t, domain.StatusToDo, h.task(t, "t1").Status)
	assert.Len(t, h.feed.List(), 2, "one notification per rolled-back mutation")
	h.gw.ExpectNoCall(t, 50*time.Millisecond)
}

func TestAdjustProducedQuantity_PartialProgress(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)

	m, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 4)
	require.NoError(t, err)

	taskCall := h.gw.Next(t)
	assert.Equal(t, testutil.OpPatchTask, taskCall.Op)
	assert.Equal(t, 40, *taskCall.TaskPatch.Progress)
	assert.Equal(t, 4, *taskCall.TaskPatch.Produced)
	assert.Equal(t, domain.StatusInProgress, *taskCall.TaskPatch.Status)
	assert.Equal(t, 40, h.piece(t, "p1").Progress, "piece applied together with task")
	taskCall.Succeed()

	pieceCall := h.gw.Next(t)
	assert.Equal(t, testutil.OpPatchPiece, pieceCall.Op)
	assert.Equal(t, "p1", pieceCall.ID)
	assert.Equal(t, 40, *pieceCall.PiecePatch.Progress)
	pieceCall.Succeed()
	waitResolved(t, m)

	got := h.task(t, "t1")
	assert.Equal(t, StateConfirmed, m.State())
	assert.Equal(t, 4, got.Produced)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Nil(t, got.ActualFinishDate)

	notes := h.feed.List()
	require.Len(t, notes, 1)
	assert.Equal(t, `Operator: 4 out of 10 pieces completed on "Metal Cutting"`, notes[0].Message)
}

func TestAdjustProducedQuantity_FourThenSixBothSucceed(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)

	a, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 4)
	require.NoError(t, err)
	b, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 6)
	require.NoError(t, err, "validated against the projected count of 4")

	h.gw.Next(t).Succeed()
	h.gw.Next(t).Succeed()
	waitResolved(t, a)

	call := h.gw.Next(t)
	assert.Equal(t, 10, *call.TaskPatch.Produced)
	call.Succeed()
	h.gw.Next(t).Succeed()
	waitResolved(t, b)

	got := h.task(t, "t1")
	assert.Equal(t, 10, got.Produced)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.ActualFinishDate)
	assert.Equal(t, testNow, *got.ActualFinishDate)

	p := h.piece(t, "p1")
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, domain.StatusCompleted, p.Status)
}

func TestAdjustProducedQuantity_FourThenSixBothFail(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)
	beforeTask, beforePiece := h.task(t, "t1"), h.piece(t, "p1")

	a, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 4)
	require.NoError(t, err)
	b, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 6)
	require.NoError(t, err)

	h.gw.Next(t).Fail(testutil.ErrServerRejected)
	waitResolved(t, a)
	// The second change now starts from 0.
	call := h.gw.Next(t)
	assert.Equal(t, 6, *call.TaskPatch.Produced)
	call.Fail(testutil.ErrServerRejected)
	waitResolved(t, b)

	if diff := cmp.Diff(beforeTask, h.task(t, "t1")); diff != "" {
		t.Errorf("task not restored (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(beforePiece, h.piece(t, "p1")); diff != "" {
		t.Errorf("piece not restored (-want +got):\n%s", diff)
	}
}

func TestAdjustProducedQuantity_PieceFailureRevertsBoth(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)
	beforeTask, beforePiece := h.task(t, "t1"), h.piece(t, "p1")

	m, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 4)
	require.NoError(t, err)
	h.gw.Next(t).Succeed()
	h.gw.Next(t).Fail(testutil.ErrServerRejected)
	waitResolved(t, m)

	assert.Equal(t, StateRolledBack, m.State())
	if diff := cmp.Diff(beforeTask, h.task(t, "t1")); diff != "" {
		t.Errorf("task not restored (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(beforePiece, h.piece(t, "p1")); diff != "" {
		t.Errorf("piece not restored (-want +got):\n%s", diff)
	}

	revert := h.gw.Next(t)
	assert.Equal(t, testutil.OpPatchTask, revert.Op)
	assert.Equal(t, 0, *revert.TaskPatch.Produced)
	revert.Succeed()

	server, _ := h.gw.ServerTask("t1")
	assert.Equal(t, 0, server.Produced)
	assert.Len(t, h.feed.List(), 1)
}

func TestAdjustProducedQuantity_QueuedWaitsForCompensation(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)

	a, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 4)
	require.NoError(t, err)
	b, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 1)
	require.NoError(t, err)

	h.gw.Next(t).Succeed()
	h.gw.Next(t).Fail(testutil.ErrServerRejected)
	waitResolved(t, a)

	revert := h.gw.Next(t)
	h.gw.ExpectNoCall(t, 50*time.Millisecond)
	revert.Succeed()

	next := h.gw.Next(t)
	assert.Equal(t, 1, *next.TaskPatch.Produced)
	next.Succeed()
	h.gw.Next(t).Succeed()
	waitResolved(t, b)
	assert.Equal(t, 1, h.task(t, "t1").Produced)
}

func TestAdjustProducedQuantity_OutOfRangeRejectedSynchronously(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)

	_, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 11)
	assert.True(t, domain.IsValidation(err))

	_, err = h.c.AdjustProducedQuantity(h.ctx, "t1", -1)
	assert.True(t, domain.IsValidation(err))

	_, err = h.c.AdjustProducedQuantity(h.ctx, "t1", 0)
	assert.True(t, domain.IsValidation(err))

	h.gw.ExpectNoCall(t, 50*time.Millisecond)
	assert.Equal(t, 0, h.task(t, "t1").Produced)
	assert.Empty(t, h.feed.List())
}

func TestAdjustProducedQuantity_ProjectionIncludesQueue(t *testing.T) {
	h := newHarness(t)
	task, piece := pieceTask()
	h.seed(t, []domain.Task{task}, piece)

	_, err := h.c.AdjustProducedQuantity(h.ctx, "t1", 4)
	require.NoError(t, err)
	_, err = h.c.AdjustProducedQuantity(h.ctx, "t1", 5)
	require.NoError(t, err)

	_, err = h.c.AdjustProducedQuantity(h.ctx, "t1", 2)
	assert.True(t, domain.IsValidation(err), "4+5+2 exceeds the target")
}

func TestTick_RidesAlongWithNextPatch(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Painting", testutil.WithTaskID("t1"), testutil.WithSpentTime(1))})

	for range 3 {
		h.c.Tick("t1")
	}
	m, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)

	call := h.gw.Next(t)
	require.NotNil(t, call.TaskPatch.SpentTime)
	assert.InDelta(t, 1+3*domain.SecondInHours, *call.TaskPatch.SpentTime, 1e-12)
	call.Succeed()
	waitResolved(t, m)

	m2, err := h.c.MoveTask(h.ctx, "t1", domain.StatusInProgress, domain.StatusOnHold)
	require.NoError(t, err)
	call = h.gw.Next(t)
	assert.Nil(t, call.TaskPatch.SpentTime, "nothing unsent")
	call.Succeed()
	waitResolved(t, m2)
}

func TestTick_SurvivesRollback(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))})

	m, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	call := h.gw.Next(t)
	h.c.Tick("t1")
	h.c.Tick("t1")
	call.Fail(testutil.ErrServerRejected)
	waitResolved(t, m)

	got := h.task(t, "t1")
	assert.Equal(t, domain.StatusToDo, got.Status)
	assert.InDelta(t, 2*domain.SecondInHours, got.SpentTime, 1e-12)
}

func TestConfirm_KeepsLocalSpentTimeWhenAhead(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))})

	m, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	call := h.gw.Next(t)
	h.c.Tick("t1")
	call.Succeed()
	waitResolved(t, m)

	assert.InDelta(t, domain.SecondInHours, h.task(t, "t1").SpentTime, 1e-12)
}

func TestFold_UnknownTaskIsStale(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))})

	err := h.c.Fold(h.ctx, contract.TaskUpdated(domain.Task{ID: "ghost", Status: domain.StatusCompleted}))
	var stale *domain.StaleDataError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "ghost", stale.ID)

	_, ok := h.board.Task("ghost")
	assert.False(t, ok)
	assert.Equal(t, 1, h.board.Snapshot().Len())
}

func TestFold_TaskUpdatedReplacesIdleTask(t *testing.T) {
	h := newHarness(t)
	task := testutil.NewTestTask("Painting", testutil.WithTaskID("t1"), testutil.WithSpentTime(2))
	h.seed(t, []domain.Task{task})

	pushed := task.Clone()
	pushed.Status = domain.StatusOnHold
	pushed.SpentTime = 1
	require.NoError(t, h.c.Fold(h.ctx, contract.TaskUpdated(pushed)))

	got := h.task(t, "t1")
	assert.Equal(t, domain.StatusOnHold, got.Status)
	assert.InDelta(t, 2.0, got.SpentTime, 1e-12, "elapsed time never decreases")
}

func TestFold_PushDuringPendingBecomesRollbackBase(t *testing.T) {
	h := newHarness(t)
	task := testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))
	h.seed(t, []domain.Task{task})

	m, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	call := h.gw.Next(t)

	pushed := task.Clone()
	pushed.Name = "Painting (2 coats)"
	require.NoError(t, h.c.Fold(h.ctx, contract.TaskUpdated(pushed)))
	assert.Equal(t, domain.StatusInProgress, h.task(t, "t1").Status, "optimistic view kept")
	assert.Equal(t, "Painting", h.task(t, "t1").Name)

	call.Fail(testutil.ErrServerRejected)
	waitResolved(t, m)

	got := h.task(t, "t1")
	assert.Equal(t, domain.StatusToDo, got.Status)
	assert.Equal(t, "Painting (2 coats)", got.Name)
}

func TestFold_MaterialUpdateRaisesAlert(t *testing.T) {
	h := newHarness(t)
	bar := testutil.NewTestBar("Steel Bar", 0, 100)

	require.NoError(t, h.c.Fold(h.ctx, contract.StockUpdated(bar)))

	list := h.alerts.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.AlertCriticalStock, list[0].Type)
	assert.Equal(t, "Steel Bar (S235) completely out of stock", list[0].Message)
}

func TestFold_ConnectionLostResolvesEverything(t *testing.T) {
	h := newHarness(t)
	t1 := testutil.NewTestTask("Cutting", testutil.WithTaskID("t1"))
	t2 := testutil.NewTestTask("Drilling", testutil.WithTaskID("t2"))
	h.seed(t, []domain.Task{t1, t2})

	a, err := h.c.MoveTask(h.ctx, "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	b, err := h.c.MoveTask(h.ctx, "t1", domain.StatusInProgress, domain.StatusCompleted)
	require.NoError(t, err)
	c2, err := h.c.MoveTask(h.ctx, "t2", domain.StatusToDo, domain.StatusOnHold)
	require.NoError(t, err)
	late := h.gw.Next(t)
	h.gw.Next(t)

	require.NoError(t, h.c.Fold(h.ctx, contract.ConnectionLost(errors.New("socket closed"))))
	for _, m := range []*Mutation{a, b, c2} {
		waitResolved(t, m)
		assert.Equal(t, StateRolledBack, m.State())
		assert.ErrorIs(t, m.Err(), domain.ErrConnectionLost)
	}
	assert.Equal(t, domain.StatusToDo, h.task(t, "t1").Status)
	assert.Equal(t, domain.StatusToDo, h.task(t, "t2").Status)

	// A response arriving after the loss is ignored.
	late.Succeed()
	h.gw.ExpectNoCall(t, 50*time.Millisecond)
	assert.Equal(t, domain.StatusToDo, h.task(t, "t1").Status)
}

func TestAddComment_AttachesReturnedID(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))})

	_, err := h.c.AddComment(h.ctx, "t1", "   ")
	assert.True(t, domain.IsValidation(err))

	m, err := h.c.AddComment(h.ctx, "t1", "primer applied")
	require.NoError(t, err)
	call := h.gw.Next(t)
	assert.Equal(t, testutil.OpPostComment, call.Op)
	assert.Equal(t, "primer applied", call.Text)
	call.Succeed()
	waitResolved(t, m)

	assert.Equal(t, StateConfirmed, m.State())
	assert.Equal(t, []string{"c1"}, h.task(t, "t1").CommentIDs)
}

func TestAddComment_FailureNotifies(t *testing.T) {
	h := newHarness(t)
	h.seed(t, []domain.Task{testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))})

	m, err := h.c.AddComment(h.ctx, "t1", "primer applied")
	require.NoError(t, err)
	h.gw.Next(t).Fail(testutil.ErrServerRejected)
	waitResolved(t, m)

	assert.Equal(t, StateRolledBack, m.State())
	assert.Empty(t, h.task(t, "t1").CommentIDs)
	assert.Len(t, h.feed.List(), 1)
}

func TestRun_ShutdownResolvesPending(t *testing.T) {
	store := board.NewStore()
	gw := testutil.NewScriptedGateway()
	task := testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))
	require.NoError(t, store.Load([]domain.Task{task}, nil, nil))
	gw.PutTask(task)

	c := New(store, gw)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	m, err := c.MoveTask(context.Background(), "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	gw.Next(t)

	cancel()
	require.NoError(t, <-done)
	waitResolved(t, m)
	assert.ErrorIs(t, m.Err(), domain.ErrSessionClosed)

	_, err = c.MoveTask(context.Background(), "t1", domain.StatusToDo, domain.StatusInProgress)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.Error(t, c.Run(context.Background()), "a coordinator runs once")
}

func TestCallTimeout_RollsBack(t *testing.T) {
	store := board.NewStore()
	gw := testutil.NewScriptedGateway()
	task := testutil.NewTestTask("Painting", testutil.WithTaskID("t1"))
	require.NoError(t, store.Load([]domain.Task{task}, nil, nil))
	gw.PutTask(task)

	c := New(store, gw, WithCallTimeout(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	m, err := c.MoveTask(context.Background(), "t1", domain.StatusToDo, domain.StatusInProgress)
	require.NoError(t, err)
	gw.Next(t)

	waitResolved(t, m)
	assert.Equal(t, StateRolledBack, m.State())
	assert.ErrorIs(t, m.Err(), context.DeadlineExceeded)
	restored, ok := store.Task("t1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusToDo, restored.Status)
}

func TestMutation_Wait(t *testing.T) {
	m := newMutation("m1", "t1", KindMove)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)

	require.True(t, m.resolve(StateConfirmed, nil))
	assert.False(t, m.resolve(StateRolledBack, errors.New("late")), "resolves once")
	assert.NoError(t, m.Wait(context.Background()))
	assert.Equal(t, "confirmed", m.State().String())
}

func taskIDs(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
