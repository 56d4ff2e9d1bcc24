package testutil

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

// ErrServerRejected is a stock remote failure for scripted calls.
var ErrServerRejected = errors.New("server rejected the change")

const (
	OpPatchTask   = "PatchTask"
	OpPatchPiece  = "PatchPiece"
	OpPostComment = "PostComment"
)

// ScriptedGateway is an in-memory contract.Gateway whose writes block until
// the test resolves them. List calls answer immediately from server state.
type ScriptedGateway struct {
	mu        sync.Mutex
	tasks     map[string]domain.Task
	pieces    map[string]domain.Piece
	materials []domain.Material
	resources []domain.Resource
	comments  int
	listErr   error

	calls chan *Call
}

// Call is one pending write. Exactly one of Succeed or Fail should be
// called; later calls are no-ops.
type Call struct {
	Op         string
	ID         string
	TaskPatch  contract.TaskPatch
	PiecePatch contract.PiecePatch
	Text       string

	g    *ScriptedGateway
	once sync.Once
	out  chan callOutcome
}

type callOutcome struct {
	task    domain.Task
	piece   domain.Piece
	comment domain.Comment
	err     error
}

func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{
		tasks:  make(map[string]domain.Task),
		pieces: make(map[string]domain.Piece),
		calls:  make(chan *Call, 64),
	}
}

func (g *ScriptedGateway) PutTask(tasks ...domain.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range tasks {
		g.tasks[t.ID] = t.Clone()
	}
}

func (g *ScriptedGateway) PutPiece(pieces ...domain.Piece) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range pieces {
		g.pieces[p.ID] = p.Clone()
	}
}

func (g *ScriptedGateway) PutMaterial(materials ...domain.Material) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range materials {
		g.materials = append(g.materials, m.Clone())
	}
}

func (g *ScriptedGateway) PutResource(resources ...domain.Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, resources...)
}

// FailLists makes every List call return err.
func (g *ScriptedGateway) FailLists(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listErr = err
}

// ServerTask returns the server-side copy of a task.
func (g *ScriptedGateway) ServerTask(id string) (domain.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tasks[id]
	return t.Clone(), ok
}

func (g *ScriptedGateway) ServerPiece(id string) (domain.Piece, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pieces[id]
	return p.Clone(), ok
}

// Next waits for the next write call.
func (g *ScriptedGateway) Next(t *testing.T) *Call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a gateway call")
		return nil
	}
}

// ExpectNoCall fails the test if a write call arrives within d.
func (g *ScriptedGateway) ExpectNoCall(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-g.calls:
		t.Fatalf("unexpected gateway call %s %s", c.Op, c.ID)
	case <-time.After(d):
	}
}

func (c *Call) Fail(err error) {
	c.once.Do(func() { c.out <- callOutcome{err: err} })
}

// Succeed applies the call to server state and returns the stored entity.
func (c *Call) Succeed() {
	c.once.Do(func() { c.out <- c.g.commit(c) })
}

func (g *ScriptedGateway) commit(c *Call) callOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch c.Op {
	case OpPatchTask:
		t, ok := g.tasks[c.ID]
		if !ok {
			return callOutcome{err: fmt.Errorf("task %s: %w", c.ID, domain.ErrTaskNotFound)}
		}
		c.TaskPatch.ApplyTo(&t)
		g.tasks[c.ID] = t
		return callOutcome{task: t.Clone()}
	case OpPatchPiece:
		p, ok := g.pieces[c.ID]
		if !ok {
			return callOutcome{err: fmt.Errorf("piece %s: %w", c.ID, domain.ErrPieceNotFound)}
		}
		c.PiecePatch.ApplyTo(&p)
		g.pieces[c.ID] = p
		return callOutcome{piece: p.Clone()}
	case OpPostComment:
		t, ok := g.tasks[c.ID]
		if !ok {
			return callOutcome{err: fmt.Errorf("task %s: %w", c.ID, domain.ErrTaskNotFound)}
		}
		g.comments++
		cm := domain.Comment{ID: fmt.Sprintf("c%d", g.comments), TaskID: c.ID, Message: c.Text, CreatedAt: FixtureTime}
		t.CommentIDs = append(t.CommentIDs, cm.ID)
		g.tasks[c.ID] = t
		return callOutcome{comment: cm}
	}
	return callOutcome{err: fmt.Errorf("unknown op %s", c.Op)}
}

func (g *ScriptedGateway) await(ctx context.Context, c *Call) (callOutcome, error) {
	c.g = g
	c.out = make(chan callOutcome, 1)
	select {
	case g.calls <- c:
	case <-ctx.Done():
		return callOutcome{}, ctx.Err()
	}
	select {
	case out := <-c.out:
		return out, out.err
	case <-ctx.Done():
		return callOutcome{}, ctx.Err()
	}
}

func (g *ScriptedGateway) PatchTask(ctx context.Context, id string, patch contract.TaskPatch) (domain.Task, error) {
	out, err := g.await(ctx, &Call{Op: OpPatchTask, ID: id, TaskPatch: patch})
	return out.task, err
}

func (g *ScriptedGateway) PatchPiece(ctx context.Context, id string, patch contract.PiecePatch) (domain.Piece, error) {
	out, err := g.await(ctx, &Call{Op: OpPatchPiece, ID: id, PiecePatch: patch})
	return out.piece, err
}

func (g *ScriptedGateway) PostComment(ctx context.Context, taskID, text string) (domain.Comment, error) {
	out, err := g.await(ctx, &Call{Op: OpPostComment, ID: taskID, Text: text})
	return out.comment, err
}

func (g *ScriptedGateway) ListTasks(_ context.Context, filter contract.TaskFilter) ([]domain.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []domain.Task
	for _, t := range g.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Task) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (g *ScriptedGateway) ListPieces(context.Context) ([]domain.Piece, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]domain.Piece, 0, len(g.pieces))
	for _, p := range g.pieces {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Piece) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (g *ScriptedGateway) ListMaterials(context.Context) ([]domain.Material, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]domain.Material, len(g.materials))
	for i, m := range g.materials {
		out[i] = m.Clone()
	}
	return out, nil
}

func (g *ScriptedGateway) ListResources(context.Context) ([]domain.Resource, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return slices.Clone(g.resources), nil
}

var _ contract.Gateway = (*ScriptedGateway)(nil)
