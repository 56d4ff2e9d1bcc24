package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMove_IntoCompletedFillsTarget(t *testing.T) {
	task, piece := newPieceTask()
	task.Status = StatusInProgress
	task.Produced = 4
	task.Progress = 40

	out, err := ApplyMove(task, &piece, StatusInProgress, StatusCompleted, testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Task.Status)
	assert.Equal(t, 100, out.Task.Progress)
	assert.Equal(t, 10, out.Task.Produced)
	require.NotNil(t, out.Task.ActualFinishDate)
	assert.Equal(t, testNow, *out.Task.ActualFinishDate)

	require.NotNil(t, out.Piece)
	assert.Equal(t, 100, out.Piece.Progress)
	assert.Equal(t, StatusCompleted, out.Piece.Status)

	assert.Equal(t, 4, task.Produced, "input untouched")
}

func TestApplyMove_PlainColumnChangeLeavesPiece(t *testing.T) {
	task, piece := newPieceTask()
	task.Status = StatusToDo

	out, err := ApplyMove(task, &piece, StatusToDo, StatusOnHold, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusOnHold, out.Task.Status)
	assert.Nil(t, out.Piece)
	assert.Nil(t, out.Task.ActualFinishDate)
}

func TestApplyMove_LeavingCompletedClearsFinishDate(t *testing.T) {
	task, piece := newPieceTask()
	finished := testNow
	task.Status = StatusCompleted
	task.Progress = 100
	task.Produced = 7
	task.ActualFinishDate = &finished

	out, err := ApplyMove(task, &piece, StatusCompleted, StatusInProgress, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Task.Status)
	assert.Nil(t, out.Task.ActualFinishDate)
	assert.Equal(t, 70, out.Task.Progress)
	require.NotNil(t, out.Piece)
	assert.Equal(t, 70, out.Piece.Progress)
}

func TestApplyMove_LeavingCompletedWithTargetMetRejected(t *testing.T) {
	tests := []struct {
		name     string
		target   int
		produced int
	}{
		{"target produced", 10, 10},
		{"rounds up to 100", 200, 199},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, piece := newPieceTask()
			task.Quantity, piece.Quantity = tt.target, tt.target
			task.Status = StatusCompleted
			task.Progress = 100
			task.Produced = tt.produced

			_, err := ApplyMove(task, &piece, StatusCompleted, StatusInProgress, testNow)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestApplyMove_LeavingCompletedJustBelowRounding(t *testing.T) {
	task, piece := newPieceTask()
	task.Quantity, piece.Quantity = 200, 200
	task.Status = StatusCompleted
	task.Progress = 100
	task.Produced = 198

	out, err := ApplyMove(task, &piece, StatusCompleted, StatusInProgress, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Task.Status)
	assert.Equal(t, 99, out.Task.Progress)
}

func TestApplyProductionThenMove_KeepsCompletedAtFullProgress(t *testing.T) {
	task, piece := newPieceTask()
	task.Quantity, piece.Quantity = 200, 200
	task.Status = StatusInProgress

	done, err := ApplyProduction(task, &piece, 199, testNow)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Task.Status)
	require.Equal(t, 100, done.Task.Progress)

	_, err = ApplyMove(done.Task, done.Piece, StatusCompleted, StatusInProgress, testNow)
	assert.True(t, IsValidation(err))
}

func TestApplyMove_Validation(t *testing.T) {
	task, _ := newPieceTask()
	task.Status = StatusToDo

	tests := []struct {
		name     string
		from, to TaskStatus
	}{
		{"same column", StatusToDo, StatusToDo},
		{"stale from", StatusInProgress, StatusOnHold},
		{"unknown to", StatusToDo, TaskStatus("Archived")},
		{"unknown from", TaskStatus(""), StatusToDo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyMove(task, nil, tt.from, tt.to, testNow)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestApplyMove_WithoutTargetIntoAndOutOfCompleted(t *testing.T) {
	task := Task{ID: "t9", Status: StatusInProgress}

	done, err := ApplyMove(task, nil, StatusInProgress, StatusCompleted, testNow)
	require.NoError(t, err)
	assert.Equal(t, 100, done.Task.Progress)
	assert.Equal(t, 0, done.Task.Produced)

	back, err := ApplyMove(done.Task, nil, StatusCompleted, StatusInProgress, testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Task.Progress)
}
