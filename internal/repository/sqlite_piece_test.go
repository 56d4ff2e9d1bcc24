package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPieceRepo_RoundTripWithTasks(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	pieces := NewSQLitePieceRepo(database)
	tasks := NewSQLiteTaskRepo(database)
	materials := NewSQLiteMaterialRepo(database)

	bar := testutil.NewTestBar("Round 40", 1200, 300)
	require.NoError(t, materials.Create(ctx, &bar))

	piece := testutil.NewTestPiece("Shaft", nil, testutil.WithMaterial(bar.ID, 250))
	piece.ProjectID = "prj-7"
	require.NoError(t, pieces.Create(ctx, &piece))

	first := testutil.NewTestTask("Saw", testutil.WithPiece(piece.ID))
	second := testutil.NewTestTask("Turn", testutil.WithPiece(piece.ID))
	second.CreatedAt = first.CreatedAt.Add(1)
	require.NoError(t, tasks.Create(ctx, &first))
	require.NoError(t, tasks.Create(ctx, &second))

	got, err := pieces.GetByID(ctx, piece.ID)
	require.NoError(t, err)
	piece.TaskIDs = []string{first.ID, second.ID}
	assert.Equal(t, piece, *got)

	byRef, err := pieces.GetByReference(ctx, piece.Reference)
	require.NoError(t, err)
	assert.Equal(t, piece.ID, byRef.ID)

	gotBar, err := materials.GetByID(ctx, bar.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{piece.ID}, gotBar.PieceIDs)
}

func TestPieceRepo_UpdateProgress(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	pieces := NewSQLitePieceRepo(database)

	piece := testutil.NewTestPiece("Plate", nil)
	require.NoError(t, pieces.Create(ctx, &piece))

	piece.Progress = 60
	piece.Status = domain.StatusInProgress
	require.NoError(t, pieces.Update(ctx, &piece))

	got, err := pieces.GetByID(ctx, piece.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Progress)
	assert.Equal(t, domain.StatusInProgress, got.Status)
}

func TestPieceRepo_DeleteUnlinksTasks(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	pieces := NewSQLitePieceRepo(database)
	tasks := NewSQLiteTaskRepo(database)

	piece := testutil.NewTestPiece("Gear", nil)
	require.NoError(t, pieces.Create(ctx, &piece))
	task := testutil.NewTestTask("Hob", testutil.WithPiece(piece.ID))
	require.NoError(t, tasks.Create(ctx, &task))

	require.NoError(t, pieces.Delete(ctx, piece.ID))

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PieceID)
	_, err = pieces.GetByID(ctx, piece.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPieceRepo_ListOrderedByReference(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	pieces := NewSQLitePieceRepo(database)

	b := testutil.NewTestPiece("B", nil)
	b.Reference = "REF-B"
	a := testutil.NewTestPiece("A", nil)
	a.Reference = "REF-A"
	require.NoError(t, pieces.Create(ctx, &b))
	require.NoError(t, pieces.Create(ctx, &a))

	got, err := pieces.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "REF-A", got[0].Reference)
	assert.Equal(t, "REF-B", got[1].Reference)
}
