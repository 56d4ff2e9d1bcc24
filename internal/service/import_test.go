package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/importer"
	"github.com/alexanderramin/shopfloor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gatewaySeed), 0o644))

	gw := NewLocalGateway(testutil.NewTestDB(t))
	res, err := gw.ImportSeedFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{ResourceCount: 1, MaterialCount: 1, PieceCount: 1, TaskCount: 2}, res)
}

func TestImportSeed_ValidationErrorsWriteNothing(t *testing.T) {
	gw := NewLocalGateway(testutil.NewTestDB(t))
	seed, err := importer.ParseSeed([]byte("tasks:\n  - {ref: t, piece_ref: nope}\n"))
	require.NoError(t, err)

	_, err = gw.ImportSeed(context.Background(), seed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed validation failed")
	assert.Contains(t, err.Error(), `piece_ref "nope" not found`)

	tasks, err := gw.ListTasks(context.Background(), contract.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestImportSeed_RollsBackOnWriteFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	errDisk := errors.New("disk full")
	// Exec 1 is the resource, 2 the material, 3 the piece; fail on the first task.
	gw := NewLocalGateway(database,
		WithUnitOfWork(&testutil.FailOnNthExecUoW{DB: database, FailOn: 4, Err: errDisk}))

	seed, err := importer.ParseSeed([]byte(gatewaySeed))
	require.NoError(t, err)
	_, err = gw.ImportSeed(context.Background(), seed)
	require.ErrorIs(t, err, errDisk)

	ctx := context.Background()
	pieces, err := gw.ListPieces(ctx)
	require.NoError(t, err)
	assert.Empty(t, pieces)
	resources, err := gw.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}
