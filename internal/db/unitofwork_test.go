package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openUoW(t *testing.T) *db.SQLiteUnitOfWork {
	t.Helper()
	database, err := db.OpenDB(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return db.NewSQLiteUnitOfWork(database)
}

func insertResource(ctx context.Context, tx db.DBTX, id, name string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO resources (id, name, type, created_at, updated_at) VALUES (?, ?, 'Machine', 'x', 'x')`,
		id, name)
	return err
}

func resourceName(t *testing.T, uow *db.SQLiteUnitOfWork, id string) (string, bool) {
	t.Helper()
	var name string
	var found bool
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		err := tx.QueryRowContext(ctx, `SELECT name FROM resources WHERE id = ?`, id).Scan(&name)
		found = err == nil
		return nil
	})
	require.NoError(t, err)
	return name, found
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	uow := openUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		return insertResource(ctx, tx, "r1", "Lathe")
	})
	require.NoError(t, err)

	name, found := resourceName(t, uow, "r1")
	assert.True(t, found)
	assert.Equal(t, "Lathe", name)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	uow := openUoW(t)
	errBoom := errors.New("saw jammed")

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertResource(ctx, tx, "r1", "Lathe"); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, found := resourceName(t, uow, "r1")
	assert.False(t, found, "first write is undone with the failing one")
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	uow := openUoW(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertResource(ctx, tx, "r1", "Lathe")
			panic("boom")
		})
	})

	_, found := resourceName(t, uow, "r1")
	assert.False(t, found)
}
