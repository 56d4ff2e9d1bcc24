package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A database written before tasks carried a produced counter gets the
// column added and filled in from the stored progress.
func TestMigrate_UpgradeBackfillsProduced(t *testing.T) {
	db, err := sql.Open("sqlite", MemoryPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	legacy := []string{
		`CREATE TABLE pieces (
			id                TEXT PRIMARY KEY,
			reference         TEXT NOT NULL UNIQUE,
			name              TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			material_id       TEXT,
			material_quantity REAL NOT NULL DEFAULT 0,
			quantity          INTEGER NOT NULL DEFAULT 0,
			progress          INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL DEFAULT 'To Do',
			project_id        TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		)`,
		`CREATE TABLE tasks (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			estimated_time     REAL NOT NULL DEFAULT 0,
			spent_time         REAL NOT NULL DEFAULT 0,
			quantity           INTEGER NOT NULL DEFAULT 0,
			progress           INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL DEFAULT 'To Do',
			piece_id           TEXT,
			due_date           TEXT,
			actual_finish_date TEXT,
			created_by         TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL
		)`,
		`INSERT INTO pieces (id, reference, name, quantity, created_at, updated_at)
			VALUES ('p1', 'REF-1', 'Flange', 10, 'x', 'x')`,
		// 45% of the piece's 10 units.
		`INSERT INTO tasks (id, name, quantity, progress, piece_id, created_at, updated_at)
			VALUES ('t1', 'Mill', 3, 45, 'p1', 'x', 'x')`,
		// No piece: 50% of the task's own 7 units.
		`INSERT INTO tasks (id, name, quantity, progress, created_at, updated_at)
			VALUES ('t2', 'Deburr', 7, 50, 'x', 'x')`,
		`INSERT INTO tasks (id, name, quantity, progress, created_at, updated_at)
			VALUES ('t3', 'Paint', 0, 80, 'x', 'x')`,
	}
	for _, s := range legacy {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}

	require.NoError(t, Migrate(db))

	for id, want := range map[string]int{"t1": 4, "t2": 3, "t3": 0} {
		var produced int
		require.NoError(t, db.QueryRow(`SELECT produced FROM tasks WHERE id = ?`, id).Scan(&produced))
		assert.Equal(t, want, produced, id)
	}

	// Running again leaves backfilled values alone.
	_, err = db.Exec(`UPDATE tasks SET produced = 9 WHERE id = 't1'`)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	var produced int
	require.NoError(t, db.QueryRow(`SELECT produced FROM tasks WHERE id = 't1'`).Scan(&produced))
	assert.Equal(t, 9, produced)
}
