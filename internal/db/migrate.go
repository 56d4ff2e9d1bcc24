package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate brings the schema up to date. Every statement is idempotent, so it
// is safe to run on each start.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN has no IF NOT EXISTS form.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillProduced(db); err != nil {
		return fmt.Errorf("backfilling produced quantities: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		type         TEXT NOT NULL CHECK(type IN ('Person','Machine')),
		is_available INTEGER NOT NULL DEFAULT 1,
		skills       TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS materials (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		type             TEXT NOT NULL DEFAULT '',
		shape            TEXT NOT NULL CHECK(shape IN ('Cylindrical Bar','Plate')),
		quantity         REAL NOT NULL DEFAULT 0,
		available_length REAL CHECK(available_length IS NULL OR available_length >= 0),
		min_length       REAL,
		available_area   REAL CHECK(available_area IS NULL OR available_area >= 0),
		min_area         REAL,
		diameter         REAL,
		length           REAL,
		x                REAL,
		y                REAL,
		thickness        REAL,
		last_updated     TEXT NOT NULL,
		created_at       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pieces (
		id                TEXT PRIMARY KEY,
		reference         TEXT NOT NULL UNIQUE,
		name              TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		material_id       TEXT REFERENCES materials(id) ON DELETE SET NULL,
		material_quantity REAL NOT NULL DEFAULT 0,
		quantity          INTEGER NOT NULL DEFAULT 0 CHECK(quantity >= 0),
		progress          INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
		status            TEXT NOT NULL DEFAULT 'To Do'
		                  CHECK(status IN ('To Do','In Progress','Completed','On Hold')),
		project_id        TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		estimated_time     REAL NOT NULL DEFAULT 0,
		spent_time         REAL NOT NULL DEFAULT 0 CHECK(spent_time >= 0),
		quantity           INTEGER NOT NULL DEFAULT 0 CHECK(quantity >= 0),
		progress           INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
		status             TEXT NOT NULL DEFAULT 'To Do'
		                   CHECK(status IN ('To Do','In Progress','Completed','On Hold')),
		piece_id           TEXT REFERENCES pieces(id) ON DELETE SET NULL,
		due_date           TEXT,
		actual_finish_date TEXT,
		created_by         TEXT NOT NULL DEFAULT '',
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,
	// -1 marks rows written before the counter existed; see migrateBackfillProduced.
	`ALTER TABLE tasks ADD COLUMN produced INTEGER NOT NULL DEFAULT -1`,
	`CREATE TABLE IF NOT EXISTS task_resources (
		task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (task_id, resource_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		author_id  TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_piece ON tasks(piece_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_task_resources_resource ON task_resources(resource_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pieces_material ON pieces(material_id)`,
}

// migrateBackfillProduced derives the produced counter of older rows from
// their stored progress: floor(progress/100 * target), where the target is
// the piece quantity when the task has a piece and the task quantity
// otherwise.
func migrateBackfillProduced(db *sql.DB) error {
	_, err := db.Exec(`UPDATE tasks SET produced = (
			progress * COALESCE(
				(SELECT p.quantity FROM pieces p WHERE p.id = tasks.piece_id),
				tasks.quantity
			)
		) / 100
		WHERE produced < 0`)
	return err
}
