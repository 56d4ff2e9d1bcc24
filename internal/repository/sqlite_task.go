package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

// taskColumns is the canonical SELECT column list for tasks.
const taskColumns = `t.id, t.name, t.description, t.estimated_time, t.spent_time,
		t.quantity, t.produced, t.progress, t.status, t.piece_id,
		t.due_date, t.actual_finish_date, t.created_by, t.created_at, t.updated_at`

type SQLiteTaskRepo struct {
	db db.DBTX
}

func NewSQLiteTaskRepo(conn db.DBTX) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: conn}
}

func (r *SQLiteTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	query := `INSERT INTO tasks (id, name, description, estimated_time, spent_time,
		quantity, produced, progress, status, piece_id,
		due_date, actual_finish_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.Name,
		t.Description,
		t.EstimatedTime,
		t.SpentTime,
		t.Quantity,
		t.Produced,
		t.Progress,
		string(t.Status),
		nullableString(t.PieceID),
		zeroableTimeToString(t.DueDate),
		nullableTimeToString(t.ActualFinishDate, timestampLayout),
		t.CreatedBy,
		formatTimestamp(t.CreatedAt),
		formatTimestamp(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return r.replaceResources(ctx, t.ID, t.ResourceIDs)
}

func (r *SQLiteTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	tasks, err := r.query(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return tasks[0], nil
}

// List returns the matching tasks ordered by due date, then ID. Tasks with
// no due date sort first.
func (r *SQLiteTaskRepo) List(ctx context.Context, q TaskQuery) ([]*domain.Task, error) {
	var where []string
	var args []any
	if q.ResourceID != "" {
		where = append(where, `EXISTS (SELECT 1 FROM task_resources tr WHERE tr.task_id = t.id AND tr.resource_id = ?)`)
		args = append(args, q.ResourceID)
	}
	if q.PieceID != "" {
		where = append(where, `t.piece_id = ?`)
		args = append(args, q.PieceID)
	}
	if q.Status != "" {
		where = append(where, `t.status = ?`)
		args = append(args, string(q.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY COALESCE(t.due_date, ''), t.id`
	return r.query(ctx, query, args...)
}

// Update rewrites every column and the resource assignment of t.
func (r *SQLiteTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	query := `UPDATE tasks SET name = ?, description = ?, estimated_time = ?, spent_time = ?,
		quantity = ?, produced = ?, progress = ?, status = ?, piece_id = ?,
		due_date = ?, actual_finish_date = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		t.Name,
		t.Description,
		t.EstimatedTime,
		t.SpentTime,
		t.Quantity,
		t.Produced,
		t.Progress,
		string(t.Status),
		nullableString(t.PieceID),
		zeroableTimeToString(t.DueDate),
		nullableTimeToString(t.ActualFinishDate, timestampLayout),
		formatTimestamp(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return r.replaceResources(ctx, t.ID, t.ResourceIDs)
}

func (r *SQLiteTaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteTaskRepo) replaceResources(ctx context.Context, taskID string, resourceIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_resources WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clearing task resources: %w", err)
	}
	for i, rid := range resourceIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO task_resources (task_id, resource_id, position) VALUES (?, ?, ?)`,
			taskID, rid, i)
		if err != nil {
			return fmt.Errorf("assigning resource %s: %w", rid, err)
		}
	}
	return nil
}

func (r *SQLiteTaskRepo) query(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := r.attachLinks(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachLinks fills ResourceIDs and CommentIDs with one query each.
func (r *SQLiteTaskRepo) attachLinks(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Task, len(tasks))
	ids := make([]any, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = t
		ids[i] = t.ID
	}
	in := placeholders(len(ids))

	link := func(query, what string, add func(t *domain.Task, id string)) error {
		rows, err := r.db.QueryContext(ctx, query, ids...)
		if err != nil {
			return fmt.Errorf("loading task %s: %w", what, err)
		}
		defer rows.Close()
		for rows.Next() {
			var taskID, id string
			if err := rows.Scan(&taskID, &id); err != nil {
				return fmt.Errorf("scanning task %s: %w", what, err)
			}
			add(byID[taskID], id)
		}
		return rows.Err()
	}

	if err := link(`SELECT task_id, resource_id FROM task_resources
		WHERE task_id IN (`+in+`) ORDER BY task_id, position`, "resources",
		func(t *domain.Task, id string) { t.ResourceIDs = append(t.ResourceIDs, id) }); err != nil {
		return err
	}
	return link(`SELECT task_id, id FROM comments
		WHERE task_id IN (`+in+`) ORDER BY task_id, created_at, id`, "comments",
		func(t *domain.Task, id string) { t.CommentIDs = append(t.CommentIDs, id) })
}

func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var status string
	var pieceID, dueDate, finished sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&t.ID, &t.Name, &t.Description, &t.EstimatedTime, &t.SpentTime,
		&t.Quantity, &t.Produced, &t.Progress, &status, &pieceID,
		&dueDate, &finished, &t.CreatedBy, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.Status = domain.TaskStatus(status)
	t.PieceID = pieceID.String
	if d := parseNullableTime(dueDate, timestampLayout); d != nil {
		t.DueDate = *d
	}
	t.ActualFinishDate = parseNullableTime(finished, timestampLayout)
	if t.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
