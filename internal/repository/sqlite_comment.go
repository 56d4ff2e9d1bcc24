package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

type SQLiteCommentRepo struct {
	db db.DBTX
}

func NewSQLiteCommentRepo(conn db.DBTX) *SQLiteCommentRepo {
	return &SQLiteCommentRepo{db: conn}
}

// Create stores c, stamping CreatedAt when it is unset.
func (r *SQLiteCommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	createdAt := nowUTC()
	if !c.CreatedAt.IsZero() {
		createdAt = formatTimestamp(c.CreatedAt)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, task_id, author_id, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.Message, createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt, err = parseTimestamp("created_at", createdAt)
	}
	return err
}

func (r *SQLiteCommentRepo) ListByTask(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, task_id, author_id, message, created_at FROM comments
		WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Comment
	for rows.Next() {
		var c domain.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if c.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return out, nil
}

var (
	_ TaskRepo     = (*SQLiteTaskRepo)(nil)
	_ PieceRepo    = (*SQLitePieceRepo)(nil)
	_ MaterialRepo = (*SQLiteMaterialRepo)(nil)
	_ ResourceRepo = (*SQLiteResourceRepo)(nil)
	_ CommentRepo  = (*SQLiteCommentRepo)(nil)
)
