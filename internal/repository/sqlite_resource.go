package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

const resourceColumns = `id, name, type, is_available, skills, created_at, updated_at`

type SQLiteResourceRepo struct {
	db db.DBTX
}

func NewSQLiteResourceRepo(conn db.DBTX) *SQLiteResourceRepo {
	return &SQLiteResourceRepo{db: conn}
}

func (r *SQLiteResourceRepo) Create(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Name, string(res.Type), boolToInt(res.IsAvailable), joinList(res.Skills),
		formatTimestamp(res.CreatedAt), formatTimestamp(res.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting resource: %w", err)
	}
	return nil
}

func (r *SQLiteResourceRepo) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	return scanResource(r.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id))
}

func (r *SQLiteResourceRepo) List(ctx context.Context) ([]*domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	var out []*domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resources: %w", err)
	}
	return out, nil
}

func (r *SQLiteResourceRepo) Update(ctx context.Context, res *domain.Resource) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE resources SET name = ?, type = ?, is_available = ?, skills = ?, updated_at = ? WHERE id = ?`,
		res.Name, string(res.Type), boolToInt(res.IsAvailable), joinList(res.Skills),
		formatTimestamp(res.UpdatedAt), res.ID,
	)
	if err != nil {
		return fmt.Errorf("updating resource: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("resource %s: %w", res.ID, ErrNotFound)
	}
	return nil
}

func scanResource(s scanner) (*domain.Resource, error) {
	var res domain.Resource
	var kind, skills, createdAt, updatedAt string
	var available int

	err := s.Scan(&res.ID, &res.Name, &kind, &available, &skills, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning resource: %w", err)
	}
	res.Type = domain.ResourceType(kind)
	res.IsAvailable = intToBool(available)
	res.Skills = splitList(skills)
	if res.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return nil, err
	}
	if res.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}
