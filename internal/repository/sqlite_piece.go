package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

const pieceColumns = `id, reference, name, description, material_id, material_quantity,
		quantity, progress, status, project_id, created_at, updated_at`

// SQLitePieceRepo stores pieces. A piece's TaskIDs are not stored on the
// piece row; they are read back from tasks.piece_id.
type SQLitePieceRepo struct {
	db db.DBTX
}

func NewSQLitePieceRepo(conn db.DBTX) *SQLitePieceRepo {
	return &SQLitePieceRepo{db: conn}
}

func (r *SQLitePieceRepo) Create(ctx context.Context, p *domain.Piece) error {
	query := `INSERT INTO pieces (` + pieceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Reference,
		p.Name,
		p.Description,
		nullableString(p.MaterialID),
		p.MaterialQuantity,
		p.Quantity,
		p.Progress,
		string(p.Status),
		p.ProjectID,
		formatTimestamp(p.CreatedAt),
		formatTimestamp(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting piece: %w", err)
	}
	return nil
}

func (r *SQLitePieceRepo) GetByID(ctx context.Context, id string) (*domain.Piece, error) {
	return r.getOne(ctx, `SELECT `+pieceColumns+` FROM pieces WHERE id = ?`, id)
}

func (r *SQLitePieceRepo) GetByReference(ctx context.Context, reference string) (*domain.Piece, error) {
	return r.getOne(ctx, `SELECT `+pieceColumns+` FROM pieces WHERE reference = ?`, reference)
}

func (r *SQLitePieceRepo) getOne(ctx context.Context, query string, arg string) (*domain.Piece, error) {
	p, err := scanPiece(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := r.attachTasks(ctx, []*domain.Piece{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLitePieceRepo) List(ctx context.Context) ([]*domain.Piece, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pieceColumns+` FROM pieces ORDER BY reference`)
	if err != nil {
		return nil, fmt.Errorf("listing pieces: %w", err)
	}
	var pieces []*domain.Piece
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pieces = append(pieces, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating pieces: %w", err)
	}
	if err := r.attachTasks(ctx, pieces); err != nil {
		return nil, err
	}
	return pieces, nil
}

func (r *SQLitePieceRepo) Update(ctx context.Context, p *domain.Piece) error {
	query := `UPDATE pieces SET reference = ?, name = ?, description = ?, material_id = ?,
		material_quantity = ?, quantity = ?, progress = ?, status = ?, project_id = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		p.Reference,
		p.Name,
		p.Description,
		nullableString(p.MaterialID),
		p.MaterialQuantity,
		p.Quantity,
		p.Progress,
		string(p.Status),
		p.ProjectID,
		formatTimestamp(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating piece: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("piece %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// Delete removes the piece. Its tasks stay and lose their piece link.
func (r *SQLitePieceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pieces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting piece: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("piece %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLitePieceRepo) attachTasks(ctx context.Context, pieces []*domain.Piece) error {
	if len(pieces) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Piece, len(pieces))
	ids := make([]any, len(pieces))
	for i, p := range pieces {
		byID[p.ID] = p
		ids[i] = p.ID
	}
	rows, err := r.db.QueryContext(ctx, `SELECT piece_id, id FROM tasks
		WHERE piece_id IN (`+placeholders(len(ids))+`) ORDER BY piece_id, created_at, id`, ids...)
	if err != nil {
		return fmt.Errorf("loading piece tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pieceID, taskID string
		if err := rows.Scan(&pieceID, &taskID); err != nil {
			return fmt.Errorf("scanning piece task: %w", err)
		}
		p := byID[pieceID]
		p.TaskIDs = append(p.TaskIDs, taskID)
	}
	return rows.Err()
}

func scanPiece(s scanner) (*domain.Piece, error) {
	var p domain.Piece
	var materialID sql.NullString
	var status, createdAt, updatedAt string

	err := s.Scan(
		&p.ID, &p.Reference, &p.Name, &p.Description, &materialID, &p.MaterialQuantity,
		&p.Quantity, &p.Progress, &status, &p.ProjectID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("piece: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning piece: %w", err)
	}
	p.MaterialID = materialID.String
	p.Status = domain.TaskStatus(status)
	if p.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
