package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

const materialColumns = `id, name, type, shape, quantity,
		available_length, min_length, available_area, min_area,
		diameter, length, x, y, thickness, last_updated, created_at`

type SQLiteMaterialRepo struct {
	db db.DBTX
}

func NewSQLiteMaterialRepo(conn db.DBTX) *SQLiteMaterialRepo {
	return &SQLiteMaterialRepo{db: conn}
}

func (r *SQLiteMaterialRepo) Create(ctx context.Context, m *domain.Material) error {
	query := `INSERT INTO materials (` + materialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Type, string(m.Shape), m.Quantity,
		nullableFloatToValue(m.AvailableLength),
		nullableFloatToValue(m.MinLength),
		nullableFloatToValue(m.AvailableArea),
		nullableFloatToValue(m.MinArea),
		nullableFloatToValue(m.Diameter),
		nullableFloatToValue(m.Length),
		nullableFloatToValue(m.X),
		nullableFloatToValue(m.Y),
		nullableFloatToValue(m.Thickness),
		formatTimestamp(m.LastUpdated),
		formatTimestamp(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting material: %w", err)
	}
	return nil
}

func (r *SQLiteMaterialRepo) GetByID(ctx context.Context, id string) (*domain.Material, error) {
	m, err := scanMaterial(r.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachPieces(ctx, []*domain.Material{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *SQLiteMaterialRepo) List(ctx context.Context) ([]*domain.Material, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+materialColumns+` FROM materials ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing materials: %w", err)
	}
	var materials []*domain.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		materials = append(materials, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating materials: %w", err)
	}
	if err := r.attachPieces(ctx, materials); err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *SQLiteMaterialRepo) Update(ctx context.Context, m *domain.Material) error {
	query := `UPDATE materials SET name = ?, type = ?, shape = ?, quantity = ?,
		available_length = ?, min_length = ?, available_area = ?, min_area = ?,
		diameter = ?, length = ?, x = ?, y = ?, thickness = ?, last_updated = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		m.Name, m.Type, string(m.Shape), m.Quantity,
		nullableFloatToValue(m.AvailableLength),
		nullableFloatToValue(m.MinLength),
		nullableFloatToValue(m.AvailableArea),
		nullableFloatToValue(m.MinArea),
		nullableFloatToValue(m.Diameter),
		nullableFloatToValue(m.Length),
		nullableFloatToValue(m.X),
		nullableFloatToValue(m.Y),
		nullableFloatToValue(m.Thickness),
		formatTimestamp(m.LastUpdated),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("material %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteMaterialRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("material %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteMaterialRepo) attachPieces(ctx context.Context, materials []*domain.Material) error {
	if len(materials) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Material, len(materials))
	ids := make([]any, len(materials))
	for i, m := range materials {
		byID[m.ID] = m
		ids[i] = m.ID
	}
	rows, err := r.db.QueryContext(ctx, `SELECT material_id, id FROM pieces
		WHERE material_id IN (`+placeholders(len(ids))+`) ORDER BY material_id, reference`, ids...)
	if err != nil {
		return fmt.Errorf("loading material pieces: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var materialID, pieceID string
		if err := rows.Scan(&materialID, &pieceID); err != nil {
			return fmt.Errorf("scanning material piece: %w", err)
		}
		m := byID[materialID]
		m.PieceIDs = append(m.PieceIDs, pieceID)
	}
	return rows.Err()
}

func scanMaterial(s scanner) (*domain.Material, error) {
	var m domain.Material
	var shape, lastUpdated, createdAt string
	var availLen, minLen, availArea, minArea, diameter, length, x, y, thickness sql.NullFloat64

	err := s.Scan(
		&m.ID, &m.Name, &m.Type, &shape, &m.Quantity,
		&availLen, &minLen, &availArea, &minArea,
		&diameter, &length, &x, &y, &thickness, &lastUpdated, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("material: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning material: %w", err)
	}
	m.Shape = domain.MaterialShape(shape)
	m.AvailableLength = nullableFloat(availLen)
	m.MinLength = nullableFloat(minLen)
	m.AvailableArea = nullableFloat(availArea)
	m.MinArea = nullableFloat(minArea)
	m.Diameter = nullableFloat(diameter)
	m.Length = nullableFloat(length)
	m.X = nullableFloat(x)
	m.Y = nullableFloat(y)
	m.Thickness = nullableFloat(thickness)
	if m.LastUpdated, err = parseTimestamp("last_updated", lastUpdated); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}
