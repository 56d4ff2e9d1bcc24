package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/shopfloor/internal/db"
	"github.com/alexanderramin/shopfloor/internal/importer"
	"github.com/alexanderramin/shopfloor/internal/repository"
)

// ImportResult counts what an import created.
type ImportResult struct {
	ResourceCount int
	MaterialCount int
	PieceCount    int
	TaskCount     int
}

// ImportSeedFile loads, validates and stores a seed file.
func (g *LocalGateway) ImportSeedFile(ctx context.Context, path string) (*ImportResult, error) {
	seed, err := importer.LoadSeed(path)
	if err != nil {
		return nil, fmt.Errorf("loading import file: %w", err)
	}
	return g.ImportSeed(ctx, seed)
}

// ImportSeed stores a seed in one transaction; nothing is written when any
// row fails.
func (g *LocalGateway) ImportSeed(ctx context.Context, seed *importer.Seed) (result *ImportResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() { g.observe(ctx, "import-seed", startedAt, fields, err) }()

	if errs := importer.ValidateSeed(seed); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}
	batch, err := importer.Convert(seed, g.now())
	if err != nil {
		return nil, fmt.Errorf("converting seed: %w", err)
	}

	err = g.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		resources := repository.NewSQLiteResourceRepo(tx)
		for i := range batch.Resources {
			if err := resources.Create(ctx, &batch.Resources[i]); err != nil {
				return fmt.Errorf("creating resource %q: %w", batch.Resources[i].Name, err)
			}
		}
		materials := repository.NewSQLiteMaterialRepo(tx)
		for i := range batch.Materials {
			if err := materials.Create(ctx, &batch.Materials[i]); err != nil {
				return fmt.Errorf("creating material %q: %w", batch.Materials[i].Name, err)
			}
		}
		pieces := repository.NewSQLitePieceRepo(tx)
		for i := range batch.Pieces {
			if err := pieces.Create(ctx, &batch.Pieces[i]); err != nil {
				return fmt.Errorf("creating piece %q: %w", batch.Pieces[i].Reference, err)
			}
		}
		tasks := repository.NewSQLiteTaskRepo(tx)
		for i := range batch.Tasks {
			if err := tasks.Create(ctx, &batch.Tasks[i]); err != nil {
				return fmt.Errorf("creating task %q: %w", batch.Tasks[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result = &ImportResult{
		ResourceCount: len(batch.Resources),
		MaterialCount: len(batch.Materials),
		PieceCount:    len(batch.Pieces),
		TaskCount:     len(batch.Tasks),
	}
	fields["tasks"] = result.TaskCount
	fields["pieces"] = result.PieceCount
	return result, nil
}

func formatValidationErrors(errs []error) error {
	return fmt.Errorf("seed validation failed: %w", errors.Join(errs...))
}
