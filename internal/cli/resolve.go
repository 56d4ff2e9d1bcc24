package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/shopfloor/internal/board"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

// resolveTask finds a board task by full ID, unique ID prefix or unique
// case-insensitive name.
func resolveTask(store *board.Store, arg string) (domain.Task, error) {
	if t, ok := store.Task(arg); ok {
		return t, nil
	}

	snap := store.Snapshot()
	var byPrefix, byName []domain.Task
	for _, status := range domain.BoardStatuses {
		for _, t := range snap.Column(status) {
			if strings.HasPrefix(t.ID, arg) {
				byPrefix = append(byPrefix, t)
			}
			if strings.EqualFold(t.Name, arg) {
				byName = append(byName, t)
			}
		}
	}

	for _, matches := range [][]domain.Task{byPrefix, byName} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return domain.Task{}, fmt.Errorf("%q matches %d tasks; use a longer ID", arg, len(matches))
		}
	}
	return domain.Task{}, fmt.Errorf("task %q: %w", arg, domain.ErrTaskNotFound)
}

// resolvePiece finds a piece by ID or reference.
func resolvePiece(pieces []domain.Piece, arg string) (domain.Piece, error) {
	for _, p := range pieces {
		if p.ID == arg || strings.EqualFold(p.Reference, arg) {
			return p, nil
		}
	}
	return domain.Piece{}, fmt.Errorf("piece %q: %w", arg, domain.ErrPieceNotFound)
}

// resolveMaterial finds a material by ID, unique ID prefix or name.
func resolveMaterial(materials []domain.Material, arg string) (domain.Material, error) {
	var matches []domain.Material
	for _, m := range materials {
		if m.ID == arg {
			return m, nil
		}
		if strings.HasPrefix(m.ID, arg) || strings.EqualFold(m.Name, arg) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Material{}, fmt.Errorf("material %q not found", arg)
	case 1:
		return matches[0], nil
	default:
		return domain.Material{}, fmt.Errorf("%q matches %d materials", arg, len(matches))
	}
}
