package importer

import (
	"fmt"
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// DateLayout is the seed format for due dates.
const DateLayout = "2006-01-02"

var (
	validResourceTypes = map[string]bool{string(domain.ResourcePerson): true, string(domain.ResourceMachine): true}
	validShapes        = map[string]bool{string(domain.ShapeBar): true, string(domain.ShapePlate): true}
)

// ValidateSeed checks the seed before conversion and returns every problem
// found.
func ValidateSeed(s *Seed) []error {
	var errs []error

	resourceRefs := make(map[string]bool)
	errs = append(errs, validateResources(s.Resources, resourceRefs)...)

	materialRefs := make(map[string]bool)
	errs = append(errs, validateMaterials(s.Materials, materialRefs)...)

	pieceQty := make(map[string]int)
	errs = append(errs, validatePieces(s.Pieces, materialRefs, pieceQty)...)

	errs = append(errs, validateTasks(s.Tasks, s.Defaults, pieceQty, resourceRefs)...)
	return errs
}

func validateResources(resources []ResourceImport, refs map[string]bool) []error {
	var errs []error
	for i, r := range resources {
		prefix := fmt.Sprintf("resources[%d]", i)
		if r.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if refs[r.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref %q is duplicated", prefix, r.Ref))
		}
		refs[r.Ref] = true
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if !validResourceTypes[r.Type] {
			errs = append(errs, fmt.Errorf("%s.type: invalid value %q (expected Person or Machine)", prefix, r.Type))
		}
	}
	return errs
}

func validateMaterials(materials []MaterialImport, refs map[string]bool) []error {
	var errs []error
	for i, m := range materials {
		prefix := fmt.Sprintf("materials[%d]", i)
		if m.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if refs[m.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref %q is duplicated", prefix, m.Ref))
		}
		refs[m.Ref] = true
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if !validShapes[m.Shape] {
			errs = append(errs, fmt.Errorf("%s.shape: invalid value %q", prefix, m.Shape))
		}
		for _, f := range []struct {
			name string
			v    *float64
		}{
			{"quantity", m.Quantity},
			{"available_length", m.AvailableLength},
			{"min_length", m.MinLength},
			{"available_area", m.AvailableArea},
			{"min_area", m.MinArea},
		} {
			if f.v != nil && *f.v < 0 {
				errs = append(errs, fmt.Errorf("%s.%s must be >= 0, got %g", prefix, f.name, *f.v))
			}
		}
	}
	return errs
}

func validatePieces(pieces []PieceImport, materialRefs map[string]bool, qty map[string]int) []error {
	var errs []error
	for i, p := range pieces {
		prefix := fmt.Sprintf("pieces[%d]", i)
		if p.Reference == "" {
			errs = append(errs, fmt.Errorf("%s.reference is required", prefix))
		} else if _, dup := qty[p.Reference]; dup {
			errs = append(errs, fmt.Errorf("%s.reference %q is duplicated", prefix, p.Reference))
		}
		qty[p.Reference] = p.Quantity
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if p.Quantity < 0 {
			errs = append(errs, fmt.Errorf("%s.quantity must be >= 0, got %d", prefix, p.Quantity))
		}
		if p.MaterialRef != "" && !materialRefs[p.MaterialRef] {
			errs = append(errs, fmt.Errorf("%s.material_ref %q not found", prefix, p.MaterialRef))
		}
	}
	return errs
}

func validateTasks(tasks []TaskImport, defaults *DefaultsImport, pieceQty map[string]int, resourceRefs map[string]bool) []error {
	var errs []error
	refs := make(map[string]bool)
	for i, t := range tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if t.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if refs[t.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref %q is duplicated", prefix, t.Ref))
		}
		refs[t.Ref] = true
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if t.Status != "" {
			if _, err := domain.ParseTaskStatus(t.Status); err != nil {
				errs = append(errs, fmt.Errorf("%s.status: %w", prefix, err))
			}
		}
		if t.DueDate != "" {
			if _, err := time.Parse(DateLayout, t.DueDate); err != nil {
				errs = append(errs, fmt.Errorf("%s.due_date: invalid date format %q (expected YYYY-MM-DD)", prefix, t.DueDate))
			}
		}
		if t.SpentTime < 0 {
			errs = append(errs, fmt.Errorf("%s.spent_time must be >= 0", prefix))
		}
		for _, r := range t.Resources {
			if !resourceRefs[r] {
				errs = append(errs, fmt.Errorf("%s.resources: %q not found", prefix, r))
			}
		}

		target := taskQuantity(t, defaults)
		if t.PieceRef != "" {
			q, ok := pieceQty[t.PieceRef]
			if !ok {
				errs = append(errs, fmt.Errorf("%s.piece_ref %q not found", prefix, t.PieceRef))
				continue
			}
			target = q
		}
		if target < 0 {
			errs = append(errs, fmt.Errorf("%s.quantity must be >= 0, got %d", prefix, target))
		} else if t.Produced < 0 || t.Produced > target {
			errs = append(errs, fmt.Errorf("%s.produced %d is outside [0, %d]", prefix, t.Produced, target))
		}
	}
	return errs
}

func taskQuantity(t TaskImport, defaults *DefaultsImport) int {
	var fallback *int
	if defaults != nil {
		fallback = defaults.Quantity
	}
	return domain.Deref(t.Quantity, domain.Deref(fallback, 0))
}
