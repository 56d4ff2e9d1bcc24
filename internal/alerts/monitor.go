package alerts

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// Monitor classifies material snapshots and feeds the resulting alerts into
// a Store. It keeps the last snapshot so single pushed materials can be
// folded in. Alert timestamps come from the store's clock.
type Monitor struct {
	store *Store
	log   *zap.Logger
	now   func() time.Time

	mu        sync.Mutex
	materials map[string]domain.Material
	digest    string
	// removals is the store's removal count when digest was taken. A
	// dismissed alert makes an unchanged snapshot worth classifying again.
	removals uint64
}

func NewMonitor(store *Store, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:     store,
		log:       logger.Named("alerts"),
		now:       store.now,
		materials: make(map[string]domain.Material),
	}
}

// EvaluateSnapshot replaces the known inventory and classifies every
// material once. A snapshot identical to the previous one is skipped unless
// alerts were dismissed or cleared since.
func (m *Monitor) EvaluateSnapshot(materials []domain.Material) ([]domain.Alert, error) {
	m.mu.Lock()
	next := make(map[string]domain.Material, len(materials))
	for _, mat := range materials {
		next[mat.ID] = mat.Clone()
	}
	digest, err := digestMaterials(next)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if m.unchangedLocked(digest) {
		m.mu.Unlock()
		m.log.Debug("material snapshot unchanged", zap.Int("materials", len(materials)))
		return nil, nil
	}
	m.materials = next
	now := m.now()
	var candidates []domain.Alert
	for _, mat := range sortedMaterials(next) {
		if a, ok := domain.StockAlert(mat, now); ok {
			candidates = append(candidates, a)
		}
	}
	m.mu.Unlock()

	return m.raise(candidates), nil
}

// UpdateMaterial folds one pushed material into the last snapshot and
// classifies only that material.
func (m *Monitor) UpdateMaterial(mat domain.Material) ([]domain.Alert, error) {
	m.mu.Lock()
	next := make(map[string]domain.Material, len(m.materials)+1)
	for id, v := range m.materials {
		next[id] = v
	}
	next[mat.ID] = mat.Clone()
	digest, err := digestMaterials(next)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if m.unchangedLocked(digest) {
		m.mu.Unlock()
		return nil, nil
	}
	m.materials = next
	a, ok := domain.StockAlert(mat, m.now())
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return m.raise([]domain.Alert{a}), nil
}

// unchangedLocked reports whether digest matches the last evaluated
// snapshot with no alert removed since, and records it otherwise.
func (m *Monitor) unchangedLocked(digest string) bool {
	removals := m.store.removalCount()
	if digest == m.digest && removals == m.removals {
		return true
	}
	m.digest = digest
	m.removals = removals
	return false
}

func (m *Monitor) raise(candidates []domain.Alert) []domain.Alert {
	added := m.store.Reconcile(candidates)
	for _, a := range added {
		m.log.Info("stock alert raised",
			zap.String("material_id", a.MaterialID),
			zap.String("type", string(a.Type)),
			zap.String("message", a.Message))
	}
	return added
}

// Materials returns the last known inventory ordered by name.
func (m *Monitor) Materials() []domain.Material {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := sortedMaterials(m.materials)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

func sortedMaterials(byID map[string]domain.Material) []domain.Material {
	out := make([]domain.Material, 0, len(byID))
	for _, mat := range byID {
		out = append(out, mat)
	}
	slices.SortFunc(out, func(a, b domain.Material) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// digestMaterials hashes the inventory in ID order so map iteration order
// does not change the result.
func digestMaterials(byID map[string]domain.Material) (string, error) {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	hasher := blake3.New()
	for _, id := range ids {
		data, err := json.Marshal(byID[id])
		if err != nil {
			return "", fmt.Errorf("encode material %s: %w", id, err)
		}
		if _, err := hasher.Write(data); err != nil {
			return "", fmt.Errorf("hash material %s: %w", id, err)
		}
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
