package push

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockV1 = `
materials:
  - {id: m1, name: Round 40, type: S235, shape: Cylindrical Bar, available_length: 900, min_length: 300}
  - {id: m2, name: Sheet 3mm, type: AlMg3, shape: Plate, available_area: 0, min_area: 1000}
`

const stockV2 = `
materials:
  - {id: m1, name: Round 40, type: S235, shape: Cylindrical Bar, available_length: 120, min_length: 300}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, ch <-chan contract.Event, n int) []contract.Event {
	t.Helper()
	var out []contract.Event
	for len(out) < n {
		ev, ok := next(t, ch)
		require.True(t, ok, "feed closed after %d events", len(out))
		out = append(out, ev)
	}
	return out
}

func TestFileFeed_InitialSnapshotAndChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.yaml")
	writeFile(t, path, stockV1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := NewFileFeed(path, WithDebounce(50*time.Millisecond)).Subscribe(ctx)
	require.NoError(t, err)

	initial := collect(t, ch, 2)
	assert.Equal(t, "m1", initial[0].Material.ID)
	assert.Equal(t, "m2", initial[1].Material.ID)
	assert.Equal(t, domain.StockCritical, domain.ClassifyStock(*initial[1].Material))

	// Replace atomically, the way exporters do.
	tmp := path + ".tmp"
	writeFile(t, tmp, stockV2)
	require.NoError(t, os.Rename(tmp, path))

	changed := collect(t, ch, 1)
	assert.Equal(t, contract.EventMaterialStockUpdated, changed[0].Kind)
	assert.Equal(t, 120.0, *changed[0].Material.AvailableLength)

	cancel()
	for range ch {
	}
}

func TestFileFeed_MissingFileWaitsForCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := NewFileFeed(path, WithDebounce(20*time.Millisecond)).Subscribe(ctx)
	require.NoError(t, err)

	writeFile(t, path, stockV2)
	got := collect(t, ch, 1)
	assert.Equal(t, "m1", got[0].Material.ID)

	cancel()
	for range ch {
	}
}

func TestFileFeed_MissingDirectory(t *testing.T) {
	_, err := NewFileFeed(filepath.Join(t.TempDir(), "nope", "stock.yaml")).Subscribe(context.Background())
	assert.Error(t, err)
}

func TestReadMaterialsFile_RequiresIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.yaml")
	writeFile(t, path, "materials:\n  - {name: Round 40}\n")

	_, err := ReadMaterialsFile(path)
	assert.ErrorContains(t, err, "materials[0]: id is required")
}
