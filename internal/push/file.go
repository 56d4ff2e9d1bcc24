package push

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce coalesces the bursts of writes editors and exporters make.
const DefaultDebounce = 200 * time.Millisecond

// FileFeed watches a YAML materials export. The current contents are sent
// on subscribe and again after every change, one material:stock-updated
// event per material.
type FileFeed struct {
	path     string
	debounce time.Duration
	log      *zap.Logger
}

type FileOption func(*FileFeed)

func WithDebounce(d time.Duration) FileOption {
	return func(f *FileFeed) { f.debounce = d }
}

func WithFileLogger(l *zap.Logger) FileOption {
	return func(f *FileFeed) { f.log = l }
}

func NewFileFeed(path string, opts ...FileOption) *FileFeed {
	f := &FileFeed{path: filepath.Clean(path), debounce: DefaultDebounce, log: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	f.log = f.log.Named("push").With(zap.String("file", f.path))
	return f
}

func (f *FileFeed) Subscribe(ctx context.Context) (<-chan contract.Event, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the directory: atomic replace (write tmp, rename) drops a watch
	// on the file itself.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(f.path), err)
	}

	out := make(chan contract.Event, 64)
	go f.loop(ctx, w, out)
	return out, nil
}

func (f *FileFeed) loop(ctx context.Context, w *fsnotify.Watcher, out chan<- contract.Event) {
	defer close(out)
	defer w.Close()

	if _, err := os.Stat(f.path); err == nil {
		if !f.publish(ctx, out) {
			return
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != f.path || e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.log.Warn("file watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			if !f.publish(ctx, out) {
				return
			}
		}
	}
}

func (f *FileFeed) publish(ctx context.Context, out chan<- contract.Event) bool {
	materials, err := ReadMaterialsFile(f.path)
	if err != nil {
		f.log.Warn("skipping unreadable materials file", zap.Error(err))
		return true
	}
	f.log.Debug("materials file changed", zap.Int("materials", len(materials)))
	for _, m := range materials {
		if !emit(ctx, out, contract.StockUpdated(m)) {
			return false
		}
	}
	return true
}

type materialsFile struct {
	Materials []materialEntry `yaml:"materials"`
}

type materialEntry struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Shape           string   `yaml:"shape"`
	Quantity        float64  `yaml:"quantity"`
	AvailableLength *float64 `yaml:"available_length,omitempty"`
	MinLength       *float64 `yaml:"min_length,omitempty"`
	AvailableArea   *float64 `yaml:"available_area,omitempty"`
	MinArea         *float64 `yaml:"min_area,omitempty"`
}

// ReadMaterialsFile decodes a materials export. Entries without an id are
// rejected.
func ReadMaterialsFile(path string) ([]domain.Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading materials file: %w", err)
	}
	var doc materialsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing materials file: %w", err)
	}

	out := make([]domain.Material, 0, len(doc.Materials))
	for i, e := range doc.Materials {
		if e.ID == "" {
			return nil, fmt.Errorf("materials[%d]: id is required", i)
		}
		out = append(out, domain.Material{
			ID:              e.ID,
			Name:            e.Name,
			Type:            e.Type,
			Shape:           domain.MaterialShape(e.Shape),
			Quantity:        e.Quantity,
			AvailableLength: e.AvailableLength,
			MinLength:       e.MinLength,
			AvailableArea:   e.AvailableArea,
			MinArea:         e.MinArea,
		})
	}
	return out, nil
}

var _ contract.Feed = (*FileFeed)(nil)
