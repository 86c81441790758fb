package consolidation

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/prometheus"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// CurationLoader loads a complete curation table.
type CurationLoader interface {
	Load(ctx context.Context) (*cc.CurationTable, error)
}

// CurationLoaderFunc adapts a function to CurationLoader.
type CurationLoaderFunc func(ctx context.Context) (*cc.CurationTable, error)

func (f CurationLoaderFunc) Load(ctx context.Context) (*cc.CurationTable, error) { return f(ctx) }

// DefaultReloadDebounce collapses the burst of events editors emit on save.
const DefaultReloadDebounce = 250 * time.Millisecond

// CurationStore holds the active curation table and swaps it atomically on
// reload.  Readers take a snapshot with Current; a run keeps its snapshot
// even if a reload lands mid-run.
type CurationStore struct {
	current  atomic.Pointer[cc.CurationTable]
	loader   CurationLoader
	logger   logging.Logger
	metrics  *prometheus.AppMetrics
	debounce time.Duration
}

// NewCurationStore creates an empty store.  Call Reload to populate it.
func NewCurationStore(loader CurationLoader, logger logging.Logger, metrics *prometheus.AppMetrics) *CurationStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopMetrics()
	}
	return &CurationStore{loader: loader, logger: logger, metrics: metrics, debounce: DefaultReloadDebounce}
}

// Current returns the active table, nil when none has been loaded.
func (s *CurationStore) Current() *cc.CurationTable {
	return s.current.Load()
}

// Set replaces the active table.
func (s *CurationStore) Set(t *cc.CurationTable) {
	s.current.Store(t)
	s.metrics.CurationEntries.WithLabelValues("formula").Set(float64(t.FormulaKeys()))
	s.metrics.CurationEntries.WithLabelValues("name").Set(float64(t.NameKeys()))
}

// Reload loads a fresh table.  On failure the previous table stays active.
func (s *CurationStore) Reload(ctx context.Context) error {
	if s.loader == nil {
		return errors.New(errors.ErrCodeMissingCurationTable, "no curation loader configured")
	}
	t, err := s.loader.Load(ctx)
	if err != nil {
		s.metrics.CurationReloadsTotal.WithLabelValues("failed").Inc()
		return errors.Wrap(err, errors.CodeUnknown, "curation reload failed")
	}
	prev := s.current.Load()
	s.Set(t)
	s.metrics.CurationReloadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("curation table loaded",
		logging.Int("entries", t.Len()),
		logging.Int("dropped", t.Dropped()),
		logging.String("version", t.Version()),
		logging.String("previous_version", prev.Version()))
	return nil
}

// Watch reloads the table whenever the file at path changes, until ctx is
// done.  The parent directory is watched so that atomic renames by editors
// and deploy tools are seen.
func (s *CurationStore) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create file watcher")
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return errors.Wrap(err, errors.ErrCodeCurationLoadFailed, "failed to watch curation directory")
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(s.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("curation watcher error", logging.Err(err))
		case <-pending:
			pending = nil
			if err := s.Reload(ctx); err != nil {
				s.logger.Error("keeping previous curation table", logging.Err(err),
					logging.String("path", target))
			}
		}
	}
}
