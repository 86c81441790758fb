package consolidation

import (
	"context"
	"sort"
	"time"

	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// CorpusSource enumerates documents and yields their raw count records.
type CorpusSource interface {
	// Name labels the source in logs and metrics ("localfs", "minio", ...).
	Name() string
	ListDocuments(ctx context.Context) ([]string, error)
	ReadRecords(ctx context.Context, docID string) ([]cc.RawRecord, error)
}

// ResultSink persists one document result.
type ResultSink interface {
	Name() string
	WriteDocument(ctx context.Context, run RunInfo, res *cc.DocumentResult) error
}

// RunRecorder is implemented by sinks that also keep run-level records.
type RunRecorder interface {
	BeginRun(ctx context.Context, run RunInfo) error
	FinishRun(ctx context.Context, report *RunReport) error
}

// ResultCache stores document results keyed by CacheKey.  Get returns
// (nil, nil) on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (*cc.DocumentResult, error)
	Set(ctx context.Context, key string, res *cc.DocumentResult) error
}

// RunLocker serialises corpus runs over the same source across processes.
// Lock fails with ErrCodeConflict when another holder has the lock.
type RunLocker interface {
	Lock(ctx context.Context, name string) (unlock func(context.Context) error, err error)
}

// CurationProvider hands out the curation table to use for the next run or
// document.  A nil table means degraded resolution.
type CurationProvider interface {
	Current() *cc.CurationTable
}

// StaticCuration is a CurationProvider that never changes.
type StaticCuration struct{ Table *cc.CurationTable }

func (s StaticCuration) Current() *cc.CurationTable { return s.Table }

// RunInfo identifies one consolidation run.
type RunInfo struct {
	ID              string    `json:"run_id"`
	Source          string    `json:"source"`
	StartedAt       time.Time `json:"started_at"`
	CurationVersion string    `json:"curation_version"`
	Degraded        bool      `json:"degraded"`
}

// RunSummary is a stored run as listed by a ResultStore.
type RunSummary struct {
	ID              string     `json:"run_id"`
	Source          string     `json:"source"`
	CurationVersion string     `json:"curation_version"`
	Degraded        bool       `json:"degraded"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Succeeded       int        `json:"succeeded"`
	Failed          int        `json:"failed"`
	Cached          int        `json:"cached"`
}

// ResultStore answers queries over persisted results.  A missing document
// is reported with ErrCodeDocumentNotFound.
type ResultStore interface {
	LatestDocumentCounts(ctx context.Context, docID string) (runID string, counts *cc.DocumentCounts, err error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// ---------------------------------------------------------------------------
// In-memory source
// ---------------------------------------------------------------------------

// MemorySource serves records held in memory.  It backs the HTTP and queue
// single-document paths and tests.
type MemorySource struct {
	name string
	docs map[string][]cc.RawRecord
}

// NewMemorySource returns a source named name over docs.
func NewMemorySource(name string, docs map[string][]cc.RawRecord) *MemorySource {
	if name == "" {
		name = "memory"
	}
	return &MemorySource{name: name, docs: docs}
}

func (m *MemorySource) Name() string { return m.name }

// ListDocuments returns the document ids in lexical order.
func (m *MemorySource) ListDocuments(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemorySource) ReadRecords(_ context.Context, docID string) ([]cc.RawRecord, error) {
	recs, ok := m.docs[docID]
	if !ok {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "document not found").WithDetail(docID)
	}
	return recs, nil
}
