package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/database/sqlite"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	st, err := sqlite.Open(context.Background(), config.SQLiteConfig{Path: path}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), config.SQLiteConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBadRequest, errors.GetCode(err))
}

func TestStore_ServiceRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	svc := consolidation.NewService(nil, consolidation.WithSinks(st))
	src := consolidation.NewMemorySource("test", map[string][]cc.RawRecord{
		"doc-a": {
			{Token: "CO2", Count: "3"},
			{Token: "co2", Count: "2"},
			{Token: "H2O", Count: "1"},
			{Token: "Fig", Count: "5"},
		},
		"doc-b": {{Token: "CH4", Count: "7"}},
	})

	report, err := svc.ProcessCorpus(ctx, src)
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded)

	var want *cc.DocumentResult
	for _, d := range report.Documents {
		if d.DocumentID == "doc-a" {
			want = d.Result
		}
	}
	require.NotNil(t, want)

	runID, counts, err := st.LatestDocumentCounts(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, report.ID, runID)
	assert.Equal(t, want.Counts.Entries(), counts.Entries())

	trace, err := st.Trace(ctx, runID, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, want.Trace, trace)

	runs, err := st.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.ID, runs[0].ID)
	assert.Equal(t, "test", runs[0].Source)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.True(t, runs[0].Degraded)
	require.NotNil(t, runs[0].FinishedAt)
	assert.WithinDuration(t, report.FinishedAt, *runs[0].FinishedAt, time.Millisecond)
}

func TestStore_WriteDocumentReplaces(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	run := consolidation.RunInfo{ID: "run-1", Source: "test", StartedAt: time.Now(), CurationVersion: "none"}
	require.NoError(t, st.BeginRun(ctx, run))
	require.NoError(t, st.BeginRun(ctx, run))

	p := cc.NewPipeline()
	first := p.Process("doc", []cc.RawToken{{Text: "CO2", Count: 1}, {Text: "N2", Count: 2}})
	second := p.Process("doc", []cc.RawToken{{Text: "O3", Count: 9}})

	require.NoError(t, st.WriteDocument(ctx, run, first))
	require.NoError(t, st.WriteDocument(ctx, run, second))

	counts, err := st.DocumentCounts(ctx, "run-1", "doc")
	require.NoError(t, err)
	assert.Equal(t, second.Counts.Entries(), counts.Entries())
}

func TestStore_LatestAcrossRuns(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	p := cc.NewPipeline()

	for i, tok := range []string{"CO2", "CH4"} {
		run := consolidation.RunInfo{ID: []string{"r1", "r2"}[i], Source: "test", StartedAt: time.Now(), CurationVersion: "none"}
		require.NoError(t, st.BeginRun(ctx, run))
		require.NoError(t, st.WriteDocument(ctx, run, p.Process("doc", []cc.RawToken{{Text: tok, Count: 1}})))
	}

	runID, counts, err := st.LatestDocumentCounts(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "r2", runID)
	_, ok := counts.Get("ch4")
	assert.True(t, ok)
}

func TestStore_NotFound(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	_, _, err := st.LatestDocumentCounts(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))

	err = st.FinishRun(ctx, &consolidation.RunReport{RunInfo: consolidation.RunInfo{ID: "nope"}, FinishedAt: time.Now()})
	assert.True(t, errors.IsNotFound(err))

	assert.Error(t, st.WriteDocument(ctx, consolidation.RunInfo{ID: "nope"}, nil))
}

func TestStore_ForeignKeyRequiresRun(t *testing.T) {
	st := openStore(t)
	res := cc.NewPipeline().Process("doc", []cc.RawToken{{Text: "CO2", Count: 1}})
	err := st.WriteDocument(context.Background(), consolidation.RunInfo{ID: "unknown"}, res)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseError, errors.GetCode(err))
}
