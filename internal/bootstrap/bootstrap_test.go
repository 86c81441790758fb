package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/localfs"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewDefaultConfig()
	cfg.Storage.InputRoot = filepath.Join(dir, "intermediate")
	cfg.Storage.OutputRoot = cfg.Storage.InputRoot
	cfg.Storage.Sinks = []string{"fs", "sqlite"}
	cfg.SQLite.Path = filepath.Join(dir, "results.db")
	cfg.Curation.Path = filepath.Join(dir, "curation.csv")
	return cfg
}

func TestBuild_LocalPipeline(t *testing.T) {
	cfg := localConfig(t)
	writeFile(t, cfg.Curation.Path, "chemical_name,resolved_chemical_name\nCH4,Methane\nAr,argon atom\n")
	writeFile(t, filepath.Join(cfg.Storage.InputRoot, localfs.DocumentFile("doc1", localfs.RawCountsSuffix)),
		"CH4 3\nch4 2\nAr 1\nFigure 7\n")

	ctx := context.Background()
	infra, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer infra.Close()

	assert.Equal(t, 2, infra.Curation.Current().Len())
	require.Len(t, infra.Sinks, 2)
	require.NotNil(t, infra.Results)
	require.Len(t, infra.HealthChecks, 1)
	assert.Equal(t, "sqlite", infra.HealthChecks[0].Name)
	assert.NoError(t, infra.HealthChecks[0].Check(ctx))

	report, err := infra.Service.ProcessCorpus(ctx, infra.Source)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.False(t, report.Degraded)

	runID, counts, err := infra.Results.LatestDocumentCounts(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, report.ID, runID)
	assert.Equal(t, []cc.SpeciesCount{{Name: "methane", Count: 5}, {Name: "argon", Count: 1}}, counts.Entries())

	_, err = os.Stat(filepath.Join(cfg.Storage.OutputRoot, localfs.DocumentFile("doc1", localfs.FinalCountsSuffix)))
	assert.NoError(t, err)
}

func TestBuild_MissingCurationDegrades(t *testing.T) {
	cfg := localConfig(t)
	infra, err := Build(context.Background(), cfg, nil, WithoutSinks())
	require.NoError(t, err)
	defer infra.Close()

	assert.Nil(t, infra.Curation.Current())
	assert.Empty(t, infra.Sinks)
	assert.Nil(t, infra.Results)
	assert.True(t, infra.Service.Pipeline().Resolver().Degraded())
}

func TestBuild_MissingCurationRequired(t *testing.T) {
	cfg := localConfig(t)
	cfg.Curation.Required = true
	_, err := Build(context.Background(), cfg, nil, WithoutSinks())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingCurationTable))
}

func TestBuild_MalformedCurationIsFatal(t *testing.T) {
	cfg := localConfig(t)
	writeFile(t, cfg.Curation.Path, "name,label\nCH4,methane\n")
	_, err := Build(context.Background(), cfg, nil, WithoutSinks())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCurationLoadFailed))
}

func TestBuild_MetricsEnabled(t *testing.T) {
	cfg := localConfig(t)
	cfg.Metrics.Enabled = true
	infra, err := Build(context.Background(), cfg, nil, WithoutSinks())
	require.NoError(t, err)
	defer infra.Close()

	assert.NotNil(t, infra.Collector.Handler())
	infra.Close()
	infra.Close()
}
