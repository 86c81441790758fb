package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

func writeRaw(t *testing.T, root, doc, content string) {
	t.Helper()
	dir := filepath.Join(root, doc)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, doc+RawCountsSuffix), []byte(content), 0o644))
}

func TestSource_ListDocuments(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "b", "O2 1\n")
	writeRaw(t, root, "a", "N2 1\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644))

	docs, err := NewSource(root).ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, docs)
}

func TestSource_ListDocuments_MissingRoot(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "nope")).ListDocuments(context.Background())
	assert.True(t, errors.IsNotFound(err))
}

func TestSource_ReadRecords(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "doc", "O₂\t3\nBOLSIG\t4\n")

	recs, err := NewSource(root).ReadRecords(context.Background(), "doc")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "O₂", recs[0].Token)
}

func TestSource_ReadRecords_Missing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	_, err := NewSource(root).ReadRecords(context.Background(), "empty")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentNotFound))
}

func TestSink_WriteDocument(t *testing.T) {
	root := t.TempDir()
	res := scenarioA()

	sink := NewSink(root, true)
	require.NoError(t, sink.WriteDocument(context.Background(), consolidation.RunInfo{ID: "r"}, res))

	data, err := os.ReadFile(filepath.Join(root, "doc", "doc"+FinalCountsSuffix))
	require.NoError(t, err)
	assert.Equal(t, "oxygen => 5\n", string(data))

	for _, suffix := range []string{FilteredCountsSuffix, MappingSuffix, RejectionsSuffix} {
		_, err := os.Stat(filepath.Join(root, "doc", "doc"+suffix))
		assert.NoError(t, err, suffix)
	}

	entries, err := os.ReadDir(filepath.Join(root, "doc"))
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temporary files left behind")
}

func TestCorpusRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "paper1", "O₂\t3\nO2\t2\nfoo+bar\t1\nBOLSIG\t4\n")
	writeRaw(t, root, "paper2", "NOx 1\nCO x\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "paper3"), 0o755))

	svc := consolidation.NewService(cc.NewPipeline(), consolidation.WithSinks(NewSink(root, false)))
	report, err := svc.ProcessCorpus(context.Background(), NewSource(root))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	data, err := os.ReadFile(filepath.Join(root, "paper2", "paper2"+FinalCountsSuffix))
	require.NoError(t, err)
	assert.Equal(t, "nox => 1\n", string(data))
}
