package localfs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
)

func TestParseRecords(t *testing.T) {
	input := "O₂\t3\nCO2   5\n\n  N2 1  \ncarbon dioxide 4\nlonely\n"
	recs, err := ParseRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 5)

	assert.Equal(t, cc.RawRecord{Token: "O₂", Count: "3", Line: 1}, recs[0])
	assert.Equal(t, cc.RawRecord{Token: "CO2", Count: "5", Line: 2}, recs[1])
	assert.Equal(t, cc.RawRecord{Token: "N2", Count: "1", Line: 4}, recs[2])
	assert.Equal(t, cc.RawRecord{Token: "carbon dioxide 4", Line: 5}, recs[3])
	assert.Equal(t, cc.RawRecord{Token: "lonely", Line: 6}, recs[4])
}

func TestParseRecords_MalformedReachPipeline(t *testing.T) {
	recs, err := ParseRecords(strings.NewReader("O2 2\ncarbon dioxide 4\n"))
	require.NoError(t, err)

	res := cc.NewPipeline().ProcessRecords("d", recs)
	assert.Equal(t, 1, res.Stats.SkippedRecords)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 2, res.Warnings[0].Line)
}

func scenarioA() *cc.DocumentResult {
	return cc.NewPipeline().Process("doc", []cc.RawToken{
		{Text: "O₂", Count: 3},
		{Text: "O2", Count: 2},
		{Text: "foo+bar", Count: 1},
		{Text: "BOLSIG", Count: 4},
	})
}

func TestWriteFinalCounts(t *testing.T) {
	res := cc.NewPipeline().Process("doc", []cc.RawToken{
		{Text: "N2", Count: 1},
		{Text: "O2", Count: 5},
		{Text: "CO", Count: 5},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteFinalCounts(&buf, res.Counts))
	assert.Equal(t, "carbon monoxide => 5\noxygen => 5\nnitrogen => 1\n", buf.String())
}

func TestWriteMapping(t *testing.T) {
	curation := cc.NewCurationTable([]cc.CurationEntry{{RawLabel: "O2", ResolvedLabel: "Oxygen"}})
	res := cc.NewPipeline(cc.WithCurationTable(curation)).Process("doc", []cc.RawToken{
		{Text: "O₂", Count: 3},
		{Text: "NOx", Count: 1},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteMapping(&buf, res.Trace))
	assert.Equal(t, "O₂ => oxygen\nNOx => [UNRESOLVED] (nox)\n", buf.String())
}

func TestWriteFiltered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFiltered(&buf, scenarioA().Trace))
	assert.Equal(t, "O2\t3\nO2\t2\n", buf.String())
}

func TestWriteRejections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRejections(&buf, scenarioA().Rejections))
	assert.Equal(t, "foo+bar\treaction-like\t1\nBOLSIG\tjunk-vocabulary\t4\n", buf.String())
}

func TestRenderOutputs(t *testing.T) {
	files, err := RenderOutputs(scenarioA(), false)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "doc/doc_filtered_chem_counts.txt", files[0].Path)
	assert.Equal(t, "doc/doc_final_chem_counts_dict.txt", files[1].Path)
	assert.Equal(t, "oxygen => 5\n", string(files[1].Data))
	assert.Equal(t, "doc/doc_cde_to_pubchem_mapping.txt", files[2].Path)

	files, err = RenderOutputs(scenarioA(), true)
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, "doc/doc_rejected_chem_terms.txt", files[3].Path)
}

func TestDocumentFile(t *testing.T) {
	assert.Equal(t, "paper1/paper1_raw_chem_counts.txt", DocumentFile("paper1", RawCountsSuffix))
}
