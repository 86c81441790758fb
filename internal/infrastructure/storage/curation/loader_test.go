package curation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

const sampleCSV = `chemical_name,resolved_chemical_name
atomic oxygen ion,oxygen
NO,Nitric Oxide
unknown thing,
"argon, excited",argon
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "atomic oxygen ion", entries[0].RawLabel)
	assert.Equal(t, "Nitric Oxide", entries[1].ResolvedLabel)
	assert.Equal(t, "", entries[2].ResolvedLabel)
	assert.Equal(t, "argon, excited", entries[3].RawLabel)
	assert.Nil(t, entries[0].IsFormula)
}

func TestParse_TableDropsEmptyResolved(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	table := cc.NewCurationTable(entries)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 1, table.Dropped())

	name, ok := table.LookupFormula("NO")
	assert.True(t, ok)
	assert.Equal(t, cc.CanonicalName("nitric oxide"), name)
}

func TestParse_ColumnOrderAndIsFormula(t *testing.T) {
	csv := "\ufeffIs_Formula,Resolved_Chemical_Name,Chemical_Name\ntrue,methane,CH₄\n,argon,Ar\n"
	entries, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "CH₄", entries[0].RawLabel)
	require.NotNil(t, entries[0].IsFormula)
	assert.True(t, *entries[0].IsFormula)
	assert.Nil(t, entries[1].IsFormula)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCurationLoadFailed))

	_, err = Parse(strings.NewReader("name,resolved\nO2,oxygen\n"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCurationLoadFailed))

	_, err = Parse(strings.NewReader("chemical_name,resolved_chemical_name,is_formula\nO2,oxygen,maybe\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	table, err := FileLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	name, ok := table.LookupName("atomicoxygenion")
	assert.True(t, ok)
	assert.Equal(t, cc.CanonicalName("oxygen"), name)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingCurationTable))
}
