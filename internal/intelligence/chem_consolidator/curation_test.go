package chem_consolidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestCleanLabel(t *testing.T) {
	cases := map[string]CanonicalName{
		"oxygen":              "oxygen",
		"Atomic Oxygen":       "oxygen",
		"oxygen ion":          "oxygen",
		"molecular nitrogen":  "nitrogen",
		"insoluble  iron  ":   "iron",
		"argon cation":        "argon",
		"hydroxyl radical":    "hydroxyl",
		"  carbon   dioxide ": "carbon dioxide",
		"helium-":             "helium",
		"nitric oxide+":       "nitric oxide",
		"ion":                 "ion",
		"sodium metallic":     "sodium",
		"":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanLabel(in), "label %q", in)
	}
}

func TestCurationEntry_IsFormulaLabel(t *testing.T) {
	assert.True(t, CurationEntry{RawLabel: "NO2"}.IsFormulaLabel())
	assert.True(t, CurationEntry{RawLabel: " Ar "}.IsFormulaLabel())
	assert.False(t, CurationEntry{RawLabel: "atomic oxygen"}.IsFormulaLabel())
	assert.False(t, CurationEntry{RawLabel: "NO2", IsFormula: boolPtr(false)}.IsFormulaLabel())
	assert.True(t, CurationEntry{RawLabel: "nitrogen dioxide", IsFormula: boolPtr(true)}.IsFormulaLabel())
}

func TestNewCurationTable_Views(t *testing.T) {
	table := NewCurationTable([]CurationEntry{
		{RawLabel: "NO2", ResolvedLabel: "Nitrogen Dioxide"},
		{RawLabel: "atomic oxygen ion", ResolvedLabel: "oxygen"},
		{RawLabel: "CH₄", ResolvedLabel: "methane gas", IsFormula: boolPtr(true)},
		{RawLabel: "Laughing Gas", ResolvedLabel: "nitrous oxide"},
	})
	require.NotNil(t, table)
	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 0, table.Dropped())

	name, ok := table.LookupFormula("NO2")
	assert.True(t, ok)
	assert.Equal(t, CanonicalName("nitrogen dioxide"), name)

	name, ok = table.LookupFormula("CH4")
	assert.True(t, ok, "subscripted formula label is reachable by its normalized key")
	assert.Equal(t, CanonicalName("methane"), name)

	_, ok = table.LookupFormula("ATOMICOXYGENION")
	assert.False(t, ok, "names never enter the formula view")

	name, ok = table.LookupName("ATOMICOXYGENION")
	assert.True(t, ok)
	assert.Equal(t, CanonicalName("oxygen"), name)

	name, ok = table.LookupName("laughing gas")
	assert.True(t, ok)
	assert.Equal(t, CanonicalName("nitrous oxide"), name)

	name, ok = table.LookupName("no2")
	assert.True(t, ok, "formula labels also populate the name view")
	assert.Equal(t, CanonicalName("nitrogen dioxide"), name)
}

func TestNewCurationTable_DropsAndFirstWins(t *testing.T) {
	table := NewCurationTable([]CurationEntry{
		{RawLabel: "", ResolvedLabel: "x"},
		{RawLabel: "NO", ResolvedLabel: "  "},
		{RawLabel: "NO", ResolvedLabel: "nitric oxide"},
		{RawLabel: "NO", ResolvedLabel: "nitrosyl"},
	})
	assert.Equal(t, 2, table.Dropped())
	assert.Equal(t, 2, table.Len())

	name, ok := table.LookupFormula("NO")
	assert.True(t, ok)
	assert.Equal(t, CanonicalName("nitric oxide"), name)
}

func TestCurationTable_NilIsDegraded(t *testing.T) {
	var table *CurationTable
	_, ok := table.LookupFormula("O2")
	assert.False(t, ok)
	_, ok = table.LookupName("oxygen")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, "none", table.Version())
	assert.Nil(t, table.Entries())
}

func TestCurationTable_Version(t *testing.T) {
	entries := []CurationEntry{{RawLabel: "NO", ResolvedLabel: "nitric oxide"}}
	a := NewCurationTable(entries)
	b := NewCurationTable(entries)
	c := NewCurationTable([]CurationEntry{{RawLabel: "NO", ResolvedLabel: "nitrosyl"}})

	assert.Len(t, a.Version(), 16)
	assert.Equal(t, a.Version(), b.Version())
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestCurationTable_VersionCoversFormulaFlag(t *testing.T) {
	shape := NewCurationTable([]CurationEntry{{RawLabel: "NO", ResolvedLabel: "nitric oxide"}})
	named := NewCurationTable([]CurationEntry{{RawLabel: "NO", ResolvedLabel: "nitric oxide", IsFormula: boolPtr(false)}})

	_, ok := named.LookupFormula("NO")
	assert.False(t, ok)
	assert.NotEqual(t, shape.Version(), named.Version())
}
