package chem_consolidator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentCounts_InsertionOrder(t *testing.T) {
	c := NewDocumentCounts()
	c.Add("oxygen", 3)
	c.Add("argon", 1)
	c.Add("oxygen", 2)
	c.Add("helium", 5)

	assert.Equal(t, []CanonicalName{"oxygen", "argon", "helium"}, c.Names())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 11, c.Total())
	n, ok := c.Get("oxygen")
	assert.True(t, ok)
	assert.Equal(t, 5, n)
	_, ok = c.Get("neon")
	assert.False(t, ok)
}

func TestDocumentCounts_Sorted(t *testing.T) {
	c := NewDocumentCounts()
	c.Add("b", 2)
	c.Add("a", 2)
	c.Add("c", 9)

	assert.Equal(t, []SpeciesCount{
		{Name: "c", Count: 9},
		{Name: "a", Count: 2},
		{Name: "b", Count: 2},
	}, c.Sorted())
}

func TestDocumentCounts_JSON(t *testing.T) {
	c := NewDocumentCounts()
	c.Add("oxygen", 5)
	c.Add("carbon \"dioxide\"", 1)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"oxygen":5,"carbon \"dioxide\"":1}`, string(data))

	var back DocumentCounts
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.Entries(), back.Entries())

	var nilCounts *DocumentCounts
	data, err = json.Marshal(nilCounts)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestDocumentCounts_AddSaturates(t *testing.T) {
	c := NewDocumentCounts()
	c.Add("oxygen", math.MaxInt-1)
	c.Add("oxygen", 5)
	n, _ := c.Get("oxygen")
	assert.Equal(t, math.MaxInt, n)
}
