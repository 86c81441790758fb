package chem_consolidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_ClassifyToken(t *testing.T) {
	c := NewClassifier(DefaultClassifierTables())

	cases := []struct {
		raw  string
		want Verdict
	}{
		{"O₂", Accept()},
		{"CO2", Accept()},
		{"NO_x", Accept()},
		{"O2+", Accept()},
		{"NO₃⁻", Accept()},
		{"BOLSIG", Reject(ReasonJunkVocabulary)},
		{"Figure", Reject(ReasonJunkVocabulary)},
		{"by", Reject(ReasonJunkVocabulary)},
		{"foo+bar", Reject(ReasonReactionLike)},
		{"H2→H", Reject(ReasonReactionLike)},
		{"A--B", Reject(ReasonReactionLike)},
		{"X=Y", Reject(ReasonReactionLike)},
		{"ABCDEFGHIJKLMNOP", Reject(ReasonReactionLike)},
		{"theta", Reject(ReasonIrrelevant)},
		{"sin x", Reject(ReasonIrrelevant)},
		{"Δ", Reject(ReasonIrrelevant)},
		{"δ", Reject(ReasonIrrelevant)},
		{"ϵ", Reject(ReasonIrrelevant)},
		{"T°", Reject(ReasonIrrelevant)},
		{"2nd", Reject(ReasonIrrelevant)},
		{"A/B/C", Reject(ReasonIrrelevant)},
		{"manuscript", Reject(ReasonIrrelevant)},
		{"3", Reject(ReasonMalformedFormula)},
		{"+", Reject(ReasonMalformedFormula)},
		{"N/A", Reject(ReasonMalformedFormula)},
		{"(CH3)2", Reject(ReasonMalformedFormula)},
	}
	for _, tc := range cases {
		_, got := c.ClassifyToken(tc.raw)
		assert.Equal(t, tc.want, got, "token %q", tc.raw)
	}
}

func TestClassifier_Precedence(t *testing.T) {
	tables := DefaultClassifierTables()
	tables.JunkWords = append(tables.JunkWords, "ABCDEFGHIJKLMNOPQ")
	c := NewClassifier(tables)

	// Junk beats reaction-like length.
	assert.Equal(t, Reject(ReasonJunkVocabulary), c.Classify("ABCDEFGHIJKLMNOPQ"))
	// Reaction glyph beats irrelevant symbol.
	assert.Equal(t, Reject(ReasonReactionLike), c.Classify("Ω=1"))
	// Irrelevant beats malformed shape.
	assert.Equal(t, Reject(ReasonIrrelevant), c.Classify("1ST/2/3"))
}

func TestClassifier_Checks(t *testing.T) {
	c := NewClassifier(DefaultClassifierTables())

	assert.True(t, c.IsJunk("quartz"))
	assert.False(t, c.IsJunk("QUARTZITE"))
	assert.True(t, c.IsReactionLike("A+B"))
	assert.True(t, c.IsReactionLike("ABCDEFGHIJKLMNOP"))
	assert.False(t, c.IsReactionLike("ABCDEFGHIJKLMNO"))
	assert.True(t, c.IsIrrelevant("PI"))
	assert.False(t, c.IsIrrelevant("PIN"))
	assert.False(t, c.IsIrrelevant("COS2"))
	assert.True(t, c.IsIrrelevant("10B"))
	assert.True(t, HasFormulaShape("CH4"))
	assert.False(t, HasFormulaShape(""))
	assert.False(t, HasFormulaShape("4CH"))
}

func TestClassifier_CustomTables(t *testing.T) {
	tables := ClassifierTables{JunkWords: []string{"argon"}, MaxFormulaLength: 3}
	c := NewClassifier(tables)

	assert.Equal(t, Reject(ReasonJunkVocabulary), c.Classify("AR" + "GON"))
	assert.Equal(t, Reject(ReasonReactionLike), c.Classify("CH4O"))
	assert.Equal(t, Accept(), c.Classify("PI"))

	// Editing the source tables after construction has no effect.
	tables.JunkWords[0] = "CH4"
	assert.Equal(t, Accept(), c.Classify("CH4"))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "accepted", Accept().String())
	assert.Equal(t, "rejected(reaction-like)", Reject(ReasonReactionLike).String())
}
