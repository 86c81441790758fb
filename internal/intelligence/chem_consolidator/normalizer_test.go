package chem_consolidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want NormalizedFormula
	}{
		{"", ""},
		{"O₂", "O2"},
		{"o2", "O2"},
		{" C O ₂ ", "CO2"},
		{"NO_x", "NOX"},
		{"O2+", "O2"},
		{"NO₃⁻", "NO3"},
		{"H₂O", "H2O"},
		{"\tN ₂\n", "N2"},
		{"+ - ⁺ ⁻", ""},
		{"é", "É"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"", "O₂", "NO_x", "foo+bar", "Ar⁺", "CH₄ gas", "σ-bond", "e ́",
		"straße", "ǅ", "2nd", "a/b/c", "  __ ", "Fe³⁺", "ıi",
	}
	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(string(once)), "input %q", s)
	}
}

func TestStripTrailingCharge(t *testing.T) {
	assert.Equal(t, "O2", stripTrailingCharge("O2+"))
	assert.Equal(t, "NO₃", stripTrailingCharge("NO₃⁻ "))
	assert.Equal(t, "foo+bar", stripTrailingCharge("foo+bar"))
	assert.Equal(t, "", stripTrailingCharge("+-"))
}
