package chem_consolidator

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	leadingQualifierRE  = regexp.MustCompile(`^(?:atomic|molecular|insoluble)\s+`)
	trailingQualifierRE = regexp.MustCompile(`\s+(?:atom|ion|cation|molecule|gas|radical|metallic|element|dimer)$`)
	chargeCharsRE       = regexp.MustCompile(`[+\-−⁺⁻]`)
)

// CleanLabel lower-cases a curated label and strips one leading and one
// trailing qualifier word, residual charge characters and redundant
// whitespace: "Atomic Oxygen" and "oxygen ion" both become "oxygen".
func CleanLabel(label string) CanonicalName {
	s := strings.ToLower(strings.TrimSpace(label))
	s = leadingQualifierRE.ReplaceAllString(s, "")
	s = trailingQualifierRE.ReplaceAllString(s, "")
	s = chargeCharsRE.ReplaceAllString(s, "")
	return CanonicalName(strings.Join(strings.Fields(s), " "))
}

// CurationEntry is one row of the curated mapping.  IsFormula overrides the
// formula-shape test on RawLabel when set.
type CurationEntry struct {
	RawLabel      string `json:"raw_label"`
	ResolvedLabel string `json:"resolved_label"`
	IsFormula     *bool  `json:"is_formula,omitempty"`
}

// IsFormulaLabel reports whether the entry is keyed by a formula.
func (e CurationEntry) IsFormulaLabel() bool {
	if e.IsFormula != nil {
		return *e.IsFormula
	}
	return formulaShapeRE.MatchString(strings.TrimSpace(e.RawLabel))
}

// CurationTable holds the two lookup views derived once from the curated
// mapping.  It is immutable after construction and safe for concurrent reads.
// A nil *CurationTable is valid and resolves nothing.
type CurationTable struct {
	formulas map[NormalizedFormula]CanonicalName
	names    map[string]CanonicalName
	entries  []CurationEntry
	dropped  int
	version  string
}

// NewCurationTable builds the formula-keyed and name-keyed views.  Entries
// with an empty raw label, or a resolved label that cleans to nothing, are
// dropped.  On duplicate keys the first entry wins.
func NewCurationTable(entries []CurationEntry) *CurationTable {
	t := &CurationTable{
		formulas: make(map[NormalizedFormula]CanonicalName),
		names:    make(map[string]CanonicalName),
	}
	h := sha256.New()
	for _, e := range entries {
		raw := strings.TrimSpace(e.RawLabel)
		resolved := CleanLabel(e.ResolvedLabel)
		if raw == "" || resolved == "" {
			t.dropped++
			continue
		}
		t.entries = append(t.entries, e)
		isFormula := e.IsFormulaLabel()
		kind := byte('n')
		if isFormula {
			kind = 'f'
		}
		h.Write([]byte(raw))
		h.Write([]byte{0})
		h.Write([]byte(resolved))
		h.Write([]byte{0, kind, '\n'})

		normalized := Normalize(raw)
		if isFormula {
			putFirst(t.formulas, NormalizedFormula(raw), resolved)
			putFirst(t.formulas, normalized, resolved)
		}
		putFirst(t.names, strings.ToLower(raw), resolved)
		putFirst(t.names, strings.ToLower(string(normalized)), resolved)
	}
	t.version = hex.EncodeToString(h.Sum(nil))[:16]
	return t
}

func putFirst[K comparable](m map[K]CanonicalName, k K, v CanonicalName) {
	if _, ok := m[k]; ok {
		return
	}
	m[k] = v
}

// LookupFormula finds a curated name by exact formula key.
func (t *CurationTable) LookupFormula(f NormalizedFormula) (CanonicalName, bool) {
	if t == nil || f == "" {
		return "", false
	}
	v, ok := t.formulas[f]
	return v, ok
}

// LookupName finds a curated name by lower-cased informal name.
func (t *CurationTable) LookupName(name string) (CanonicalName, bool) {
	if t == nil || name == "" {
		return "", false
	}
	v, ok := t.names[strings.ToLower(name)]
	return v, ok
}

// Len returns the number of accepted entries.
func (t *CurationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Dropped returns the number of entries rejected at construction.
func (t *CurationTable) Dropped() int {
	if t == nil {
		return 0
	}
	return t.dropped
}

// Entries returns a copy of the accepted entries in load order.
func (t *CurationTable) Entries() []CurationEntry {
	if t == nil {
		return nil
	}
	out := make([]CurationEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Version is a short content hash, stable for identical entry lists.  The
// nil table reports "none".
func (t *CurationTable) Version() string {
	if t == nil {
		return "none"
	}
	return t.version
}

// FormulaKeys returns the number of formula-view keys.
func (t *CurationTable) FormulaKeys() int {
	if t == nil {
		return 0
	}
	return len(t.formulas)
}

// NameKeys returns the number of name-view keys.
func (t *CurationTable) NameKeys() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
