package chem_consolidator

import (
	"strings"
)

// BuiltinFormulas maps common normalized formulas to canonical names.
type BuiltinFormulas map[NormalizedFormula]CanonicalName

// DefaultBuiltinFormulas returns the hardcoded gas table.
func DefaultBuiltinFormulas() BuiltinFormulas {
	return BuiltinFormulas{
		"O2":  "oxygen",
		"O":   "oxygen",
		"N2":  "nitrogen",
		"N":   "nitrogen",
		"CO2": "carbon dioxide",
		"CO":  "carbon monoxide",
	}
}

// clone copies b with keys normalized and values lower-cased.
func (b BuiltinFormulas) clone() BuiltinFormulas {
	out := make(BuiltinFormulas, len(b))
	for k, v := range b {
		nk := Normalize(string(k))
		name := CanonicalName(strings.ToLower(strings.TrimSpace(string(v))))
		if nk == "" || name == "" {
			continue
		}
		out[nk] = name
	}
	return out
}

// Resolver maps normalized formulas to canonical names.  Lookup order is the
// built-in translation, the curated formula view, the curated name view (by
// translation, then by lower-cased formula), then the lower-cased fallback.
// Only curated hits count as resolved.
type Resolver struct {
	builtin  BuiltinFormulas
	curation *CurationTable
}

// NewResolver builds a resolver.  A nil curation table degrades resolution
// to the built-in table and the fallback.
func NewResolver(builtin BuiltinFormulas, curation *CurationTable) *Resolver {
	return &Resolver{builtin: builtin.clone(), curation: curation}
}

// Degraded reports whether the resolver runs without curated mappings.
func (r *Resolver) Degraded() bool {
	return r.curation == nil
}

// Curation returns the table the resolver reads, possibly nil.
func (r *Resolver) Curation() *CurationTable {
	return r.curation
}

// Resolve returns the canonical name and whether it came from curated data.
func (r *Resolver) Resolve(f NormalizedFormula) (CanonicalName, bool) {
	res := r.ResolveDetailed(f)
	return res.Canonical, res.Resolved
}

// ResolveDetailed also reports which lookup produced the name.
func (r *Resolver) ResolveDetailed(f NormalizedFormula) Resolution {
	translation, hasBuiltin := r.builtin[f]

	if name, ok := r.curation.LookupFormula(f); ok {
		return Resolution{Canonical: name, Resolved: true, Method: MethodCuratedFormula}
	}
	if hasBuiltin {
		if name, ok := r.curation.LookupName(string(translation)); ok {
			return Resolution{Canonical: name, Resolved: true, Method: MethodCuratedName}
		}
	}
	if name, ok := r.curation.LookupName(string(f)); ok {
		return Resolution{Canonical: name, Resolved: true, Method: MethodCuratedName}
	}
	if hasBuiltin {
		return Resolution{Canonical: translation, Method: MethodBuiltin}
	}
	return Resolution{Canonical: CanonicalName(strings.ToLower(string(f))), Method: MethodFallback}
}
