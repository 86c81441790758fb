// Package chem_consolidator folds the noisy species strings extracted from a
// scientific document into a canonical, de-duplicated count table.
//
// Processing is a fixed chain per document:
//
//	Normalize -> Classify -> Resolve -> Aggregate
//
// Every stage is a pure function over read-only tables.  A Pipeline holds no
// per-document state and can be shared by any number of goroutines.
package chem_consolidator

import (
	"fmt"
)

// NormalizedFormula is a token after surface normalization: upper-case, no
// whitespace or underscores, ASCII digits, no charge markers.
type NormalizedFormula string

// CanonicalName is the lower-case, qualifier-free species label that counts
// are aggregated under.
type CanonicalName string

// RejectionReason names the first classifier check a token failed.
type RejectionReason string

const (
	ReasonNone             RejectionReason = ""
	ReasonJunkVocabulary   RejectionReason = "junk-vocabulary"
	ReasonReactionLike     RejectionReason = "reaction-like"
	ReasonIrrelevant       RejectionReason = "irrelevant-symbol-or-word"
	ReasonMalformedFormula RejectionReason = "malformed-formula-shape"
)

// AllRejectionReasons lists reasons in classifier precedence order.
var AllRejectionReasons = []RejectionReason{
	ReasonJunkVocabulary,
	ReasonReactionLike,
	ReasonIrrelevant,
	ReasonMalformedFormula,
}

// Verdict is the classifier outcome for one token.
type Verdict struct {
	Accepted bool            `json:"accepted"`
	Reason   RejectionReason `json:"reason,omitempty"`
}

// Accept is the verdict for a token that passed every check.
func Accept() Verdict { return Verdict{Accepted: true} }

// Reject is the verdict for a token that failed check r.
func Reject(r RejectionReason) Verdict { return Verdict{Reason: r} }

func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return fmt.Sprintf("rejected(%s)", v.Reason)
}

// ResolutionMethod records which lookup produced a canonical name.
type ResolutionMethod string

const (
	MethodBuiltin        ResolutionMethod = "builtin"
	MethodCuratedFormula ResolutionMethod = "curated_formula"
	MethodCuratedName    ResolutionMethod = "curated_name"
	MethodFallback       ResolutionMethod = "fallback"
)

// Resolution is the full resolver outcome for one normalized formula.
type Resolution struct {
	Canonical CanonicalName    `json:"canonical"`
	Resolved  bool             `json:"resolved"`
	Method    ResolutionMethod `json:"method"`
}

// ---------------------------------------------------------------------------
// Input shapes
// ---------------------------------------------------------------------------

// RawToken is an extracted species string with its occurrence count in one
// document.
type RawToken struct {
	Text  string `json:"token"`
	Count int    `json:"count"`
}

// RawRecord is a (token, count) pair as it arrives from a file, an HTTP body
// or a queue message, before the count has been parsed.
type RawRecord struct {
	Token string `json:"token"`
	Count string `json:"count"`
	// Line is the 1-based source line, 0 when unknown.
	Line int `json:"line,omitempty"`
}

// ---------------------------------------------------------------------------
// Output shapes
// ---------------------------------------------------------------------------

// TraceEntry records how one accepted token was resolved.
type TraceEntry struct {
	Raw        string            `json:"raw"`
	Normalized NormalizedFormula `json:"normalized"`
	Canonical  CanonicalName     `json:"canonical"`
	Resolved   bool              `json:"resolved"`
	Method     ResolutionMethod  `json:"method"`
	Count      int               `json:"count"`
}

// String renders the entry as a mapping-file line.
func (e TraceEntry) String() string {
	if e.Resolved {
		return fmt.Sprintf("%s => %s", e.Raw, e.Canonical)
	}
	return fmt.Sprintf("%s => [UNRESOLVED] (%s)", e.Raw, e.Canonical)
}

// ResolutionTrace is the input-ordered, append-only audit of every token that
// reached the resolver.
type ResolutionTrace []TraceEntry

// Unresolved returns the entries that fell through to a non-curated name.
func (t ResolutionTrace) Unresolved() ResolutionTrace {
	var out ResolutionTrace
	for _, e := range t {
		if !e.Resolved {
			out = append(out, e)
		}
	}
	return out
}

// Rejection annotates a token the classifier refused.  Rejections never
// modify any text; see ScrubText for an explicit downstream transform.
type Rejection struct {
	Raw        string            `json:"raw"`
	Normalized NormalizedFormula `json:"normalized"`
	Reason     RejectionReason   `json:"reason"`
	Count      int               `json:"count"`
}

// RecordWarning describes a record that was skipped as malformed.
type RecordWarning struct {
	Line    int    `json:"line,omitempty"`
	Token   string `json:"token"`
	Count   string `json:"count"`
	Message string `json:"message"`
}

func (w RecordWarning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %q count %q: %s", w.Line, w.Token, w.Count, w.Message)
	}
	return fmt.Sprintf("%q count %q: %s", w.Token, w.Count, w.Message)
}

// Stats summarises one document run.
type Stats struct {
	Records         int `json:"records"`
	AcceptedRecords int `json:"accepted_records"`
	RejectedRecords int `json:"rejected_records"`
	SkippedRecords  int `json:"skipped_records"`
	AcceptedCount   int `json:"accepted_count"`
	RejectedCount   int `json:"rejected_count"`
	ResolvedRecords int `json:"resolved_records"`
	Species         int `json:"species"`
}

// DocumentResult is everything the pipeline produces for one document.
type DocumentResult struct {
	DocumentID string          `json:"document_id"`
	Counts     *DocumentCounts `json:"counts"`
	Trace      ResolutionTrace `json:"trace"`
	Rejections []Rejection     `json:"rejections"`
	Warnings   []RecordWarning `json:"warnings,omitempty"`
	Stats      Stats           `json:"stats"`
	// Degraded is set when no curation table was available.
	Degraded bool `json:"degraded,omitempty"`
}

// RejectedTokens returns the distinct raw strings of all rejections, in
// first-seen order.
func (r *DocumentResult) RejectedTokens() []string {
	seen := make(map[string]bool, len(r.Rejections))
	out := make([]string, 0, len(r.Rejections))
	for _, rej := range r.Rejections {
		if seen[rej.Raw] {
			continue
		}
		seen[rej.Raw] = true
		out = append(out, rej.Raw)
	}
	return out
}
