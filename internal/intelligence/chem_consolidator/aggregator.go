package chem_consolidator

// Aggregator folds classified, resolved tokens of one document into counts
// and an audit trail.  It is single-use and not safe for concurrent use.
type Aggregator struct {
	result *DocumentResult
}

// NewAggregator starts an empty result for docID.
func NewAggregator(docID string) *Aggregator {
	return &Aggregator{result: &DocumentResult{
		DocumentID: docID,
		Counts:     NewDocumentCounts(),
		Trace:      ResolutionTrace{},
		Rejections: []Rejection{},
	}}
}

// Accept sums count under the resolved name and appends a trace entry.
func (a *Aggregator) Accept(raw string, f NormalizedFormula, res Resolution, count int) {
	r := a.result
	r.Counts.Add(res.Canonical, count)
	r.Trace = append(r.Trace, TraceEntry{
		Raw:        raw,
		Normalized: f,
		Canonical:  res.Canonical,
		Resolved:   res.Resolved,
		Method:     res.Method,
		Count:      count,
	})
	r.Stats.Records++
	r.Stats.AcceptedRecords++
	r.Stats.AcceptedCount += count
	if res.Resolved {
		r.Stats.ResolvedRecords++
	}
}

// Reject records a classifier rejection.  Rejected tokens never reach the
// counts or the trace.
func (a *Aggregator) Reject(raw string, f NormalizedFormula, reason RejectionReason, count int) {
	r := a.result
	r.Rejections = append(r.Rejections, Rejection{
		Raw:        raw,
		Normalized: f,
		Reason:     reason,
		Count:      count,
	})
	r.Stats.Records++
	r.Stats.RejectedRecords++
	r.Stats.RejectedCount += count
}

// Skip records a malformed record.
func (a *Aggregator) Skip(w RecordWarning) {
	a.result.Warnings = append(a.result.Warnings, w)
	a.result.Stats.Records++
	a.result.Stats.SkippedRecords++
}

// Result finalises and returns the document result.
func (a *Aggregator) Result() *DocumentResult {
	a.result.Stats.Species = a.result.Counts.Len()
	return a.result
}
