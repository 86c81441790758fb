package chem_consolidator

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type pipelineOptions struct {
	tables   ClassifierTables
	builtin  BuiltinFormulas
	curation *CurationTable
	logger   logging.Logger
}

// PipelineOption configures NewPipeline.
type PipelineOption func(*pipelineOptions)

// WithClassifierTables replaces the default classifier tables.
func WithClassifierTables(t ClassifierTables) PipelineOption {
	return func(o *pipelineOptions) { o.tables = t }
}

// WithBuiltinFormulas replaces the default built-in formula table.
func WithBuiltinFormulas(b BuiltinFormulas) PipelineOption {
	return func(o *pipelineOptions) { o.builtin = b }
}

// WithCurationTable supplies curated mappings.  Without it the pipeline runs
// in degraded mode.
func WithCurationTable(t *CurationTable) PipelineOption {
	return func(o *pipelineOptions) { o.curation = t }
}

// WithLogger sets the logger for record-level warnings.
func WithLogger(l logging.Logger) PipelineOption {
	return func(o *pipelineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline runs Normalize, Classify, Resolve and Aggregate for one document
// per call.  It only holds read-only tables and is safe for concurrent use.
type Pipeline struct {
	classifier  *Classifier
	resolver    *Resolver
	logger      logging.Logger
	fingerprint string
}

// NewPipeline builds a pipeline with default tables unless overridden.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	o := &pipelineOptions{
		tables:  DefaultClassifierTables(),
		builtin: DefaultBuiltinFormulas(),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	p := &Pipeline{
		classifier: NewClassifier(o.tables),
		resolver:   NewResolver(o.builtin, o.curation),
		logger:     o.logger,
	}
	p.fingerprint = tablesFingerprint(o.tables, p.classifier.maxLen, p.resolver.builtin)
	return p
}

// Classifier exposes the pipeline's classifier.
func (p *Pipeline) Classifier() *Classifier { return p.classifier }

// Resolver exposes the pipeline's resolver.
func (p *Pipeline) Resolver() *Resolver { return p.resolver }

// WithCuration returns a pipeline sharing p's classifier and built-in table
// but reading t.
func (p *Pipeline) WithCuration(t *CurationTable) *Pipeline {
	return &Pipeline{
		classifier:  p.classifier,
		resolver:    &Resolver{builtin: p.resolver.builtin, curation: t},
		logger:      p.logger,
		fingerprint: p.fingerprint,
	}
}

// Fingerprint identifies the classifier tables and built-in formula table the
// pipeline was built from.  Curated mappings are not included; see
// CurationTable.Version.
func (p *Pipeline) Fingerprint() string { return p.fingerprint }

func tablesFingerprint(t ClassifierTables, maxLen int, builtin BuiltinFormulas) string {
	h := sha256.New()
	section := func(name string, items []string) {
		sorted := append([]string(nil), items...)
		sort.Strings(sorted)
		h.Write([]byte(name))
		for _, it := range sorted {
			h.Write([]byte{0})
			h.Write([]byte(it))
		}
		h.Write([]byte{'\n'})
	}
	section("junk", t.JunkWords)
	section("glyphs", t.ReactionGlyphs)
	section("words", t.IrrelevantWords)
	section("symbols", t.IrrelevantSymbols)
	section("max", []string{strconv.Itoa(maxLen)})

	pairs := make([]string, 0, len(builtin))
	for k, v := range builtin {
		pairs = append(pairs, string(k)+"="+string(v))
	}
	section("builtin", pairs)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Process consolidates typed tokens.  Tokens with an empty text or a
// non-positive count are skipped with a warning.
func (p *Pipeline) Process(docID string, tokens []RawToken) *DocumentResult {
	agg := p.newAggregator(docID)
	for i, tok := range tokens {
		if msg := validateToken(tok.Text, tok.Count); msg != "" {
			p.skip(agg, docID, RecordWarning{
				Line:    i + 1,
				Token:   tok.Text,
				Count:   strconv.Itoa(tok.Count),
				Message: msg,
			})
			continue
		}
		if !p.step(agg, tok.Text, tok.Count) {
			p.skip(agg, docID, RecordWarning{
				Line:    i + 1,
				Token:   tok.Text,
				Count:   strconv.Itoa(tok.Count),
				Message: msgCountOverflow,
			})
		}
	}
	return p.finish(agg)
}

// ProcessRecords consolidates textual records, parsing each count as a
// base-10 integer.  Unparseable records are skipped with a warning and never
// abort the document.
func (p *Pipeline) ProcessRecords(docID string, records []RawRecord) *DocumentResult {
	agg := p.newAggregator(docID)
	for _, rec := range records {
		count, msg := parseCount(rec.Count)
		if msg == "" {
			msg = validateToken(rec.Token, count)
		}
		if msg != "" {
			p.skip(agg, docID, RecordWarning{
				Line:    rec.Line,
				Token:   rec.Token,
				Count:   rec.Count,
				Message: msg,
			})
			continue
		}
		if !p.step(agg, rec.Token, count) {
			p.skip(agg, docID, RecordWarning{
				Line:    rec.Line,
				Token:   rec.Token,
				Count:   rec.Count,
				Message: msgCountOverflow,
			})
		}
	}
	return p.finish(agg)
}

func (p *Pipeline) newAggregator(docID string) *Aggregator {
	agg := NewAggregator(docID)
	agg.result.Degraded = p.resolver.Degraded()
	return agg
}

const msgCountOverflow = "count overflows document total"

// step classifies and folds one token.  It reports false, leaving agg
// untouched, when count would push the accepted or rejected total past
// math.MaxInt.
func (p *Pipeline) step(agg *Aggregator, raw string, count int) bool {
	f, verdict := p.classifier.ClassifyToken(raw)
	if !verdict.Accepted {
		if !fitsSum(agg.result.Stats.RejectedCount, count) {
			return false
		}
		agg.Reject(raw, f, verdict.Reason, count)
		return true
	}
	if !fitsSum(agg.result.Stats.AcceptedCount, count) {
		return false
	}
	agg.Accept(raw, f, p.resolver.ResolveDetailed(f), count)
	return true
}

// fitsSum reports whether total+n stays within int for non-negative operands.
func fitsSum(total, n int) bool {
	return n <= math.MaxInt-total
}

func (p *Pipeline) skip(agg *Aggregator, docID string, w RecordWarning) {
	p.logger.Warn("skipping malformed record",
		logging.String("document_id", docID),
		logging.String("token", w.Token),
		logging.String("raw_count", w.Count),
		logging.Int("line", w.Line),
		logging.String("reason", w.Message),
		logging.String("code", errors.ErrCodeMalformedRecord.String()),
	)
	agg.Skip(w)
}

func (p *Pipeline) finish(agg *Aggregator) *DocumentResult {
	res := agg.Result()
	if res.Stats.Records == 0 {
		p.logger.Debug("document has no records",
			logging.String("document_id", res.DocumentID),
			logging.String("code", errors.ErrCodeEmptyInput.String()),
		)
	}
	return res
}

func parseCount(s string) (int, string) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, "count is not an integer"
	}
	return n, ""
}

func validateToken(text string, count int) string {
	if strings.TrimSpace(text) == "" {
		return "empty token"
	}
	if count <= 0 {
		return "count must be a positive integer"
	}
	return ""
}
