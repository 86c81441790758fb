// Package consolidation runs the species consolidation pipeline over a corpus
// of documents: it reads raw count records from a CorpusSource, fans the
// documents out over a bounded worker set, and hands every result to the
// configured ResultSinks.  A failing document is recorded in the RunReport
// and never aborts the others.
package consolidation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/prometheus"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/internal/intelligence/common"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// Document outcome statuses.
const (
	StatusOK     = "ok"
	StatusCached = "cached"
	StatusFailed = "failed"
)

// DocumentOutcome is the per-document line of a RunReport.
type DocumentOutcome struct {
	DocumentID string             `json:"document_id"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	ErrorCode  string             `json:"error_code,omitempty"`
	Stats      cc.Stats           `json:"stats"`
	DurationMs float64            `json:"duration_ms"`
	Attempts   int                `json:"attempts"`
	Result     *cc.DocumentResult `json:"-"`

	err error
}

// RunReport summarises one ProcessCorpus call.
type RunReport struct {
	RunInfo
	FinishedAt time.Time          `json:"finished_at"`
	Documents  []*DocumentOutcome `json:"documents"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Cached     int                `json:"cached"`
}

// FailedDocuments returns the outcomes that did not succeed.
func (r *RunReport) FailedDocuments() []*DocumentOutcome {
	var out []*DocumentOutcome
	for _, d := range r.Documents {
		if d.Status == StatusFailed {
			out = append(out, d)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option configures a Service.
type Option func(*Service)

// WithSinks sets the result sinks, written in order.
func WithSinks(sinks ...ResultSink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRunLock makes ProcessCorpus hold a lock named after the source for
// the duration of the run.
func WithRunLock(l RunLocker) Option {
	return func(s *Service) { s.locker = l }
}

// WithCurationProvider sets where the curation table comes from.
func WithCurationProvider(p CurationProvider) Option {
	return func(s *Service) {
		if p != nil {
			s.curation = p
		}
	}
}

// WithMetrics records run metrics on m.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency bounds the number of documents processed at once.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.batchOpts = append(s.batchOpts, common.WithMaxConcurrency(n)) }
}

// WithDocumentTimeout bounds the processing of a single document.
func WithDocumentTimeout(d time.Duration) Option {
	return func(s *Service) { s.batchOpts = append(s.batchOpts, common.WithItemTimeout(d)) }
}

// WithRetry retries failed documents.  Missing documents are never retried.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(s *Service) {
		if maxRetries <= 0 {
			return
		}
		s.batchOpts = append(s.batchOpts, common.WithRetryPolicyFull(&common.RetryPolicy{
			MaxRetries:        maxRetries,
			InitialBackoff:    backoff,
			MaxBackoff:        backoff * 16,
			BackoffMultiplier: 2,
			Retryable: func(err error) bool {
				return !errors.IsCode(err, errors.ErrCodeDocumentNotFound)
			},
		}))
	}
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service consolidates documents.  It is safe for concurrent use.
type Service struct {
	pipeline  *cc.Pipeline
	curation  CurationProvider
	sinks     []ResultSink
	cache     ResultCache
	locker    RunLocker
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	batchOpts []common.BatchOption
}

// NewService wraps pipeline.  The pipeline's own curation table is replaced by
// the provider's snapshot at the start of each run.
func NewService(pipeline *cc.Pipeline, opts ...Option) *Service {
	if pipeline == nil {
		pipeline = cc.NewPipeline()
	}
	s := &Service{
		pipeline: pipeline,
		curation: StaticCuration{Table: pipeline.Resolver().Curation()},
		metrics:  prometheus.NewNopMetrics(),
		logger:   logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.batchOpts = append(s.batchOpts, common.WithBatchLogger(s.logger))
	return s
}

// Pipeline returns the pipeline bound to the current curation snapshot.
func (s *Service) Pipeline() *cc.Pipeline {
	return s.pipeline.WithCuration(s.curation.Current())
}

// Curation returns the current curation snapshot, nil when degraded.
func (s *Service) Curation() *cc.CurationTable {
	return s.curation.Current()
}

// ProcessCorpus consolidates every document of src.  The returned error is
// non-nil only when the run itself could not start; per-document failures
// are reported in the RunReport.
func (s *Service) ProcessCorpus(ctx context.Context, src CorpusSource) (*RunReport, error) {
	if src == nil {
		return nil, errors.InvalidParam("corpus source must not be nil")
	}
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "corpus:"+src.Name())
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release run lock", logging.String("source", src.Name()), logging.Err(err))
			}
		}()
	}
	docs, err := src.ListDocuments(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to list documents")
	}
	return s.run(ctx, src, docs)
}

// ProcessDocument consolidates a single document held in memory and persists
// it like a one-document run.
func (s *Service) ProcessDocument(ctx context.Context, docID string, records []cc.RawRecord) (*cc.DocumentResult, error) {
	if docID == "" {
		return nil, errors.InvalidParam("document id must not be empty")
	}
	src := NewMemorySource("memory", map[string][]cc.RawRecord{docID: records})
	report, err := s.run(ctx, src, []string{docID})
	if err != nil {
		return nil, err
	}
	out := report.Documents[0]
	if out.err != nil {
		return out.Result, out.err
	}
	return out.Result, nil
}

func (s *Service) run(ctx context.Context, src CorpusSource, docs []string) (*RunReport, error) {
	curation := s.curation.Current()
	pipeline := s.pipeline.WithCuration(curation)
	info := RunInfo{
		ID:              uuid.NewString(),
		Source:          src.Name(),
		StartedAt:       time.Now().UTC(),
		CurationVersion: curation.Version(),
		Degraded:        curation == nil,
	}
	log := s.logger.With(logging.RunID(info.ID), logging.String("source", info.Source))
	if info.Degraded {
		log.Warn("no curation table, resolving with built-in table and fallback only",
			logging.String("code", string(errors.ErrCodeMissingCurationTable)))
	}

	for _, sink := range s.sinks {
		if rr, ok := sink.(RunRecorder); ok {
			if err := rr.BeginRun(ctx, info); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeResultPersistFailed,
					fmt.Sprintf("sink %s: failed to record run", sink.Name()))
			}
		}
	}

	bp := common.NewBatchProcessor[string, *DocumentOutcome](s.batchOpts...)
	batch, err := bp.Process(ctx, docs, func(ctx context.Context, docID string) (*DocumentOutcome, error) {
		return s.processOne(ctx, info, pipeline, src, docID)
	})
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunInfo: info, Documents: make([]*DocumentOutcome, len(docs))}
	for i, item := range batch.Results {
		out := item.Result
		if out == nil {
			out = &DocumentOutcome{DocumentID: docs[i]}
		}
		out.Attempts = item.Attempts
		out.DurationMs = item.DurationMs
		if item.Error != nil {
			out.err = item.Error
			out.Status = StatusFailed
			out.Error = item.Error.Error()
			out.ErrorCode = string(errors.GetCode(item.Error))
			s.metrics.RecordDocument(info.Source, StatusFailed, time.Duration(item.DurationMs*float64(time.Millisecond)), 0)
			s.metrics.RecordError("consolidation", out.ErrorCode)
			log.Error("document failed", logging.DocumentID(docs[i]), logging.Err(item.Error),
				logging.String("status", item.Status.String()))
		}
		switch out.Status {
		case StatusFailed:
			report.Failed++
		case StatusCached:
			report.Cached++
			report.Succeeded++
		default:
			report.Succeeded++
		}
		report.Documents[i] = out
	}
	report.FinishedAt = time.Now().UTC()

	for _, sink := range s.sinks {
		if rr, ok := sink.(RunRecorder); ok {
			if err := rr.FinishRun(ctx, report); err != nil {
				log.Error("failed to finalise run", logging.String("sink", sink.Name()), logging.Err(err))
			}
		}
	}

	log.Info("run finished",
		logging.Int("documents", len(docs)),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("cached", report.Cached),
		logging.String("curation_version", info.CurationVersion))
	return report, nil
}

// processOne reads, consolidates and persists one document.  The outcome is
// returned alongside an error so the failed document keeps whatever result
// was produced before the failure.
func (s *Service) processOne(ctx context.Context, run RunInfo, p *cc.Pipeline, src CorpusSource, docID string) (*DocumentOutcome, error) {
	start := time.Now()
	out := &DocumentOutcome{DocumentID: docID, Status: StatusOK}

	records, err := src.ReadRecords(ctx, docID)
	if err != nil {
		return out, errors.Wrap(err, errors.CodeUnknown, "failed to read records")
	}

	key := CacheKey(docID, records, p.Fingerprint(), run.CurationVersion)
	res := s.cacheGet(ctx, key)
	if res != nil {
		out.Status = StatusCached
	} else {
		res = p.ProcessRecords(docID, records)
	}
	out.Result = res
	out.Stats = res.Stats

	if err := ctx.Err(); err != nil {
		return out, err
	}
	for _, sink := range s.sinks {
		if err := sink.WriteDocument(ctx, run, res); err != nil {
			return out, errors.Wrap(err, errors.ErrCodeResultPersistFailed,
				fmt.Sprintf("sink %s: failed to write result", sink.Name()))
		}
	}
	if out.Status == StatusOK {
		s.cacheSet(ctx, key, res)
	}

	s.recordMetrics(run.Source, out.Status, res, time.Since(start))
	s.logger.Info("document consolidated",
		logging.RunID(run.ID),
		logging.DocumentID(docID),
		logging.Int("kept", res.Stats.AcceptedRecords),
		logging.Int("removed", res.Stats.RejectedRecords),
		logging.Int("skipped", res.Stats.SkippedRecords),
		logging.Int("final_species", res.Stats.Species),
		logging.Bool("cached", out.Status == StatusCached))
	return out, nil
}

func (s *Service) cacheGet(ctx context.Context, key string) *cc.DocumentResult {
	if s.cache == nil {
		return nil
	}
	res, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("result cache read failed", logging.String("key", key), logging.Err(err))
		s.metrics.RecordError("cache", string(errors.ErrCodeCacheError))
		return nil
	}
	s.metrics.RecordCacheAccess("results", res != nil)
	return res
}

func (s *Service) cacheSet(ctx context.Context, key string, res *cc.DocumentResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, res); err != nil {
		s.logger.Warn("result cache write failed", logging.String("key", key), logging.Err(err))
		s.metrics.RecordError("cache", string(errors.ErrCodeCacheError))
	}
}

func (s *Service) recordMetrics(source, status string, res *cc.DocumentResult, d time.Duration) {
	s.metrics.RecordDocument(source, status, d, res.Stats.Species)
	if status == StatusCached {
		return
	}
	if res.Stats.AcceptedRecords > 0 {
		s.metrics.RecordClassification(true, "", res.Stats.AcceptedRecords)
	}
	for _, rej := range res.Rejections {
		s.metrics.RecordClassification(false, string(rej.Reason), 1)
	}
	for _, e := range res.Trace {
		s.metrics.RecordResolution(string(e.Method), 1)
	}
	if n := len(res.Warnings); n > 0 {
		s.metrics.RecordSkipped("malformed_record", n)
	}
}

// CacheKey identifies a document result by document id, record content,
// pipeline table fingerprint and curation version.
func CacheKey(docID string, records []cc.RawRecord, tablesFingerprint, curationVersion string) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(r.Token))
		h.Write([]byte{0})
		h.Write([]byte(r.Count))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("doc:%s:%s:%s:%s", docID, hex.EncodeToString(h.Sum(nil))[:16], tablesFingerprint, curationVersion)
}
