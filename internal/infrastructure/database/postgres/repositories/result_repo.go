// Package repositories holds the PostgreSQL persistence for consolidation
// runs and per-document results.
package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ResultRepository writes document results to PostgreSQL.  It is both a
// consolidation.ResultSink and a consolidation.RunRecorder.
type ResultRepository struct {
	db     DB
	logger logging.Logger
}

var (
	_ consolidation.ResultSink  = (*ResultRepository)(nil)
	_ consolidation.RunRecorder = (*ResultRepository)(nil)
	_ consolidation.ResultStore = (*ResultRepository)(nil)
)

// NewResultRepository constructs a ResultRepository over db.
func NewResultRepository(db DB, logger logging.Logger) *ResultRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResultRepository{db: db, logger: logger}
}

func (r *ResultRepository) Name() string { return "postgres" }

// BeginRun inserts the run row.  Re-beginning an existing run is a no-op.
func (r *ResultRepository) BeginRun(ctx context.Context, run consolidation.RunInfo) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO consolidation_runs (id, source, curation_version, degraded, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		run.ID, run.Source, run.CurationVersion, run.Degraded, run.StartedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("ResultRepository.BeginRun", logging.RunID(run.ID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert run")
	}
	return nil
}

// FinishRun stamps the run with its completion time and totals.
func (r *ResultRepository) FinishRun(ctx context.Context, report *consolidation.RunReport) error {
	if report == nil {
		return errors.InvalidParam("run report is nil")
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE consolidation_runs
		SET finished_at = $2, succeeded = $3, failed = $4, cached = $5
		WHERE id = $1`,
		report.ID, report.FinishedAt.UTC(), report.Succeeded, report.Failed, report.Cached,
	)
	if err != nil {
		r.logger.Error("ResultRepository.FinishRun", logging.RunID(report.ID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update run")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("run not found").WithDetail(report.ID)
	}
	return nil
}

// WriteDocument replaces the stored result of res.DocumentID within run in a
// single transaction.
func (r *ResultRepository) WriteDocument(ctx context.Context, run consolidation.RunInfo, res *cc.DocumentResult) error {
	if res == nil {
		return errors.InvalidParam("document result is nil")
	}
	r.logger.Debug("ResultRepository.WriteDocument", logging.RunID(run.ID), logging.DocumentID(res.DocumentID))

	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode stats")
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []cc.RecordWarning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode warnings")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("ResultRepository.WriteDocument: begin tx", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Deleting the parent row cascades to counts, trace and rejections.
	if _, err := tx.Exec(ctx,
		`DELETE FROM document_results WHERE run_id = $1 AND document_id = $2`,
		run.ID, res.DocumentID,
	); err != nil {
		return r.queryErr("delete document", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO document_results (run_id, document_id, degraded, stats, warnings)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, res.DocumentID, res.Degraded, statsJSON, warningsJSON,
	); err != nil {
		return r.queryErr("insert document", err)
	}

	if err := r.copyRows(ctx, tx, "species_counts",
		[]string{"run_id", "document_id", "position", "species", "count"},
		speciesRows(run.ID, res)); err != nil {
		return err
	}
	if err := r.copyRows(ctx, tx, "resolution_trace",
		[]string{"run_id", "document_id", "position", "raw", "normalized", "canonical", "resolved", "method", "count"},
		traceRows(run.ID, res)); err != nil {
		return err
	}
	if err := r.copyRows(ctx, tx, "rejections",
		[]string{"run_id", "document_id", "position", "raw", "normalized", "reason", "count"},
		rejectionRows(run.ID, res)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("ResultRepository.WriteDocument: commit", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

func (r *ResultRepository) copyRows(ctx context.Context, tx pgx.Tx, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rows)); err != nil {
		return r.queryErr("copy "+table, err)
	}
	return nil
}

func (r *ResultRepository) queryErr(op string, err error) error {
	r.logger.Error("ResultRepository: "+op, logging.Err(err))
	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to "+op)
}

// LatestDocumentCounts returns the counts of the most recent stored result
// for docID, in insertion order.
func (r *ResultRepository) LatestDocumentCounts(ctx context.Context, docID string) (string, *cc.DocumentCounts, error) {
	var runID string
	err := r.db.QueryRow(ctx, `
		SELECT run_id FROM document_results
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, docID).Scan(&runID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil, errors.New(errors.ErrCodeDocumentNotFound, "no stored result").WithDetail(docID)
		}
		return "", nil, r.queryErr("select latest document", err)
	}

	counts, err := r.DocumentCounts(ctx, runID, docID)
	if err != nil {
		return "", nil, err
	}
	return runID, counts, nil
}

// DocumentCounts returns the stored counts of docID in runID.
func (r *ResultRepository) DocumentCounts(ctx context.Context, runID, docID string) (*cc.DocumentCounts, error) {
	rows, err := r.db.Query(ctx, `
		SELECT species, count FROM species_counts
		WHERE run_id = $1 AND document_id = $2
		ORDER BY position`, runID, docID)
	if err != nil {
		return nil, r.queryErr("select species counts", err)
	}
	defer rows.Close()

	counts := cc.NewDocumentCounts()
	for rows.Next() {
		var (
			species string
			n       int
		)
		if err := rows.Scan(&species, &n); err != nil {
			return nil, r.queryErr("scan species count", err)
		}
		counts.Add(cc.CanonicalName(species), n)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryErr("iterate species counts", err)
	}
	return counts, nil
}

// ListRuns returns up to limit runs, newest first.
func (r *ResultRepository) ListRuns(ctx context.Context, limit int) ([]consolidation.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, source, curation_version, degraded, started_at, finished_at, succeeded, failed, cached
		FROM consolidation_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, r.queryErr("select runs", err)
	}
	defer rows.Close()

	var out []consolidation.RunSummary
	for rows.Next() {
		var s consolidation.RunSummary
		if err := rows.Scan(&s.ID, &s.Source, &s.CurationVersion, &s.Degraded, &s.StartedAt,
			&s.FinishedAt, &s.Succeeded, &s.Failed, &s.Cached); err != nil {
			return nil, r.queryErr("scan run", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryErr("iterate runs", err)
	}
	return out, nil
}

func speciesRows(runID string, res *cc.DocumentResult) [][]any {
	if res.Counts == nil {
		return nil
	}
	entries := res.Counts.Entries()
	rows := make([][]any, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []any{runID, res.DocumentID, int32(i), string(e.Name), int32(e.Count)})
	}
	return rows
}

func traceRows(runID string, res *cc.DocumentResult) [][]any {
	rows := make([][]any, 0, len(res.Trace))
	for i, e := range res.Trace {
		rows = append(rows, []any{runID, res.DocumentID, int32(i), e.Raw, string(e.Normalized),
			string(e.Canonical), e.Resolved, string(e.Method), int32(e.Count)})
	}
	return rows
}

func rejectionRows(runID string, res *cc.DocumentResult) [][]any {
	rows := make([][]any, 0, len(res.Rejections))
	for i, rej := range res.Rejections {
		rows = append(rows, []any{runID, res.DocumentID, int32(i), rej.Raw, string(rej.Normalized),
			string(rej.Reason), int32(rej.Count)})
	}
	return rows
}
