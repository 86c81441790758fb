// Package sqlite is the embedded result store.  It keeps the same tables as
// the PostgreSQL store in a single file, for laptops and CI runs that have no
// database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS consolidation_runs (
    id               TEXT PRIMARY KEY,
    source           TEXT    NOT NULL,
    curation_version TEXT    NOT NULL,
    degraded         INTEGER NOT NULL DEFAULT 0,
    started_at       TEXT    NOT NULL,
    finished_at      TEXT,
    succeeded        INTEGER NOT NULL DEFAULT 0,
    failed           INTEGER NOT NULL DEFAULT 0,
    cached           INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS document_results (
    run_id      TEXT    NOT NULL REFERENCES consolidation_runs (id) ON DELETE CASCADE,
    document_id TEXT    NOT NULL,
    degraded    INTEGER NOT NULL DEFAULT 0,
    stats       TEXT    NOT NULL DEFAULT '{}',
    warnings    TEXT    NOT NULL DEFAULT '[]',
    seq         INTEGER NOT NULL,
    PRIMARY KEY (run_id, document_id)
);
CREATE INDEX IF NOT EXISTS idx_document_results_document ON document_results (document_id, seq DESC);
CREATE TABLE IF NOT EXISTS species_counts (
    run_id      TEXT    NOT NULL,
    document_id TEXT    NOT NULL,
    position    INTEGER NOT NULL,
    species     TEXT    NOT NULL,
    count       INTEGER NOT NULL CHECK (count >= 0),
    PRIMARY KEY (run_id, document_id, species),
    FOREIGN KEY (run_id, document_id) REFERENCES document_results (run_id, document_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS resolution_trace (
    run_id      TEXT    NOT NULL,
    document_id TEXT    NOT NULL,
    position    INTEGER NOT NULL,
    raw         TEXT    NOT NULL,
    normalized  TEXT    NOT NULL,
    canonical   TEXT    NOT NULL,
    resolved    INTEGER NOT NULL,
    method      TEXT    NOT NULL,
    count       INTEGER NOT NULL,
    PRIMARY KEY (run_id, document_id, position),
    FOREIGN KEY (run_id, document_id) REFERENCES document_results (run_id, document_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS rejections (
    run_id      TEXT    NOT NULL,
    document_id TEXT    NOT NULL,
    position    INTEGER NOT NULL,
    raw         TEXT    NOT NULL,
    normalized  TEXT    NOT NULL,
    reason      TEXT    NOT NULL,
    count       INTEGER NOT NULL,
    PRIMARY KEY (run_id, document_id, position),
    FOREIGN KEY (run_id, document_id) REFERENCES document_results (run_id, document_id) ON DELETE CASCADE
);
`

// Store is a consolidation.ResultSink, RunRecorder and ResultStore backed by
// a SQLite file.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

var (
	_ consolidation.ResultSink  = (*Store)(nil)
	_ consolidation.RunRecorder = (*Store)(nil)
	_ consolidation.ResultStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at cfg.Path and applies the
// schema.  ":memory:" gives a private in-memory database.
func Open(ctx context.Context, cfg config.SQLiteConfig, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Path == "" {
		return nil, errors.InvalidParam("sqlite path is required")
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", cfg.Path, busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open sqlite database")
	}
	// One writer avoids SQLITE_BUSY between concurrent document writes, and
	// keeps a ":memory:" database on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to apply sqlite schema")
	}
	log.Info("Opened SQLite result store", logging.String("path", cfg.Path))
	return &Store{db: db, logger: log}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Ping checks that the database file is still usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "sqlite ping failed")
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun inserts the run row.  Re-beginning an existing run is a no-op.
func (s *Store) BeginRun(ctx context.Context, run consolidation.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consolidation_runs (id, source, curation_version, degraded, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		run.ID, run.Source, run.CurationVersion, run.Degraded, formatTime(run.StartedAt),
	)
	if err != nil {
		s.logger.Error("sqlite.BeginRun", logging.RunID(run.ID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert run")
	}
	return nil
}

// FinishRun stamps the run with its completion time and totals.
func (s *Store) FinishRun(ctx context.Context, report *consolidation.RunReport) error {
	if report == nil {
		return errors.InvalidParam("run report is nil")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE consolidation_runs
		SET finished_at = ?, succeeded = ?, failed = ?, cached = ?
		WHERE id = ?`,
		formatTime(report.FinishedAt), report.Succeeded, report.Failed, report.Cached, report.ID,
	)
	if err != nil {
		s.logger.Error("sqlite.FinishRun", logging.RunID(report.ID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("run not found").WithDetail(report.ID)
	}
	return nil
}

// WriteDocument replaces the stored result of res.DocumentID within run.
func (s *Store) WriteDocument(ctx context.Context, run consolidation.RunInfo, res *cc.DocumentResult) error {
	if res == nil {
		return errors.InvalidParam("document result is nil")
	}
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_results WHERE run_id = ? AND document_id = ?`,
		run.ID, res.DocumentID); err != nil {
		return s.queryErr("delete document", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_results (run_id, document_id, degraded, stats, warnings, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM document_results))`,
		run.ID, res.DocumentID, res.Degraded, string(statsJSON), string(warningsJSON)); err != nil {
		return s.queryErr("insert document", err)
	}

	if res.Counts != nil {
		for i, e := range res.Counts.Entries() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO species_counts (run_id, document_id, position, species, count)
				VALUES (?, ?, ?, ?, ?)`,
				run.ID, res.DocumentID, i, string(e.Name), e.Count); err != nil {
				return s.queryErr("insert species count", err)
			}
		}
	}
	for i, e := range res.Trace {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resolution_trace (run_id, document_id, position, raw, normalized, canonical, resolved, method, count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, res.DocumentID, i, e.Raw, string(e.Normalized), string(e.Canonical),
			e.Resolved, string(e.Method), e.Count); err != nil {
			return s.queryErr("insert trace entry", err)
		}
	}
	for i, rej := range res.Rejections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rejections (run_id, document_id, position, raw, normalized, reason, count)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, res.DocumentID, i, rej.Raw, string(rej.Normalized), string(rej.Reason), rej.Count); err != nil {
			return s.queryErr("insert rejection", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.queryErr("commit", err)
	}
	return nil
}

// LatestDocumentCounts returns the counts of the most recently written result
// for docID.
func (s *Store) LatestDocumentCounts(ctx context.Context, docID string) (string, *cc.DocumentCounts, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM document_results
		WHERE document_id = ?
		ORDER BY seq DESC
		LIMIT 1`, docID).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil, errors.New(errors.ErrCodeDocumentNotFound, "no stored result").WithDetail(docID)
	}
	if err != nil {
		return "", nil, s.queryErr("select latest document", err)
	}
	counts, err := s.DocumentCounts(ctx, runID, docID)
	if err != nil {
		return "", nil, err
	}
	return runID, counts, nil
}

// DocumentCounts returns the stored counts of docID in runID.
func (s *Store) DocumentCounts(ctx context.Context, runID, docID string) (*cc.DocumentCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT species, count FROM species_counts
		WHERE run_id = ? AND document_id = ?
		ORDER BY position`, runID, docID)
	if err != nil {
		return nil, s.queryErr("select species counts", err)
	}
	defer rows.Close()

	counts := cc.NewDocumentCounts()
	for rows.Next() {
		var (
			species string
			n       int
		)
		if err := rows.Scan(&species, &n); err != nil {
			return nil, s.queryErr("scan species count", err)
		}
		counts.Add(cc.CanonicalName(species), n)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("iterate species counts", err)
	}
	return counts, nil
}

// Trace returns the stored resolution trace of docID in runID.
func (s *Store) Trace(ctx context.Context, runID, docID string) (cc.ResolutionTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT raw, normalized, canonical, resolved, method, count FROM resolution_trace
		WHERE run_id = ? AND document_id = ?
		ORDER BY position`, runID, docID)
	if err != nil {
		return nil, s.queryErr("select trace", err)
	}
	defer rows.Close()

	var out cc.ResolutionTrace
	for rows.Next() {
		var (
			e                             cc.TraceEntry
			normalized, canonical, method string
		)
		if err := rows.Scan(&e.Raw, &normalized, &canonical, &e.Resolved, &method, &e.Count); err != nil {
			return nil, s.queryErr("scan trace entry", err)
		}
		e.Normalized = cc.NormalizedFormula(normalized)
		e.Canonical = cc.CanonicalName(canonical)
		e.Method = cc.ResolutionMethod(method)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("iterate trace", err)
	}
	return out, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]consolidation.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, curation_version, degraded, started_at, finished_at, succeeded, failed, cached
		FROM consolidation_runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, s.queryErr("select runs", err)
	}
	defer rows.Close()

	var out []consolidation.RunSummary
	for rows.Next() {
		var (
			r        consolidation.RunSummary
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.CurationVersion, &r.Degraded, &started,
			&finished, &r.Succeeded, &r.Failed, &r.Cached); err != nil {
			return nil, s.queryErr("scan run", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("iterate runs", err)
	}
	return out, nil
}

func (s *Store) queryErr(op string, err error) error {
	s.logger.Error("sqlite: "+op, logging.Err(err))
	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to "+op)
}

// Timestamps are stored as fixed-width UTC RFC 3339 so that text order is
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
