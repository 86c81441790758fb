package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/bootstrap"
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

type consolidateOptions struct {
	inputRoot       string
	outputRoot      string
	curationPath    string
	sinks           []string
	writeRejections bool
	concurrency     int
	docs            []string
}

// NewConsolidateCmd creates the consolidate command.
func NewConsolidateCmd() *cobra.Command {
	opts := &consolidateOptions{}

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Consolidate every document of a corpus",
		Long: "Reads <input-root>/<doc>/<doc>_raw_chem_counts.txt for each document, resolves the\n" +
			"tokens to canonical species names and writes the results to the configured sinks.",
		Example: `  gastm consolidate --input-root ./corpus --curation ./curated.csv
  gastm consolidate --sink fs --sink sqlite --doc paper-017 -o table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsolidate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.inputRoot, "input-root", "", "corpus directory (overrides storage.input_root)")
	f.StringVar(&opts.outputRoot, "output-root", "", "result directory (overrides storage.output_root)")
	f.StringVar(&opts.curationPath, "curation", "", "curation CSV file (overrides curation.path)")
	f.StringSliceVar(&opts.sinks, "sink", nil, "result sink, repeatable: fs|minio|sqlite|postgres|kafka")
	f.BoolVar(&opts.writeRejections, "write-rejections", false, "also write the per-document rejection file")
	f.IntVar(&opts.concurrency, "concurrency", 0, "documents processed in parallel (overrides worker.concurrency)")
	f.StringSliceVar(&opts.docs, "doc", nil, "only process these document ids, repeatable")
	return cmd
}

// applyConsolidateFlags overlays explicitly set flags on cfg.
func applyConsolidateFlags(cmd *cobra.Command, cfg *config.Config, opts *consolidateOptions) {
	f := cmd.Flags()
	if f.Changed("input-root") {
		cfg.Storage.Source = "localfs"
		cfg.Storage.InputRoot = opts.inputRoot
	}
	if f.Changed("output-root") {
		cfg.Storage.OutputRoot = opts.outputRoot
	}
	if f.Changed("curation") {
		cfg.Curation.Source = "file"
		cfg.Curation.Path = opts.curationPath
	}
	if f.Changed("sink") {
		cfg.Storage.Sinks = opts.sinks
	}
	if f.Changed("write-rejections") {
		cfg.Storage.WriteRejections = opts.writeRejections
	}
	if f.Changed("concurrency") {
		cfg.Worker.Concurrency = opts.concurrency
	}
}

func runConsolidate(cmd *cobra.Command, opts *consolidateOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	applyConsolidateFlags(cmd, cliCtx.Config, opts)
	if err := cliCtx.Config.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid configuration")
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	infra, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	src := infra.Source
	if len(opts.docs) > 0 {
		src = newDocumentFilter(src, opts.docs)
	}

	report, err := infra.Service.ProcessCorpus(ctx, src)
	if err != nil {
		return err
	}
	cliCtx.Logger.Info("corpus consolidated",
		logging.RunID(report.ID),
		logging.Int("documents", len(report.Documents)),
		logging.Int("failed", report.Failed))

	if err := PrintResult(cmd, runReportView{report}); err != nil {
		return err
	}
	if report.Failed > 0 {
		return errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("%d of %d documents failed", report.Failed, len(report.Documents)))
	}
	return nil
}

// documentFilter restricts a CorpusSource to an explicit document list.
type documentFilter struct {
	consolidation.CorpusSource
	keep []string
}

func newDocumentFilter(src consolidation.CorpusSource, docs []string) *documentFilter {
	return &documentFilter{CorpusSource: src, keep: docs}
}

func (f *documentFilter) ListDocuments(ctx context.Context) ([]string, error) {
	all, err := f.CorpusSource.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(all))
	for _, d := range all {
		present[d] = true
	}
	out := make([]string, 0, len(f.keep))
	for _, d := range f.keep {
		if !present[d] {
			return nil, errors.New(errors.ErrCodeDocumentNotFound, "document not in corpus").WithDetail(d)
		}
		out = append(out, d)
	}
	return out, nil
}

// runReportView renders a RunReport for the three output formats.
type runReportView struct {
	*consolidation.RunReport
}

func (v runReportView) TableHeaders() []string {
	return []string{"DOCUMENT", "STATUS", "SPECIES", "ACCEPTED", "REJECTED", "SKIPPED", "ERROR"}
}

func (v runReportView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Documents))
	for _, d := range v.Documents {
		rows = append(rows, []string{
			d.DocumentID,
			d.Status,
			strconv.Itoa(d.Stats.Species),
			strconv.Itoa(d.Stats.AcceptedCount),
			strconv.Itoa(d.Stats.RejectedCount),
			strconv.Itoa(d.Stats.SkippedRecords),
			d.Error,
		})
	}
	return rows
}

func (v runReportView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s  source=%s  curation=%s\n", v.ID, v.Source, curationLabel(v.CurationVersion, v.Degraded))
	fmt.Fprintf(&sb, "Documents: %d  succeeded: %d  cached: %d  failed: %d  (%s)\n",
		len(v.Documents), v.Succeeded, v.Cached, v.Failed, v.FinishedAt.Sub(v.StartedAt).Round(time.Millisecond))
	for _, d := range v.FailedDocuments() {
		fmt.Fprintf(&sb, "  FAILED %s: %s\n", d.DocumentID, d.Error)
	}
	return sb.String()
}

func curationLabel(version string, degraded bool) string {
	if degraded || version == "" {
		return "none (degraded)"
	}
	return version
}
