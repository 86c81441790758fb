package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/localfs"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

type scrubOptions struct {
	countsPath string
	textPath   string
	terms      []string
	outPath    string
}

// ScrubResult is the scrubbed text and the terms that were removed from it.
type ScrubResult struct {
	Removed []string `json:"removed"`
	Text    string   `json:"text"`
}

func (r ScrubResult) String() string { return r.Text }

// NewScrubCmd creates the scrub command.
func NewScrubCmd() *cobra.Command {
	opts := &scrubOptions{}
	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Remove rejected terms from a document's text",
		Long: "Classifies the tokens of a raw counts file and removes every whole-word occurrence\n" +
			"of the rejected ones from the given text.  The counts file and the text are read,\n" +
			"never modified; the result goes to stdout or --out.",
		Example: `  gastm scrub --counts doc/doc_raw_chem_counts.txt --text doc/doc.txt --out doc/doc_scrubbed.txt
  gastm scrub --reject Figure --reject BOLSIG < doc.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrub(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.countsPath, "counts", "", "raw counts file whose rejected tokens are removed")
	f.StringVar(&opts.textPath, "text", "", "text file to scrub (default: stdin)")
	f.StringSliceVar(&opts.terms, "reject", nil, "additional term to remove, repeatable")
	f.StringVar(&opts.outPath, "out", "", "write the scrubbed text to this file instead of stdout")
	return cmd
}

func runScrub(cmd *cobra.Command, opts *scrubOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if opts.countsPath == "" && len(opts.terms) == 0 {
		return errors.InvalidParam("nothing to remove; pass --counts or --reject")
	}

	terms := append([]string(nil), opts.terms...)
	if opts.countsPath != "" {
		rejected, err := rejectedTokens(cliCtx, opts.countsPath)
		if err != nil {
			return err
		}
		terms = append(terms, rejected...)
	}

	text, err := readText(cmd, opts.textPath)
	if err != nil {
		return err
	}
	res := ScrubResult{Removed: terms, Text: cc.ScrubText(text, terms)}

	if opts.outPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.outPath), 0o755); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create output directory")
		}
		if err := os.WriteFile(opts.outPath, []byte(res.Text), 0o644); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write scrubbed text").WithDetail(opts.outPath)
		}
		return PrintSuccess(cmd, "wrote "+opts.outPath)
	}
	if cliCtx.OutputFormat == "json" {
		return PrintResult(cmd, res)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), res.Text)
	return err
}

func rejectedTokens(cliCtx *CLIContext, path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to open counts file").WithDetail(path)
	}
	defer fh.Close()
	records, err := localfs.ParseRecords(fh)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read counts file").WithDetail(path)
	}
	p := consolidation.PipelineFromConfig(cliCtx.Config.Pipeline, cliCtx.Logger)
	return p.ProcessRecords(filepath.Base(path), records).RejectedTokens(), nil
}

func readText(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to read text").WithDetail(path)
	}
	return string(data), nil
}

// PrintSuccess writes a one-line confirmation to stderr so stdout stays
// machine-readable.
func PrintSuccess(cmd *cobra.Command, msg string) error {
	_, err := io.WriteString(cmd.ErrOrStderr(), msg+"\n")
	return err
}
