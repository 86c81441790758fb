package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/bootstrap"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// readTokens collects tokens from args, from --file (one per line) and from
// stdin when an argument is "-".
func readTokens(cmd *cobra.Command, args []string, file string) ([]string, error) {
	var tokens []string
	for _, a := range args {
		if a != "-" {
			tokens = append(tokens, a)
			continue
		}
		lines, err := readLines(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, lines...)
	}
	if file != "" {
		fh, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to open token file").WithDetail(file)
		}
		defer fh.Close()
		lines, err := readLines(fh)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, lines...)
	}
	if len(tokens) == 0 {
		return nil, errors.InvalidParam("no tokens given; pass them as arguments, with --file, or - for stdin")
	}
	return tokens, nil
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read tokens")
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// normalize
// ---------------------------------------------------------------------------

// NormalizeResult is one normalized token.
type NormalizeResult struct {
	Raw        string               `json:"raw"`
	Normalized cc.NormalizedFormula `json:"normalized"`
}

type normalizeResults []NormalizeResult

func (r normalizeResults) TableHeaders() []string { return []string{"RAW", "NORMALIZED"} }

func (r normalizeResults) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, n := range r {
		rows = append(rows, []string{n.Raw, string(n.Normalized)})
	}
	return rows
}

func (r normalizeResults) String() string {
	var sb strings.Builder
	for _, n := range r {
		fmt.Fprintf(&sb, "%s\t%s\n", n.Raw, n.Normalized)
	}
	return sb.String()
}

// NewNormalizeCmd creates the normalize command.
func NewNormalizeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "normalize [token...]",
		Short:   "Print the normalized form of tokens",
		Example: "  gastm normalize 'O₂⁺' 'NO_x'\n  cat tokens.txt | gastm normalize -",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := readTokens(cmd, args, file)
			if err != nil {
				return err
			}
			out := make(normalizeResults, 0, len(tokens))
			for _, t := range tokens {
				out = append(out, NormalizeResult{Raw: t, Normalized: cc.Normalize(t)})
			}
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read tokens from file, one per line")
	return cmd
}

// ---------------------------------------------------------------------------
// classify
// ---------------------------------------------------------------------------

// ClassifyResult is one classified token.
type ClassifyResult struct {
	Raw        string               `json:"raw"`
	Normalized cc.NormalizedFormula `json:"normalized"`
	Accepted   bool                 `json:"accepted"`
	Reason     cc.RejectionReason   `json:"reason,omitempty"`
}

type classifyResults []ClassifyResult

func (r classifyResults) TableHeaders() []string {
	return []string{"RAW", "NORMALIZED", "VERDICT", "REASON"}
}

func (r classifyResults) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, c := range r {
		verdict := "accepted"
		if !c.Accepted {
			verdict = "rejected"
		}
		rows = append(rows, []string{c.Raw, string(c.Normalized), verdict, string(c.Reason)})
	}
	return rows
}

func (r classifyResults) String() string {
	var sb strings.Builder
	for _, c := range r {
		fmt.Fprintf(&sb, "%s\t%s\n", c.Raw, cc.Verdict{Accepted: c.Accepted, Reason: c.Reason})
	}
	return sb.String()
}

// NewClassifyCmd creates the classify command.
func NewClassifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "classify [token...]",
		Short:   "Show whether tokens are accepted as species or rejected, and why",
		Example: "  gastm classify CH4 'A + B' Figure -o table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			tokens, err := readTokens(cmd, args, file)
			if err != nil {
				return err
			}
			classifier := consolidation.PipelineFromConfig(cliCtx.Config.Pipeline, cliCtx.Logger).Classifier()
			out := make(classifyResults, 0, len(tokens))
			for _, t := range tokens {
				f, v := classifier.ClassifyToken(t)
				out = append(out, ClassifyResult{Raw: t, Normalized: f, Accepted: v.Accepted, Reason: v.Reason})
			}
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read tokens from file, one per line")
	return cmd
}

// ---------------------------------------------------------------------------
// resolve
// ---------------------------------------------------------------------------

// ResolveResult is one token taken through classification and resolution.
// Rejected tokens carry a Reason and no canonical name.
type ResolveResult struct {
	Raw        string               `json:"raw"`
	Normalized cc.NormalizedFormula `json:"normalized"`
	Accepted   bool                 `json:"accepted"`
	Reason     cc.RejectionReason   `json:"reason,omitempty"`
	Canonical  cc.CanonicalName     `json:"canonical,omitempty"`
	Resolved   bool                 `json:"resolved"`
	Method     cc.ResolutionMethod  `json:"method,omitempty"`
}

type resolveResults []ResolveResult

func (r resolveResults) TableHeaders() []string {
	return []string{"RAW", "NORMALIZED", "CANONICAL", "METHOD", "RESOLVED"}
}

func (r resolveResults) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, x := range r {
		if !x.Accepted {
			rows = append(rows, []string{x.Raw, string(x.Normalized), "-", "rejected(" + string(x.Reason) + ")", "false"})
			continue
		}
		rows = append(rows, []string{x.Raw, string(x.Normalized), string(x.Canonical), string(x.Method), strconv.FormatBool(x.Resolved)})
	}
	return rows
}

func (r resolveResults) String() string {
	var sb strings.Builder
	for _, x := range r {
		switch {
		case !x.Accepted:
			fmt.Fprintf(&sb, "%s => rejected(%s)\n", x.Raw, x.Reason)
		default:
			sb.WriteString(cc.TraceEntry{Raw: x.Raw, Canonical: x.Canonical, Resolved: x.Resolved}.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	var (
		file         string
		curationPath string
	)
	cmd := &cobra.Command{
		Use:   "resolve [token...]",
		Short: "Resolve tokens to canonical species names",
		Long: "Classifies each token and resolves the accepted ones through the built-in table,\n" +
			"the curation table and the lowercase fallback, printing the lookup that matched.",
		Example: "  gastm resolve O2 'atomic oxygen ion' NOX --curation curated.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			tokens, err := readTokens(cmd, args, file)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if cmd.Flags().Changed("curation") {
				cfg.Curation.Source = "file"
				cfg.Curation.Path = curationPath
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			infra, err := bootstrap.Build(ctx, cfg, cliCtx.Logger, bootstrap.WithoutSinks(), bootstrap.WithoutRedis())
			if err != nil {
				return err
			}
			defer infra.Close()

			p := infra.Service.Pipeline()
			out := make(resolveResults, 0, len(tokens))
			for _, t := range tokens {
				f, v := p.Classifier().ClassifyToken(t)
				res := ResolveResult{Raw: t, Normalized: f, Accepted: v.Accepted, Reason: v.Reason}
				if v.Accepted {
					r := p.Resolver().ResolveDetailed(f)
					res.Canonical, res.Resolved, res.Method = r.Canonical, r.Resolved, r.Method
				}
				out = append(out, res)
			}
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read tokens from file, one per line")
	cmd.Flags().StringVar(&curationPath, "curation", "", "curation CSV file (overrides curation.path)")
	return cmd
}
