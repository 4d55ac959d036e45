package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/logging"
)

var (
	analyzeFlags     AnalysisFlags
	analyzeOutput    string
	analyzeFailUnder int
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze [file...]",
	Aliases: []string{"a"},
	Short:   "Analyze source files",
	Long: `Score source files for quality, security, performance and documentation
coverage. With no files, or "-", the source is read from standard input.

Examples:
  sentra analyze main.go                   # Every analysis
  sentra analyze --kind security app.py    # Security only
  sentra analyze -o json src/*.ts          # JSON report per file
  cat page.html | sentra analyze --language html
  sentra analyze --fail-under 80 main.go   # Exit non-zero below 80`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	addAnalysisFlags(analyzeCmd, &analyzeFlags)
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", formatText, "Output format (text, json, yaml)")
	analyzeCmd.Flags().IntVar(&analyzeFailUnder, "fail-under", 0, "Fail when any overall score is below this value")

	AddFlagValidation(analyzeCmd, "output", ValidateOneOf(outputFormats...))
	AddFlagValidation(analyzeCmd, "fail-under", ValidateScore)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	kinds, err := analyzeFlags.ParseKinds()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	engine := analysis.NewEngine(cfg.AnalysisOptions(), logger, nil)
	ctx := cmdContext(cmd)

	if len(args) == 0 {
		args = []string{"-"}
	}

	var reports []*analysis.Report
	for _, path := range args {
		report, err := analyzeFile(ctx, cmd.InOrStdin(), engine, logger, path, kinds, analyzeFlags.Language)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(analyzeOutput) {
	case formatText:
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(out)
			}
			writeReportText(out, r)
		}
	default:
		var v interface{} = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		if err := writeStructured(out, analyzeOutput, v); err != nil {
			return err
		}
	}

	return checkFailUnder(reports, analyzeFailUnder)
}

func analyzeFile(ctx context.Context, stdin io.Reader, engine *analysis.Engine, logger logging.Logger, path string, kinds []analysis.Kind, language string) (*analysis.Report, error) {
	source, filename, err := readSource(stdin, path)
	if err != nil {
		return nil, err
	}

	perf := logging.StartOperation(logger, "analyze")
	report, err := engine.Analyze(ctx, analysis.Request{
		Filename: filename,
		Language: language,
		Source:   source,
		Kinds:    kinds,
	})
	if err != nil {
		perf.EndWithError(ctx, err, "file", displayName(filename))
		return nil, fmt.Errorf("%s: %w", displayName(filename), err)
	}
	perf.End(ctx, "file", displayName(filename), "overall", report.Overall)
	return report, nil
}

// readSource reads a file, or standard input for "-".
func readSource(stdin io.Reader, path string) (source, filename string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), "", nil
	}

	if err := ValidateFileExists(path); err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), path, nil
}

func displayName(filename string) string {
	if filename == "" {
		return "<stdin>"
	}
	return filename
}

func checkFailUnder(reports []*analysis.Report, threshold int) error {
	if threshold <= 0 {
		return nil
	}
	var failing []string
	for _, r := range reports {
		if r.Overall < threshold {
			failing = append(failing, fmt.Sprintf("%s (%d)", displayName(r.Filename), r.Overall))
		}
	}
	if len(failing) > 0 {
		return fmt.Errorf("overall score below %d: %s", threshold, strings.Join(failing, ", "))
	}
	return nil
}

func writeReportText(w io.Writer, r *analysis.Report) {
	fmt.Fprintf(w, "%s (%s, %d lines): overall %d/100\n", displayName(r.Filename), r.Language, r.Lines, r.Overall)

	if q := r.Quality; q != nil {
		fmt.Fprintf(w, "\nQuality: %d/100 (%s)\n", q.Score, q.Grade)
		fmt.Fprintf(w, "  code %d, comments %d, blank %d, functions %d, max nesting %d\n",
			q.Metrics.CodeLines, q.Metrics.CommentLines, q.Metrics.BlankLines, q.Metrics.Functions, q.Metrics.MaxNesting)
		writeFindings(w, q.Findings)
		writeSuggestions(w, q.Suggestions)
	}

	if s := r.Security; s != nil {
		fmt.Fprintf(w, "\nSecurity: %d/100, risk %s\n", s.Score, s.RiskLevel)
		writeFindings(w, s.Findings)
	}

	if p := r.Performance; p != nil {
		fmt.Fprintf(w, "\nPerformance: %d/100, estimated %s\n", p.Score, p.Complexity)
		writeFindings(w, p.Bottlenecks)
		writeSuggestions(w, p.Suggestions)
	}

	if d := r.Docs; d != nil {
		fmt.Fprintf(w, "\nDocumentation: %d%% of %d declarations documented\n", d.Coverage, len(d.Sections))
		for _, sec := range d.Sections {
			if !sec.Documented {
				fmt.Fprintf(w, "  line %d: %s %s is undocumented\n", sec.Line, sec.Kind, sec.Name)
			}
		}
	}
}

func writeFindings(w io.Writer, findings []analysis.Finding) {
	for _, f := range findings {
		loc := fmt.Sprintf("%d", f.Line)
		if f.Column > 0 {
			loc = fmt.Sprintf("%d:%d", f.Line, f.Column)
		}
		fmt.Fprintf(w, "  %-8s %s %-8s %s\n", loc, f.RuleID, f.Severity, f.Message)
	}
}

func writeSuggestions(w io.Writer, suggestions []string) {
	for _, s := range suggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

// cmdContext returns the command context, or Background when run outside
// Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
