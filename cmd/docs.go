package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sentra/internal/analysis"
)

var (
	docsFormat   string
	docsOut      string
	docsLanguage string
)

var docsCmd = &cobra.Command{
	Use:   "docs <file>",
	Short: "Generate documentation for a source file",
	Long: `Generate documentation from the declarations and comments in a source
file. Use "-" to read from standard input.

Examples:
  sentra docs shapes.go                     # Markdown to stdout
  sentra docs app.py --format html --out app.html
  sentra docs api.ts --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)

	docsCmd.Flags().StringVarP(&docsFormat, "format", "f", string(analysis.FormatMarkdown), "Output format (markdown, html, json)")
	docsCmd.Flags().StringVar(&docsOut, "out", "", "Write to this file instead of stdout")
	docsCmd.Flags().StringVar(&docsLanguage, "language", "", "Override language detection")

	AddFlagValidation(docsCmd, "format", func(val string) error {
		if _, ok := analysis.ParseFormat(val); !ok {
			return fmt.Errorf("unsupported format: %s (supported: markdown, html, json)", val)
		}
		return nil
	})
}

func runDocs(cmd *cobra.Command, args []string) error {
	format, ok := analysis.ParseFormat(docsFormat)
	if !ok {
		return fmt.Errorf("unsupported format: %s (supported: markdown, html, json)", docsFormat)
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

	source, filename, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	engine := analysis.NewEngine(cfg.AnalysisOptions(), logger, nil)
	doc, err := engine.Docs(ctx, analysis.Request{
		Filename: filename,
		Language: docsLanguage,
		Source:   source,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", displayName(filename), err)
	}

	body, err := analysis.Render(ctx, doc, format)
	if err != nil {
		return fmt.Errorf("failed to render documentation: %w", err)
	}

	if docsOut == "" {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}

	if err := os.WriteFile(docsOut, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", docsOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d%% documented)\n", docsOut, doc.Coverage)
	return nil
}
