package watcher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/sentra/internal/analysis"
)

// Analyzer is the part of the analysis engine the watcher needs.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
}

// ReportHandler analyzes every created or modified file in a batch and
// writes a one-line summary per file to w. Deleted files are reported as
// such. Per-file failures are written and do not stop the batch. A non-empty
// language overrides detection for every file.
func ReportHandler(engine Analyzer, w io.Writer, language string, kinds []analysis.Kind) ChangeHandler {
	return func(ctx context.Context, events []ChangeEvent) error {
		for _, ev := range events {
			if ev.Type == EventTypeDeleted || ev.Type == EventTypeRenamed {
				fmt.Fprintf(w, "%s: %s\n", ev.Path, ev.Type)
				continue
			}

			data, err := os.ReadFile(ev.Path)
			if err != nil {
				fmt.Fprintf(w, "%s: %v\n", ev.Path, err)
				continue
			}

			report, err := engine.Analyze(ctx, analysis.Request{
				Filename: ev.Path,
				Language: language,
				Source:   string(data),
				Kinds:    kinds,
			})
			if err != nil {
				fmt.Fprintf(w, "%s: %v\n", ev.Path, err)
				continue
			}

			fmt.Fprintf(w, "%s: overall %d/100; %s\n", ev.Path, report.Overall, analysis.Summarize(report))
		}
		return nil
	}
}
