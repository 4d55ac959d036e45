package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/logging"
)

// Options tunes the engine.
type Options struct {
	// MaxSourceBytes rejects larger submissions. Zero disables the limit.
	MaxSourceBytes int
	// LongLineLimit is the line length above which Q001 fires.
	LongLineLimit int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxSourceBytes: 1 << 20,
		LongLineLimit:  120,
	}
}

// Observer receives one call per analyzer run. It must be safe for
// concurrent use.
type Observer interface {
	ObserveAnalysis(kind Kind, lang Language, score int, findings []Finding, duration time.Duration)
}

// Request is one analysis request.
type Request struct {
	Filename string `json:"filename,omitempty"`
	// Language overrides detection when set.
	Language string `json:"language,omitempty"`
	Source   string `json:"source"`
	// Kinds selects analyzers; empty means all of them.
	Kinds []Kind `json:"kinds,omitempty"`
}

// Report is the combined result of the selected analyzers.
type Report struct {
	Filename    string             `json:"filename,omitempty" yaml:"filename,omitempty"`
	Language    Language           `json:"language" yaml:"language"`
	Lines       int                `json:"lines" yaml:"lines"`
	Quality     *QualityReport     `json:"quality,omitempty" yaml:"quality,omitempty"`
	Security    *SecurityReport    `json:"security,omitempty" yaml:"security,omitempty"`
	Performance *PerformanceReport `json:"performance,omitempty" yaml:"performance,omitempty"`
	Docs        *Document          `json:"docs,omitempty" yaml:"docs,omitempty"`
	// Overall is the rounded mean of the quality, security and performance
	// scores that ran. Docs coverage is used only when docs ran alone.
	Overall     int                `json:"overall" yaml:"overall"`
	DurationMS  int64              `json:"duration_ms" yaml:"duration_ms"`
}

// Engine validates requests and runs analyzers.
type Engine struct {
	opts     Options
	logger   logging.Logger
	observer Observer
}

// NewEngine creates an engine. A nil logger discards logs; a nil observer
// disables observation.
func NewEngine(opts Options, logger logging.Logger, observer Observer) *Engine {
	defaults := DefaultOptions()
	if opts.LongLineLimit <= 0 {
		opts.LongLineLimit = defaults.LongLineLimit
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		opts:     opts,
		logger:   logger.WithComponent("analysis"),
		observer: observer,
	}
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Analyze runs the requested analyzers concurrently over one shared scan.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Report, error) {
	src, kinds, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	op := logging.StartOperation(e.logger, "analyze")
	start := time.Now()
	s := newScan(src)

	report := &Report{
		Filename: src.Filename,
		Language: src.Language,
		Lines:    len(s.lines),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.run(kind, s, report)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		op.EndWithError(ctx, err, "language", src.Language)
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeAnalysisCancelled, "analysis cancelled")
	}
	if err := ctx.Err(); err != nil {
		op.EndWithError(ctx, err, "language", src.Language)
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeAnalysisCancelled, "analysis cancelled")
	}

	report.Overall = overall(report)
	report.DurationMS = time.Since(start).Milliseconds()

	op.End(ctx,
		"language", src.Language,
		"kinds", len(kinds),
		"lines", report.Lines,
		"overall", report.Overall,
	)

	return report, nil
}

// run executes one analyzer and stores its result in the matching report
// field. Each kind writes a distinct field.
func (e *Engine) run(kind Kind, s *scan, report *Report) {
	began := time.Now()
	var (
		score    int
		findings []Finding
	)

	switch kind {
	case KindQuality:
		r := analyzeQuality(s, e.opts)
		report.Quality = r
		score, findings = r.Score, r.Findings
	case KindSecurity:
		r := scanSecurity(s)
		report.Security = r
		score, findings = r.Score, r.Findings
	case KindPerformance:
		r := analyzePerformance(s)
		report.Performance = r
		score, findings = r.Score, r.Bottlenecks
	case KindDocs:
		r := generateDocs(s)
		report.Docs = r
		score = r.Coverage
	}

	if e.observer != nil {
		e.observer.ObserveAnalysis(kind, s.src.Language, score, findings, time.Since(began))
	}
}

// Docs validates req and generates documentation only.
func (e *Engine) Docs(ctx context.Context, req Request) (*Document, error) {
	req.Kinds = []Kind{KindDocs}
	report, err := e.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return report.Docs, nil
}

// Summary runs quality and security and condenses them into one line.
func (e *Engine) Summary(ctx context.Context, req Request) (string, error) {
	req.Kinds = []Kind{KindQuality, KindSecurity}
	report, err := e.Analyze(ctx, req)
	if err != nil {
		return "", err
	}
	return Summarize(report), nil
}

// Summarize renders a one-line description of a report.
func Summarize(r *Report) string {
	parts := []string{fmt.Sprintf("%s, %d lines", languageLabel(r.Language), r.Lines)}
	if r.Quality != nil {
		parts = append(parts, fmt.Sprintf("quality %d/100 (%s)", r.Quality.Score, r.Quality.Grade))
	}
	if r.Security != nil {
		parts = append(parts, fmt.Sprintf("security %d/100, risk %s, %d findings",
			r.Security.Score, r.Security.RiskLevel, r.Security.Summary.Total))
	}
	if r.Performance != nil {
		parts = append(parts, fmt.Sprintf("performance %d/100, %s",
			r.Performance.Score, r.Performance.Complexity))
	}
	return strings.Join(parts, "; ")
}

func (e *Engine) prepare(req Request) (*Source, []Kind, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, nil, errors.ErrEmptySource()
	}
	if e.opts.MaxSourceBytes > 0 && len(req.Source) > e.opts.MaxSourceBytes {
		return nil, nil, errors.ErrSourceTooLarge(len(req.Source), e.opts.MaxSourceBytes)
	}

	src := &Source{Filename: req.Filename, Text: req.Source}
	if req.Language != "" {
		lang, ok := ParseLanguage(req.Language)
		if !ok {
			return nil, nil, errors.NewValidationError(errors.ErrCodeUnknownLanguage,
				fmt.Sprintf("unknown language %q", req.Language)).
				WithContext("language", req.Language)
		}
		src.Language = lang
	} else {
		src.Language = DetectLanguage(req.Filename, req.Source)
	}

	kinds, err := normalizeKinds(req.Kinds)
	if err != nil {
		return nil, nil, err
	}
	return src, kinds, nil
}

// normalizeKinds validates, de-duplicates and orders the requested kinds.
func normalizeKinds(requested []Kind) ([]Kind, error) {
	if len(requested) == 0 {
		return AllKinds, nil
	}

	want := make(map[Kind]bool, len(requested))
	for _, k := range requested {
		parsed, ok := ParseKind(string(k))
		if !ok {
			return nil, errors.NewValidationError(errors.ErrCodeUnknownAnalysis,
				fmt.Sprintf("unknown analysis kind %q", k)).
				WithContext("kind", string(k))
		}
		want[parsed] = true
	}

	kinds := make([]Kind, 0, len(want))
	for _, k := range AllKinds {
		if want[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// overall is the rounded mean of the quality, security and performance
// scores that ran. When only docs ran it is the documentation coverage.
func overall(r *Report) int {
	var scores []int
	if r.Quality != nil {
		scores = append(scores, r.Quality.Score)
	}
	if r.Security != nil {
		scores = append(scores, r.Security.Score)
	}
	if r.Performance != nil {
		scores = append(scores, r.Performance.Score)
	}
	if len(scores) == 0 {
		if r.Docs != nil {
			return r.Docs.Coverage
		}
		return 0
	}

	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}
