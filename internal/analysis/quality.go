package analysis

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// QualityMetrics are the raw counts behind a quality score.
type QualityMetrics struct {
	TotalLines    int     `json:"total_lines" yaml:"total_lines"`
	CodeLines     int     `json:"code_lines" yaml:"code_lines"`
	CommentLines  int     `json:"comment_lines" yaml:"comment_lines"`
	BlankLines    int     `json:"blank_lines" yaml:"blank_lines"`
	Functions     int     `json:"functions" yaml:"functions"`
	MaxLineLength int     `json:"max_line_length" yaml:"max_line_length"`
	MaxNesting    int     `json:"max_nesting" yaml:"max_nesting"`
	CommentRatio  float64 `json:"comment_ratio" yaml:"comment_ratio"`
}

// QualityReport is the result of the quality analyzer.
type QualityReport struct {
	Score       int            `json:"score" yaml:"score"`
	Grade       string         `json:"grade" yaml:"grade"`
	Metrics     QualityMetrics `json:"metrics" yaml:"metrics"`
	Findings    []Finding      `json:"findings" yaml:"findings"`
	Suggestions []string       `json:"suggestions" yaml:"suggestions"`
}

const (
	maxNestingDepth      = 4
	minCommentRatio      = 0.10
	minCodeForComments   = 10
	minCodeForFunctions  = 30
	maxFunctionSpanLines = 50
)

func qualityRules(longLineLimit int) []Rule {
	return []Rule{
		{
			ID: "Q001", Name: "long-line", Severity: SeverityLow, Penalty: 2, MaxPenalty: 10,
			Message:    fmt.Sprintf("Line exceeds %d characters", longLineLimit),
			Suggestion: "Break long lines to improve readability",
			target:     targetAll,
			match: func(ln sourceLine, _ lineScope) int {
				if utf8.RuneCountInString(ln.Text) <= longLineLimit {
					return -1
				}
				return runeOffset(ln.Text, longLineLimit)
			},
		},
		{
			ID: "Q002", Name: "todo", Severity: SeverityInfo, Penalty: 2, MaxPenalty: 10,
			Pattern:    regexp.MustCompile(`\b(?:TODO|FIXME|XXX|HACK)\b`),
			Message:    "Unresolved TODO/FIXME marker",
			Suggestion: "Resolve or track outstanding TODO and FIXME markers",
			target:     targetAll,
		},
		{
			ID: "Q003", Name: "debug-print", Severity: SeverityLow, Penalty: 3, MaxPenalty: 15,
			Pattern:    regexp.MustCompile(`\bconsole\.(?:log|debug|trace)\s*\(|(?:^|[^\w.])print\s*\(|\bfmt\.Print(?:ln|f)?\s*\(|\bSystem\.(?:out|err)\.print(?:ln|f)?\s*\(`),
			Message:    "Debug output left in code",
			Suggestion: "Replace debug prints with a structured logger",
		},
		{
			ID: "Q004", Name: "js-var", Severity: SeverityLow, Penalty: 2, MaxPenalty: 10,
			Languages:  []Language{LanguageJavaScript, LanguageTypeScript},
			Pattern:    regexp.MustCompile(`\bvar\s+[A-Za-z_$]`),
			Message:    "Use of 'var' declaration",
			Suggestion: "Use 'const' or 'let' instead of 'var'",
		},
		{
			ID: "Q005", Name: "loose-equality", Severity: SeverityLow, Penalty: 2, MaxPenalty: 10,
			Languages:  []Language{LanguageJavaScript, LanguageTypeScript},
			Message:    "Loose equality comparison",
			Suggestion: "Use strict equality (=== and !==)",
			match: func(ln sourceLine, _ lineScope) int {
				return looseEquality(ln.Code)
			},
		},
		{
			ID: "Q006", Name: "empty-catch", Severity: SeverityMedium, Penalty: 5, MaxPenalty: 15,
			Pattern:    regexp.MustCompile(`\bcatch\s*(?:\([^)]*\))?\s*\{\s*\}|\bexcept\b[^:]*:\s*pass\b`),
			Message:    "Exception swallowed by an empty handler",
			Suggestion: "Handle or log errors instead of swallowing them",
		},
		{
			ID: "Q007", Name: "bare-except", Severity: SeverityMedium, Penalty: 3, MaxPenalty: 9,
			Languages:  []Language{LanguagePython},
			Pattern:    regexp.MustCompile(`^\s*except\s*:`),
			Message:    "Bare 'except:' catches every exception",
			Suggestion: "Catch specific exception types",
		},
		{
			ID: "Q008", Name: "deep-nesting", Severity: SeverityMedium, Penalty: 5, MaxPenalty: 5,
			Message:    fmt.Sprintf("Nesting depth exceeds %d levels", maxNestingDepth),
			Suggestion: "Reduce nesting with early returns or helper functions",
		},
		{
			ID: "Q009", Name: "low-comments", Severity: SeverityLow, Penalty: 10, MaxPenalty: 10,
			Message:    "Comment ratio is below 10%",
			Suggestion: "Add comments explaining non-obvious logic",
		},
		{
			ID: "Q010", Name: "no-functions", Severity: SeverityLow, Penalty: 10, MaxPenalty: 10,
			Message:    "No functions found in a large file",
			Suggestion: "Split the code into smaller functions",
		},
		{
			ID: "Q011", Name: "long-function", Severity: SeverityLow, Penalty: 5, MaxPenalty: 15,
			Message:    fmt.Sprintf("Function is longer than %d lines", maxFunctionSpanLines),
			Suggestion: "Split long functions into smaller units",
		},
	}
}

// looseEquality returns the offset of the first == or != that is not part
// of === or !==, or -1.
func looseEquality(code string) int {
	for i := 0; i+1 < len(code); i++ {
		if code[i+1] != '=' || (code[i] != '=' && code[i] != '!') {
			continue
		}
		if i+2 < len(code) && code[i+2] == '=' {
			i += 2
			continue
		}
		if i > 0 && (code[i-1] == '=' || code[i-1] == '!' || code[i-1] == '<' || code[i-1] == '>') {
			continue
		}
		return i
	}
	return -1
}

// runeOffset returns the byte offset of the n-th rune in text.
func runeOffset(text string, n int) int {
	count := 0
	for offset := range text {
		if count == n {
			return offset
		}
		count++
	}
	return len(text)
}

// AnalyzeQuality scores src with the default options.
func AnalyzeQuality(src *Source) *QualityReport {
	return analyzeQuality(newScan(src), DefaultOptions())
}

func analyzeQuality(s *scan, opts Options) *QualityReport {
	rules := qualityRules(opts.LongLineLimit)
	st := s.stats()

	metrics := QualityMetrics{
		TotalLines:   st.Total,
		CodeLines:    st.Code,
		CommentLines: st.Comment,
		BlankLines:   st.Blank,
	}
	if st.Code+st.Comment > 0 {
		metrics.CommentRatio = roundRatio(float64(st.Comment) / float64(st.Code+st.Comment))
	}

	deepLine := 0
	for i, ln := range s.lines {
		if n := utf8.RuneCountInString(ln.Text); n > metrics.MaxLineLength {
			metrics.MaxLineLength = n
		}
		if ln.Blank || ln.Comment {
			continue
		}
		depth := s.scopes[i].Depth
		if depth > metrics.MaxNesting {
			metrics.MaxNesting = depth
		}
		if depth > maxNestingDepth && deepLine == 0 {
			deepLine = ln.Number
		}
	}

	findings := s.applyRules(rules)
	byID := ruleIndex(rules)

	if deepLine > 0 {
		findings = append(findings, byID["Q008"].fileFinding(deepLine,
			fmt.Sprintf("Nesting depth reaches %d levels", metrics.MaxNesting)))
	}

	var long []Declaration
	for _, d := range s.decls {
		if !d.callable() {
			continue
		}
		metrics.Functions++
		if d.EndLine-d.Line+1 > maxFunctionSpanLines {
			long = append(long, d)
		}
	}
	for _, d := range long {
		findings = append(findings, byID["Q011"].fileFinding(d.Line,
			fmt.Sprintf("Function %s spans %d lines", d.Name, d.EndLine-d.Line+1)))
	}

	if st.Code > minCodeForComments && metrics.CommentRatio < minCommentRatio {
		findings = append(findings, byID["Q009"].fileFinding(0,
			fmt.Sprintf("Comment ratio is %.0f%% (below 10%%)", metrics.CommentRatio*100)))
	}
	if metrics.Functions == 0 && st.Code > minCodeForFunctions {
		findings = append(findings, byID["Q010"].fileFinding(0, ""))
	}

	sortFindings(findings)

	l := newLedger(rules)
	for _, f := range findings {
		l.charge(f.RuleID, byID[f.RuleID].Penalty)
	}

	score := clampScore(100 - l.total)
	return &QualityReport{
		Score:       score,
		Grade:       Grade(score),
		Metrics:     metrics,
		Findings:    nonNil(findings),
		Suggestions: suggestions(rules, findings),
	}
}

// Grade maps a 0-100 score to a letter.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func ruleIndex(rules []Rule) map[string]*Rule {
	idx := make(map[string]*Rule, len(rules))
	for i := range rules {
		idx[rules[i].ID] = &rules[i]
	}
	return idx
}

func roundRatio(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func nonNil(findings []Finding) []Finding {
	if findings == nil {
		return []Finding{}
	}
	return findings
}
