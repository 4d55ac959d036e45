package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// PerformanceReport is the result of the performance analyzer. Findings are
// bottlenecks; their severity is the estimated impact.
type PerformanceReport struct {
	Score        int       `json:"score" yaml:"score"`
	Complexity   string    `json:"complexity" yaml:"complexity"`
	MaxLoopDepth int       `json:"max_loop_depth" yaml:"max_loop_depth"`
	Bottlenecks  []Finding `json:"bottlenecks" yaml:"bottlenecks"`
	Suggestions  []string  `json:"suggestions" yaml:"suggestions"`
}

var performanceRules = []Rule{
	{
		ID: "P001", Name: "nested-loop", Severity: SeverityHigh, Penalty: 10, InLoop: true,
		Message:    "Loop nested inside another loop",
		Suggestion: "Replace nested loops with a map/set lookup where possible",
		match: func(ln sourceLine, sc lineScope) int {
			if !sc.OpensLoop {
				return -1
			}
			return len(ln.Text) - len(strings.TrimLeft(ln.Text, " \t"))
		},
	},
	{
		ID: "P002", Name: "concat-in-loop", Severity: SeverityMedium, Penalty: 5, InLoop: true,
		Pattern:    regexp.MustCompile(`\+=\s*(?:["'\x60]|str\(|String\(|fmt\.Sprint|\w+\.toString\(\))|\w\s*\+=\s*\w+\s*\+\s*["'\x60]`),
		Message:    "String concatenation inside a loop",
		Suggestion: "Collect parts and join once, or use a string builder",
	},
	{
		ID: "P003", Name: "dom-in-loop", Severity: SeverityHigh, Penalty: 10, InLoop: true,
		Languages:  []Language{LanguageJavaScript, LanguageTypeScript, LanguageHTML},
		Pattern:    regexp.MustCompile(`\bdocument\.(?:querySelector(?:All)?|getElementBy\w+|getElementsBy\w+)\s*\(`),
		Message:    "DOM query inside a loop",
		Suggestion: "Query the DOM once outside the loop and reuse the result",
	},
	{
		ID: "P004", Name: "sync-io", Severity: SeverityMedium, Penalty: 5,
		Languages:  []Language{LanguageJavaScript, LanguageTypeScript},
		Pattern:    regexp.MustCompile(`\b(?:readFileSync|writeFileSync|appendFileSync|readdirSync|statSync|existsSync)\s*\(`),
		Message:    "Synchronous file I/O blocks the event loop",
		Suggestion: "Use asynchronous file APIs",
	},
	{
		ID: "P005", Name: "select-star", Severity: SeverityLow, Penalty: 3,
		Pattern:    regexp.MustCompile(`(?i)\bselect\s+\*\s+from\b`),
		Message:    "SELECT * fetches every column",
		Suggestion: "Select only the columns you need",
		target:     targetText,
	},
	{
		ID: "P006", Name: "regex-in-loop", Severity: SeverityMedium, Penalty: 5, InLoop: true,
		Pattern:    regexp.MustCompile(`\bregexp\.(?:MustCompile|Compile)\s*\(|\bre\.compile\s*\(|\bnew\s+RegExp\s*\(|\bPattern\.compile\s*\(`),
		Message:    "Regular expression compiled inside a loop",
		Suggestion: "Compile regular expressions once outside the loop",
	},
	{
		ID: "P007", Name: "range-len", Severity: SeverityLow, Penalty: 2,
		Languages:  []Language{LanguagePython},
		Pattern:    regexp.MustCompile(`\bfor\s+\w+\s+in\s+range\s*\(\s*len\s*\(`),
		Message:    "Index loop over range(len(...))",
		Suggestion: "Iterate directly or use enumerate()",
	},
	{
		ID: "P008", Name: "sleep", Severity: SeverityMedium, Penalty: 5,
		Pattern:    regexp.MustCompile(`\btime\.Sleep\s*\(|\bThread\.sleep\s*\(|\btime\.sleep\s*\(|\busleep\s*\(`),
		Message:    "Blocking sleep call",
		Suggestion: "Avoid blocking sleeps; use timers or async scheduling",
	},
	{
		ID: "P009", Name: "defer-in-loop", Severity: SeverityMedium, Penalty: 5, InLoop: true,
		Languages:  []Language{LanguageGo},
		Pattern:    regexp.MustCompile(`^\s*defer\b`),
		Message:    "defer inside a loop runs only when the function returns",
		Suggestion: "Move the loop body into a function so defer runs per iteration",
	},
	{
		ID: "P010", Name: "query-in-loop", Severity: SeverityHigh, Penalty: 10, InLoop: true,
		Pattern:    regexp.MustCompile(`\.(?:query|Query|QueryRow|QueryContext|QueryRowContext|execute|executeQuery)\s*\(`),
		Message:    "Database query inside a loop (N+1 queries)",
		Suggestion: "Batch queries or load related rows up front",
	},
}

// AnalyzePerformance looks for loop-related bottlenecks in src.
func AnalyzePerformance(src *Source) *PerformanceReport {
	return analyzePerformance(newScan(src))
}

func analyzePerformance(s *scan) *PerformanceReport {
	findings := s.applyRules(performanceRules)
	sortFindings(findings)

	byID := ruleIndex(performanceRules)
	deduction := 0
	for _, f := range findings {
		deduction += byID[f.RuleID].Penalty
	}

	maxDepth := 0
	for _, sc := range s.scopes {
		depth := sc.LoopDepth
		if sc.OpensLoop {
			depth++
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	return &PerformanceReport{
		Score:        clampScore(100 - deduction),
		Complexity:   Complexity(maxDepth),
		MaxLoopDepth: maxDepth,
		Bottlenecks:  nonNil(findings),
		Suggestions:  suggestions(performanceRules, findings),
	}
}

// Complexity renders an estimated time complexity for a loop depth.
func Complexity(loopDepth int) string {
	switch {
	case loopDepth <= 0:
		return "O(1)"
	case loopDepth == 1:
		return "O(n)"
	default:
		return fmt.Sprintf("O(n^%d)", loopDepth)
	}
}
