package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleIDs(findings []Finding) []string {
	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.RuleID
	}
	return ids
}

func TestAnalyzeQualityCleanGo(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: `// Package calc adds numbers.
package calc

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}`}

	report := AnalyzeQuality(src)

	assert.Equal(t, 100, report.Score)
	assert.Equal(t, "A", report.Grade)
	assert.Empty(t, report.Findings)
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, QualityMetrics{
		TotalLines:    7,
		CodeLines:     4,
		CommentLines:  2,
		BlankLines:    1,
		Functions:     1,
		MaxLineLength: 34,
		MaxNesting:    1,
		CommentRatio:  0.333,
	}, report.Metrics)
}

func TestAnalyzeQualityJavaScriptPatterns(t *testing.T) {
	src := &Source{Language: LanguageJavaScript, Text: `var x = 1;
if (x == 2) { console.log("two"); }
if (x === 3) { }`}

	report := AnalyzeQuality(src)

	require.Equal(t, []string{"Q004", "Q005", "Q003"}, ruleIDs(report.Findings))
	assert.Equal(t, 1, report.Findings[0].Line)
	assert.Equal(t, 1, report.Findings[0].Column)
	assert.Equal(t, 2, report.Findings[1].Line)
	assert.Equal(t, 7, report.Findings[1].Column)
	assert.Equal(t, 15, report.Findings[2].Column)
	assert.Equal(t, `if (x == 2) { console.log("two"); }`, report.Findings[1].Snippet)

	assert.Equal(t, 93, report.Score)
	assert.Equal(t, []string{
		"Replace debug prints with a structured logger",
		"Use 'const' or 'let' instead of 'var'",
		"Use strict equality (=== and !==)",
	}, report.Suggestions)
}

func TestAnalyzeQualityPenaltyCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("// TODO: handle case\n")
	}
	src := &Source{Language: LanguageGo, Text: b.String()}

	report := AnalyzeQuality(src)

	assert.Len(t, report.Findings, 10)
	assert.Equal(t, 90, report.Score, "Q002 deductions stop at its cap")
}

func TestAnalyzeQualityLongLine(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: `x := "` + strings.Repeat("a", 130) + `"`}

	report := AnalyzeQuality(src)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "Q001", report.Findings[0].RuleID)
	assert.Equal(t, 121, report.Findings[0].Column)
	assert.Equal(t, 137, report.Metrics.MaxLineLength)
	assert.True(t, strings.HasSuffix(report.Findings[0].Snippet, "..."))
}

func TestAnalyzeQualityLongLineLimitOption(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: strings.Repeat("x", 90)}

	assert.Empty(t, analyzeQuality(newScan(src), DefaultOptions()).Findings)

	opts := DefaultOptions()
	opts.LongLineLimit = 80
	report := analyzeQuality(newScan(src), opts)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "Q001", report.Findings[0].RuleID)
	assert.Equal(t, "Line exceeds 80 characters", report.Findings[0].Message)
}

func TestAnalyzeQualityDeepNesting(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: `// f nests deeply.
// It exists to trip the nesting check.
func f() {
	if a {
		if b {
			if c {
				if d {
					x()
				}
			}
		}
	}
}`}

	report := AnalyzeQuality(src)

	require.Equal(t, []string{"Q008"}, ruleIDs(report.Findings))
	assert.Equal(t, 8, report.Findings[0].Line)
	assert.Equal(t, 5, report.Metrics.MaxNesting)
	assert.Equal(t, 95, report.Score)
}

func TestAnalyzeQualityLowComments(t *testing.T) {
	lines := []string{"def f():"}
	for i := 0; i < 11; i++ {
		lines = append(lines, "    a = 1")
	}
	src := &Source{Language: LanguagePython, Text: strings.Join(lines, "\n")}

	report := AnalyzeQuality(src)

	require.Equal(t, []string{"Q009"}, ruleIDs(report.Findings))
	assert.Equal(t, 0, report.Findings[0].Line)
	assert.Equal(t, 90, report.Score)
	assert.Equal(t, "A", report.Grade)
}

func TestAnalyzeQualityNoFunctions(t *testing.T) {
	src := &Source{Language: LanguagePython, Text: strings.Repeat("x = 1\n", 31)}

	report := AnalyzeQuality(src)

	assert.Equal(t, []string{"Q009", "Q010"}, ruleIDs(report.Findings))
	assert.Equal(t, 80, report.Score)
	assert.Equal(t, "B", report.Grade)
	assert.Equal(t, 0, report.Metrics.Functions)
}

func TestAnalyzeQualityLongFunction(t *testing.T) {
	var b strings.Builder
	b.WriteString("// Big does a lot.\nfunc Big() {\n")
	for i := 0; i < 55; i++ {
		b.WriteString("\t// step\n\tstep()\n")
	}
	b.WriteString("}\n")
	src := &Source{Language: LanguageGo, Text: b.String()}

	report := AnalyzeQuality(src)

	require.Equal(t, []string{"Q011"}, ruleIDs(report.Findings))
	assert.Equal(t, 2, report.Findings[0].Line)
	assert.Contains(t, report.Findings[0].Message, "Big")
	assert.Equal(t, 95, report.Score)
}

func TestAnalyzeQualityPythonExceptions(t *testing.T) {
	src := &Source{Language: LanguagePython, Text: `try:
    run()
except: pass`}

	report := AnalyzeQuality(src)

	assert.Equal(t, []string{"Q006", "Q007"}, ruleIDs(report.Findings))
	assert.Equal(t, 92, report.Score)
}

func TestAnalyzeQualityIgnoresPatternsInStrings(t *testing.T) {
	src := &Source{Language: LanguageJavaScript, Text: `const msg = "var x == 1; console.log(y)";`}

	report := AnalyzeQuality(src)

	assert.Empty(t, report.Findings)
	assert.Equal(t, 100, report.Score)
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A"},
		{90, "A"},
		{89, "B"},
		{80, "B"},
		{79, "C"},
		{70, "C"},
		{69, "D"},
		{60, "D"},
		{59, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %d", tt.score)
	}
}

func TestLooseEquality(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"a == b", 2},
		{"a != b", 2},
		{"a === b", -1},
		{"a !== b", -1},
		{"a <= b", -1},
		{"a >= b", -1},
		{"x => x", -1},
		{"a = b", -1},
		{"a === b || c == d", 13},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, looseEquality(tt.code), "code %q", tt.code)
	}
}

func TestLedgerCaps(t *testing.T) {
	l := newLedger([]Rule{{ID: "A", MaxPenalty: 5}, {ID: "B"}})

	assert.Equal(t, 3, l.charge("A", 3))
	assert.Equal(t, 2, l.charge("A", 3))
	assert.Equal(t, 0, l.charge("A", 3))
	assert.Equal(t, 40, l.charge("B", 40))
	assert.Equal(t, 45, l.total)
}

func TestRulesReturnsCopy(t *testing.T) {
	rules := Rules(KindSecurity)
	require.NotEmpty(t, rules)
	rules[0].ID = "changed"

	assert.NotEqual(t, "changed", Rules(KindSecurity)[0].ID)
	assert.Len(t, Rules(KindQuality), 11)
	assert.Len(t, Rules(KindPerformance), 10)
	assert.Empty(t, Rules(KindDocs))
}
