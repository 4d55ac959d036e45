package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzePerformanceGoNestedLoops(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: `func f(items []string) {
	for _, a := range items {
		for _, b := range items {
			re := regexp.MustCompile(b)
			defer cleanup()
			_ = re
		}
	}
}`}

	report := AnalyzePerformance(src)

	require.Equal(t, []string{"P001", "P006", "P009"}, ruleIDs(report.Bottlenecks))
	assert.Equal(t, []int{3, 4, 5}, []int{
		report.Bottlenecks[0].Line,
		report.Bottlenecks[1].Line,
		report.Bottlenecks[2].Line,
	})
	assert.Equal(t, 3, report.Bottlenecks[0].Column)
	assert.Equal(t, SeverityHigh, report.Bottlenecks[0].Severity)
	assert.Equal(t, 80, report.Score)
	assert.Equal(t, 2, report.MaxLoopDepth)
	assert.Equal(t, "O(n^2)", report.Complexity)
	assert.Len(t, report.Suggestions, 3)
}

func TestAnalyzePerformancePython(t *testing.T) {
	src := &Source{Language: LanguagePython, Text: `def build(items):
    out = ""
    for i in range(len(items)):
        out += str(items[i])
    return out`}

	report := AnalyzePerformance(src)

	assert.Equal(t, []string{"P007", "P002"}, ruleIDs(report.Bottlenecks))
	assert.Equal(t, 93, report.Score)
	assert.Equal(t, "O(n)", report.Complexity)
}

func TestAnalyzePerformanceRules(t *testing.T) {
	tests := []struct {
		name     string
		language Language
		text     string
		want     []string
		score    int
	}{
		{
			name:     "dom in loop",
			language: LanguageJavaScript,
			text: `for (let i = 0; i < n; i++) {
  const el = document.getElementById("x" + i);
}`,
			want:  []string{"P003"},
			score: 90,
		},
		{
			name:     "dom outside loop",
			language: LanguageJavaScript,
			text:     `const el = document.getElementById("x");`,
			want:     nil,
			score:    100,
		},
		{
			name:     "sync io",
			language: LanguageJavaScript,
			text:     `const data = fs.readFileSync("a.txt");`,
			want:     []string{"P004"},
			score:    95,
		},
		{
			name:     "select star",
			language: LanguagePython,
			text:     `cursor.execute("SELECT * FROM users")`,
			want:     []string{"P005"},
			score:    97,
		},
		{
			name:     "query in loop",
			language: LanguageJavaScript,
			text: `for (const id of ids) {
  db.query("SELECT name FROM users WHERE id = ?", [id]);
}`,
			want:  []string{"P010"},
			score: 90,
		},
		{
			name:     "sleep",
			language: LanguageGo,
			text:     "time.Sleep(time.Second)",
			want:     []string{"P008"},
			score:    95,
		},
		{
			name:     "concat in js loop",
			language: LanguageJavaScript,
			text: `while (more()) {
  html += "<li>" + next() + "</li>";
}`,
			want:  []string{"P002"},
			score: 95,
		},
		{
			name:     "forEach counts as a loop",
			language: LanguageJavaScript,
			text: `rows.forEach((row) => {
  const re = new RegExp(row.pattern);
});`,
			want:  []string{"P006"},
			score: 95,
		},
		{
			name:     "pattern in comment ignored",
			language: LanguageGo,
			text:     "// time.Sleep(time.Second)",
			want:     nil,
			score:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := AnalyzePerformance(&Source{Language: tt.language, Text: tt.text})
			if tt.want == nil {
				assert.Empty(t, report.Bottlenecks)
			} else {
				assert.Equal(t, tt.want, ruleIDs(report.Bottlenecks))
			}
			assert.Equal(t, tt.score, report.Score)
		})
	}
}

func TestAnalyzePerformanceBraceOnNextLine(t *testing.T) {
	src := &Source{Language: LanguageJava, Text: `for (int i = 0; i < n; i++)
{
    for (int j = 0; j < n; j++) {
        sum += i;
    }
}`}

	report := AnalyzePerformance(src)

	assert.Equal(t, []string{"P001"}, ruleIDs(report.Bottlenecks))
	assert.Equal(t, 3, report.Bottlenecks[0].Line)
	assert.Equal(t, "O(n^2)", report.Complexity)
}

func TestAnalyzePerformanceIteratorCallDoesNotOpenNextBlock(t *testing.T) {
	src := &Source{Language: LanguageJavaScript, Text: `function render(users) {
  let out = ""
  const names = users.map(u => u.name)
  if (names.length > 0) {
    for (const n of names) {
      out += "<li>" + n
    }
  }
  return out
}`}

	report := AnalyzePerformance(src)

	assert.Equal(t, []string{"P002"}, ruleIDs(report.Bottlenecks))
	assert.Equal(t, 6, report.Bottlenecks[0].Line)
	assert.Equal(t, 1, report.MaxLoopDepth)
	assert.Equal(t, "O(n)", report.Complexity)
}

func TestAnalyzePerformanceRawStringIsNotCode(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: "const q = `\nfor {\n`\n\nfunc f(items []string) {\n\tfor _, it := range items {\n\t\tuse(it)\n\t}\n}"}

	report := AnalyzePerformance(src)

	assert.Empty(t, report.Bottlenecks)
	assert.Equal(t, 1, report.MaxLoopDepth)
	assert.Equal(t, "O(n)", report.Complexity)
	assert.Equal(t, 100, report.Score)
}

func TestAnalyzePerformanceScoreFloor(t *testing.T) {
	src := &Source{Language: LanguageGo, Text: `for {
	for {
		for {
			for {
				for {
					for {
						for {
							for {
								for {
									for {
										for {
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`}

	report := AnalyzePerformance(src)

	assert.Len(t, report.Bottlenecks, 10)
	assert.Equal(t, 0, report.Score)
	assert.Equal(t, "O(n^11)", report.Complexity)
}

func TestComplexity(t *testing.T) {
	assert.Equal(t, "O(1)", Complexity(0))
	assert.Equal(t, "O(1)", Complexity(-1))
	assert.Equal(t, "O(n)", Complexity(1))
	assert.Equal(t, "O(n^2)", Complexity(2))
	assert.Equal(t, "O(n^5)", Complexity(5))
}
