// Package analysis implements Sentra's heuristic code-inspection engine.
//
// Four analyzers share one line-oriented pass over the submitted source:
//
//   - quality:     comment/code metrics and anti-pattern deductions
//   - security:    pattern-based vulnerability findings (plus an HTML token walk)
//   - performance: loop-scope aware bottleneck detection
//   - docs:        declaration extraction and documentation rendering
//
// Nothing here parses the language. Every rule is a pattern applied to one
// line, optionally gated on how many loops enclose that line. Given the same
// input every analyzer returns the same score and the same findings in the
// same order.
package analysis

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Language identifies the source language of a submission.
type Language string

const (
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageHTML       Language = "html"
	LanguageGeneric    Language = "generic"
)

// Languages lists every supported language.
var Languages = []Language{
	LanguageGo,
	LanguagePython,
	LanguageJavaScript,
	LanguageTypeScript,
	LanguageJava,
	LanguageHTML,
	LanguageGeneric,
}

// braceScoped reports whether blocks in l are delimited by braces rather
// than indentation.
func (l Language) braceScoped() bool {
	return l != LanguagePython
}

// Kind names one analyzer.
type Kind string

const (
	KindQuality     Kind = "quality"
	KindSecurity    Kind = "security"
	KindPerformance Kind = "performance"
	KindDocs        Kind = "docs"
)

// AllKinds lists the analyzers in the order reports present them.
var AllKinds = []Kind{KindQuality, KindSecurity, KindPerformance, KindDocs}

// ParseKind converts a user-supplied analyzer name into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quality":
		return KindQuality, true
	case "security":
		return KindSecurity, true
	case "performance", "perf":
		return KindPerformance, true
	case "docs", "documentation":
		return KindDocs, true
	default:
		return "", false
	}
}

// Severity ranks a finding. For performance findings it is the impact.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Source is one submitted file.
type Source struct {
	Filename string
	Language Language
	Text     string
}

// Lines splits the text into lines, tolerating CRLF endings. A trailing
// newline does not produce an extra empty line.
func (s *Source) Lines() []string {
	text := strings.ReplaceAll(s.Text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Finding is one advisory emitted by an analyzer. Line and Column are
// 1-based; Line 0 marks a file-level finding.
type Finding struct {
	RuleID     string   `json:"rule_id" yaml:"rule_id"`
	Line       int      `json:"line" yaml:"line"`
	Column     int      `json:"column,omitempty" yaml:"column,omitempty"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Message    string   `json:"message" yaml:"message"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Snippet    string   `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	CWE        string   `json:"cwe,omitempty" yaml:"cwe,omitempty"`
}

// sortFindings orders findings by line, then column, then rule id.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})
}

// CountBySeverity tallies findings per severity.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

const maxSnippetLength = 120

func snippet(line string) string {
	s := strings.TrimSpace(line)
	if utf8.RuneCountInString(s) > maxSnippetLength {
		return string([]rune(s)[:maxSnippetLength]) + "..."
	}
	return s
}
