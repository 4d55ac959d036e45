package analysis

import (
	"regexp"
)

// target selects which rendition of a line a rule's pattern sees.
type target int

const (
	// targetCode is the line with comments and string contents blanked.
	// Comment-only lines are skipped.
	targetCode target = iota
	// targetText is the raw line. Comment-only lines are skipped.
	targetText
	// targetAll is the raw line, comment-only lines included.
	targetAll
)

// Rule is one entry of an analyzer's rule table.
//
// A rule matches a line when Pattern (or the custom matcher) matches, the
// line also matches Require when set, and the line does not match Exclude.
// Rules without a pattern or matcher are file-level checks evaluated by the
// analyzer itself; they appear in the table so their metadata and
// suggestion order live in one place.
type Rule struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Languages  []Language `json:"languages,omitempty" yaml:"languages,omitempty"`
	Severity   Severity   `json:"severity" yaml:"severity"`
	Penalty    int        `json:"penalty" yaml:"penalty"`
	MaxPenalty int        `json:"max_penalty,omitempty" yaml:"max_penalty,omitempty"`
	Message    string     `json:"message" yaml:"message"`
	Suggestion string     `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	CWE        string     `json:"cwe,omitempty" yaml:"cwe,omitempty"`
	// InLoop restricts the rule to lines enclosed by at least one loop.
	InLoop bool `json:"in_loop,omitempty" yaml:"in_loop,omitempty"`

	Pattern *regexp.Regexp `json:"-" yaml:"-"`
	Require *regexp.Regexp `json:"-" yaml:"-"`
	Exclude *regexp.Regexp `json:"-" yaml:"-"`

	target target
	// match returns the byte offset of a match in ln, or -1.
	match func(ln sourceLine, sc lineScope) int
}

// AppliesTo reports whether the rule runs for lang. A rule without
// languages runs for every language.
func (r *Rule) AppliesTo(lang Language) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (r *Rule) lineBased() bool {
	return r.Pattern != nil || r.match != nil
}

// matchLine returns the byte offset of the rule's match in ln.
func (r *Rule) matchLine(ln sourceLine, sc lineScope) (int, bool) {
	if ln.Blank {
		return 0, false
	}
	if ln.Comment && r.target != targetAll {
		return 0, false
	}
	if r.InLoop && sc.LoopDepth == 0 {
		return 0, false
	}

	text := ln.Text
	if r.target == targetCode {
		text = ln.Code
	}

	offset := -1
	switch {
	case r.match != nil:
		offset = r.match(ln, sc)
	case r.Pattern != nil:
		if loc := r.Pattern.FindStringIndex(text); loc != nil {
			offset = loc[0]
		}
	}
	if offset < 0 {
		return 0, false
	}

	if r.Require != nil && !r.Require.MatchString(text) {
		return 0, false
	}
	if r.Exclude != nil && r.Exclude.MatchString(text) {
		return 0, false
	}

	return offset, true
}

// finding builds the finding a rule reports at ln.
func (r *Rule) finding(ln sourceLine, offset int) Finding {
	f := Finding{
		RuleID:     r.ID,
		Severity:   r.Severity,
		Message:    r.Message,
		Suggestion: r.Suggestion,
		CWE:        r.CWE,
	}
	if ln.Number > 0 {
		f.Line = ln.Number
		f.Column = column(ln.Text, offset)
		f.Snippet = snippet(ln.Text)
	}
	return f
}

// fileFinding builds a finding that is not tied to one column.
func (r *Rule) fileFinding(line int, message string) Finding {
	if message == "" {
		message = r.Message
	}
	return Finding{
		RuleID:     r.ID,
		Line:       line,
		Severity:   r.Severity,
		Message:    message,
		Suggestion: r.Suggestion,
		CWE:        r.CWE,
	}
}

// applyRules runs every line-based rule of the table over the scan. A rule
// reports at most one finding per line.
func (s *scan) applyRules(rules []Rule) []Finding {
	var findings []Finding
	for i, ln := range s.lines {
		if ln.Blank {
			continue
		}
		for idx := range rules {
			r := &rules[idx]
			if !r.lineBased() || !r.AppliesTo(s.src.Language) {
				continue
			}
			if offset, ok := r.matchLine(ln, s.scopes[i]); ok {
				findings = append(findings, r.finding(ln, offset))
			}
		}
	}
	return findings
}

// ledger accumulates per-rule deductions and enforces each rule's cap.
type ledger struct {
	caps  map[string]int
	spent map[string]int
	total int
}

func newLedger(rules []Rule) *ledger {
	l := &ledger{
		caps:  make(map[string]int, len(rules)),
		spent: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		l.caps[r.ID] = r.MaxPenalty
	}
	return l
}

// charge records penalty against ruleID and returns the amount actually
// deducted after the cap.
func (l *ledger) charge(ruleID string, penalty int) int {
	if limit := l.caps[ruleID]; limit > 0 {
		remaining := limit - l.spent[ruleID]
		if penalty > remaining {
			penalty = remaining
		}
	}
	if penalty < 0 {
		penalty = 0
	}
	l.spent[ruleID] += penalty
	l.total += penalty
	return penalty
}

// suggestions returns the distinct suggestions of rules that fired, in table
// order.
func suggestions(rules []Rule, findings []Finding) []string {
	fired := make(map[string]bool, len(findings))
	for _, f := range findings {
		fired[f.RuleID] = true
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, r := range rules {
		if !fired[r.ID] || r.Suggestion == "" || seen[r.Suggestion] {
			continue
		}
		seen[r.Suggestion] = true
		out = append(out, r.Suggestion)
	}
	return out
}

// Rules returns a copy of the rule table behind an analyzer. Docs has no
// rules.
func Rules(kind Kind) []Rule {
	var table []Rule
	switch kind {
	case KindQuality:
		table = qualityRules(DefaultOptions().LongLineLimit)
	case KindSecurity:
		table = securityRules
	case KindPerformance:
		table = performanceRules
	}
	out := make([]Rule, len(table))
	copy(out, table)
	return out
}
