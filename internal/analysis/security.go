package analysis

import (
	"regexp"
	"strings"
)

// SecuritySummary counts findings per severity.
type SecuritySummary struct {
	Critical int `json:"critical" yaml:"critical"`
	High     int `json:"high" yaml:"high"`
	Medium   int `json:"medium" yaml:"medium"`
	Low      int `json:"low" yaml:"low"`
	Info     int `json:"info" yaml:"info"`
	Total    int `json:"total" yaml:"total"`
}

// SecurityReport is the result of the security scanner.
type SecurityReport struct {
	Score     int             `json:"score" yaml:"score"`
	RiskLevel string          `json:"risk_level" yaml:"risk_level"`
	Summary   SecuritySummary `json:"summary" yaml:"summary"`
	Findings  []Finding       `json:"findings" yaml:"findings"`
}

// Risk levels.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
	RiskNone     = "none"
)

// severityPenalty is the score deduction per finding.
var severityPenalty = map[Severity]int{
	SeverityCritical: 25,
	SeverityHigh:     15,
	SeverityMedium:   10,
	SeverityLow:      5,
	SeverityInfo:     0,
}

var (
	browserLanguages = []Language{LanguageJavaScript, LanguageTypeScript, LanguageHTML, LanguageGeneric}
	sqlLiteralRe     = `(?:select\s.+?\sfrom|insert\s+into|update\s+\w+\s+set|delete\s+from)`
	localHostRe      = regexp.MustCompile(`^http://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\])(?:[:/]|$)`)
	plainHTTPRe      = regexp.MustCompile(`\bhttp://[^\s"'<>\x60)]+`)
	xmlNamespaceRe   = regexp.MustCompile(`^http://(?:www\.)?w3\.org/`)
)

// securityRules is the scanner's rule table. Security rules see the raw
// text of every line: a secret inside a comment is still a leak.
var securityRules = []Rule{
	{
		ID: "S001", Name: "eval", Severity: SeverityCritical, CWE: "CWE-95",
		Pattern:    regexp.MustCompile(`(?:^|[^\w.])eval\s*\(`),
		Message:    "Use of eval() executes arbitrary code",
		Suggestion: "Avoid eval(); parse data explicitly",
		target:     targetAll,
	},
	{
		ID: "S002", Name: "function-constructor", Severity: SeverityHigh, CWE: "CWE-95",
		Languages:  browserLanguages,
		Pattern:    regexp.MustCompile(`\bnew\s+Function\s*\(`),
		Message:    "Function constructor compiles code from strings",
		Suggestion: "Avoid eval(); parse data explicitly",
		target:     targetAll,
	},
	{
		ID: "S003", Name: "inner-html", Severity: SeverityHigh, CWE: "CWE-79",
		Languages:  browserLanguages,
		Pattern:    regexp.MustCompile(`\.(?:inner|outer)HTML\s*\+?=[^=]`),
		Message:    "Assignment to innerHTML/outerHTML can inject markup",
		Suggestion: "Use textContent or sanitize HTML before inserting it",
		target:     targetAll,
	},
	{
		ID: "S004", Name: "document-write", Severity: SeverityMedium, CWE: "CWE-79",
		Languages:  browserLanguages,
		Pattern:    regexp.MustCompile(`\bdocument\.write(?:ln)?\s*\(`),
		Message:    "document.write() can inject markup",
		Suggestion: "Use textContent or sanitize HTML before inserting it",
		target:     targetAll,
	},
	{
		ID: "S005", Name: "dangerously-set-inner-html", Severity: SeverityMedium, CWE: "CWE-79",
		Languages:  browserLanguages,
		Pattern:    regexp.MustCompile(`\bdangerouslySetInnerHTML\b`),
		Message:    "dangerouslySetInnerHTML bypasses React escaping",
		Suggestion: "Use textContent or sanitize HTML before inserting it",
		target:     targetAll,
	},
	{
		ID: "S006", Name: "hardcoded-secret", Severity: SeverityCritical, CWE: "CWE-798",
		Pattern:    regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|secret|api[_-]?key|access[_-]?token|auth[_-]?token|private[_-]?key|client[_-]?secret)\b["']?\s*(?::=|=|:)\s*["'][^"'\s]{4,}["']`),
		Message:    "Hardcoded credential",
		Suggestion: "Load secrets from the environment or a secret manager",
		target:     targetAll,
	},
	{
		ID: "S007", Name: "aws-access-key", Severity: SeverityCritical, CWE: "CWE-798",
		Pattern:    regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		Message:    "AWS access key id in source",
		Suggestion: "Load secrets from the environment or a secret manager",
		target:     targetAll,
	},
	{
		ID: "S008", Name: "private-key", Severity: SeverityCritical, CWE: "CWE-321",
		Pattern:    regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |ENCRYPTED )?PRIVATE KEY-----`),
		Message:    "Private key embedded in source",
		Suggestion: "Load secrets from the environment or a secret manager",
		target:     targetAll,
	},
	{
		ID: "S009", Name: "sql-injection", Severity: SeverityHigh, CWE: "CWE-89",
		Pattern: regexp.MustCompile(`(?i)\b` + sqlLiteralRe + `\b.*(?:["'\x60]\s*\+|\+\s*["'\x60]|\$\{|%[sdv]|\.format\s*\()` +
			`|\bf["'](?:select|insert|update|delete)\b[^"']*\{`),
		Message:    "SQL built from string concatenation or interpolation",
		Suggestion: "Use parameterized queries",
		target:     targetAll,
	},
	{
		ID: "S010", Name: "command-injection", Severity: SeverityHigh, CWE: "CWE-78",
		Pattern: regexp.MustCompile(`\bos\.system\s*\(|\bos\.popen\s*\(|\bsubprocess\.\w+\s*\(.*\bshell\s*=\s*True` +
			`|\bchild_process\b.*\bexec(?:Sync)?\s*\(|\bexecSync\s*\(|\bRuntime\.getRuntime\(\)\.exec\s*\(`),
		Message:    "Shell command execution",
		Suggestion: "Pass arguments as a list and avoid invoking a shell",
		target:     targetAll,
	},
	{
		ID: "S011", Name: "shell-exec", Severity: SeverityHigh, CWE: "CWE-78",
		Languages:  []Language{LanguageGo, LanguageGeneric},
		Pattern:    regexp.MustCompile(`\bexec\.Command(?:Context)?\s*\(.*"(?:/bin/)?(?:ba|z)?sh"\s*,\s*"-c"`),
		Message:    "exec.Command runs a shell with -c",
		Suggestion: "Pass arguments as a list and avoid invoking a shell",
		target:     targetAll,
	},
	{
		ID: "S012", Name: "unsafe-deserialization", Severity: SeverityHigh, CWE: "CWE-502",
		Pattern:    regexp.MustCompile(`\b(?:pickle|cPickle|marshal|shelve)\.loads?\s*\(`),
		Message:    "Deserializing untrusted data can execute code",
		Suggestion: "Use a data-only format such as JSON for untrusted input",
		target:     targetAll,
	},
	{
		ID: "S013", Name: "yaml-load", Severity: SeverityMedium, CWE: "CWE-502",
		Pattern:    regexp.MustCompile(`\byaml\.load\s*\(`),
		Exclude:    regexp.MustCompile(`\b(?:C?SafeLoader|safe_load)\b`),
		Message:    "yaml.load() without SafeLoader can construct arbitrary objects",
		Suggestion: "Use yaml.safe_load() or pass Loader=SafeLoader",
		target:     targetAll,
	},
	{
		ID: "S014", Name: "weak-hash", Severity: SeverityMedium, CWE: "CWE-328",
		Pattern: regexp.MustCompile(`(?i)\b(?:md5|sha1)\s*[.(]|"crypto/(?:md5|sha1)"` +
			`|createHash\(\s*["'](?:md5|sha1)["']|MessageDigest\.getInstance\(\s*"(?:MD5|SHA-?1)"`),
		Message:    "Weak hash algorithm (MD5/SHA1)",
		Suggestion: "Use SHA-256 or stronger; use bcrypt/argon2 for passwords",
		target:     targetAll,
	},
	{
		ID: "S015", Name: "plaintext-http", Severity: SeverityLow, CWE: "CWE-319",
		Message:    "Plaintext http:// URL",
		Suggestion: "Use https:// for network endpoints",
		target:     targetAll,
		match: func(ln sourceLine, _ lineScope) int {
			for _, loc := range plainHTTPRe.FindAllStringIndex(ln.Text, -1) {
				url := ln.Text[loc[0]:loc[1]]
				if localHostRe.MatchString(url) || xmlNamespaceRe.MatchString(url) {
					continue
				}
				return loc[0]
			}
			return -1
		},
	},
	{
		ID: "S016", Name: "tls-verification-disabled", Severity: SeverityHigh, CWE: "CWE-295",
		Pattern: regexp.MustCompile(`\bInsecureSkipVerify\s*:\s*true\b|\bverify\s*=\s*False\b` +
			`|\brejectUnauthorized\s*:\s*false\b|NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*["']?0`),
		Message:    "TLS certificate verification disabled",
		Suggestion: "Keep certificate verification enabled",
		target:     targetAll,
	},
	{
		ID: "S017", Name: "weak-random", Severity: SeverityMedium, CWE: "CWE-338",
		Pattern: regexp.MustCompile(`\bMath\.random\s*\(|\brand\.(?:Int|Intn|Int31|Int31n|Int63|Int63n|Float64|Uint32)\s*\(` +
			`|\brandom\.(?:random|randint|choice|randrange|getrandbits)\s*\(|\bnew\s+Random\s*\(`),
		Require:    regexp.MustCompile(`(?i)token|secret|passw|salt|nonce|session|key|otp|csrf|auth`),
		Message:    "Non-cryptographic random number used for a security value",
		Suggestion: "Use a cryptographically secure random source",
		target:     targetAll,
	},
	{
		ID: "S018", Name: "string-timer", Severity: SeverityMedium, CWE: "CWE-95",
		Languages:  browserLanguages,
		Pattern:    regexp.MustCompile(`\bset(?:Timeout|Interval)\s*\(\s*["'\x60]`),
		Message:    "setTimeout/setInterval with a string evaluates code",
		Suggestion: "Avoid eval(); parse data explicitly",
		target:     targetAll,
	},
	{
		ID: "S019", Name: "debug-enabled", Severity: SeverityLow, CWE: "CWE-489",
		Pattern:    regexp.MustCompile(`\.run\s*\(.*\bdebug\s*=\s*True\b|^\s*DEBUG\s*=\s*True\b`),
		Message:    "Debug mode enabled",
		Suggestion: "Disable debug mode outside development",
		target:     targetAll,
	},
	{
		ID: "H001", Name: "inline-event-handler", Severity: SeverityMedium, CWE: "CWE-79",
		Languages:  []Language{LanguageHTML},
		Message:    "Inline event handler attribute",
		Suggestion: "Attach event listeners from script instead of inline handlers",
	},
	{
		ID: "H002", Name: "javascript-url", Severity: SeverityHigh, CWE: "CWE-79",
		Languages:  []Language{LanguageHTML},
		Message:    "javascript: URL",
		Suggestion: "Attach event listeners from script instead of inline handlers",
	},
	{
		ID: "H003", Name: "inline-script-without-nonce", Severity: SeverityLow, CWE: "CWE-79",
		Languages:  []Language{LanguageHTML},
		Message:    "Inline <script> without a CSP nonce",
		Suggestion: "Serve scripts from files or add a Content-Security-Policy nonce",
	},
	{
		ID: "H004", Name: "blank-target-without-noopener", Severity: SeverityLow, CWE: "CWE-1022",
		Languages:  []Language{LanguageHTML},
		Message:    `target="_blank" without rel="noopener"`,
		Suggestion: `Add rel="noopener noreferrer" to links opening new tabs`,
	},
	{
		ID: "H005", Name: "password-in-get-form", Severity: SeverityHigh, CWE: "CWE-598",
		Languages:  []Language{LanguageHTML},
		Message:    "Password field submitted with method=GET",
		Suggestion: "Submit credentials with method=POST over HTTPS",
	},
}

// ScanSecurity scans src for vulnerability patterns.
func ScanSecurity(src *Source) *SecurityReport {
	return scanSecurity(newScan(src))
}

func scanSecurity(s *scan) *SecurityReport {
	findings := s.applyRules(securityRules)
	if s.src.Language == LanguageHTML {
		findings = append(findings, scanHTML(s.src.Text)...)
	}
	sortFindings(findings)

	summary := SecuritySummary{Total: len(findings)}
	deduction := 0
	for _, f := range findings {
		deduction += severityPenalty[f.Severity]
		switch f.Severity {
		case SeverityCritical:
			summary.Critical++
		case SeverityHigh:
			summary.High++
		case SeverityMedium:
			summary.Medium++
		case SeverityLow:
			summary.Low++
		default:
			summary.Info++
		}
	}

	score := clampScore(100 - deduction)
	return &SecurityReport{
		Score:     score,
		RiskLevel: RiskLevel(score, summary.Critical > 0),
		Summary:   summary,
		Findings:  nonNil(findings),
	}
}

// RiskLevel classifies a security score.
func RiskLevel(score int, hasCritical bool) string {
	switch {
	case hasCritical:
		return RiskCritical
	case score < 50:
		return RiskHigh
	case score < 80:
		return RiskMedium
	case score < 100:
		return RiskLow
	default:
		return RiskNone
	}
}

func securityRule(id string) *Rule {
	for i := range securityRules {
		if strings.EqualFold(securityRules[i].ID, id) {
			return &securityRules[i]
		}
	}
	return nil
}
