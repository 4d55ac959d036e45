package analysis

import (
	"regexp"
	"strings"
)

// Declaration is a named function, method, class or type found in a source.
type Declaration struct {
	Kind      string `json:"kind" yaml:"kind"`
	Name      string `json:"name" yaml:"name"`
	Signature string `json:"signature" yaml:"signature"`
	Line      int    `json:"line" yaml:"line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	Doc       string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

const (
	DeclFunction = "function"
	DeclMethod   = "method"
	DeclClass    = "class"
	DeclType     = "type"
)

func (d Declaration) callable() bool {
	return d.Kind == DeclFunction || d.Kind == DeclMethod
}

type declPattern struct {
	re   *regexp.Regexp
	kind string
	// name is the capture group holding the declared name.
	name int
	// methodGroup, when non-zero, is a group whose presence makes the
	// declaration a method.
	methodGroup int
}

var declPatterns = map[Language][]declPattern{
	LanguageGo: {
		{re: regexp.MustCompile(`^func\s+(\([^)]*\)\s*)?(\w+)\s*(?:\[[^\]]*\])?\s*\(`), kind: DeclFunction, name: 2, methodGroup: 1},
		{re: regexp.MustCompile(`^type\s+(\w+)\b`), kind: DeclType, name: 1},
	},
	LanguagePython: {
		{re: regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(`), kind: DeclFunction, name: 1},
		{re: regexp.MustCompile(`^\s*class\s+(\w+)`), kind: DeclClass, name: 1},
	},
	LanguageJavaScript: jsDeclPatterns,
	LanguageTypeScript: append([]declPattern{
		{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?(?:interface|type|enum)\s+(\w+)`), kind: DeclType, name: 1},
	}, jsDeclPatterns...),
	LanguageJava: {
		{re: regexp.MustCompile(`^\s*(?:(?:public|private|protected|abstract|final|static|sealed)\s+)*(?:class|interface|enum|record)\s+(\w+)`), kind: DeclClass, name: 1},
		{re: regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized|native|default)\s+)+(?:<[^>]+>\s+)?[\w<>\[\],.?\s]+?\s+(\w+)\s*\(`), kind: DeclMethod, name: 1},
	},
	LanguageGeneric: {
		{re: regexp.MustCompile(`^\s*(?:function|def|func|fn|sub|proc)\s+(\w+)`), kind: DeclFunction, name: 1},
		{re: regexp.MustCompile(`^\s*(?:class|struct|module)\s+(\w+)`), kind: DeclClass, name: 1},
	},
}

var jsDeclPatterns = []declPattern{
	{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`), kind: DeclClass, name: 1},
	{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*[(<]`), kind: DeclFunction, name: 1},
	{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::[^=]+)?=>|\w+\s*=>)`), kind: DeclFunction, name: 1},
	{re: regexp.MustCompile(`^\s+(?:(?:public|private|protected|static|async|readonly|override)\s+)*(\w+)\s*\([^)]*\)\s*(?::\s*[^{]+)?\{\s*$`), kind: DeclMethod, name: 1},
}

var (
	controlKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"return": true, "function": true, "else": true, "do": true, "with": true,
		"new": true, "throw": true, "synchronized": true,
	}
	annotationRe = regexp.MustCompile(`^\s*@[\w.]+`)
)

// extractDeclarations finds declarations on the code rendition of each line
// so that names inside strings and comments are ignored.
func extractDeclarations(s *scan) []Declaration {
	patterns := declPatterns[s.src.Language]
	if len(patterns) == 0 {
		return nil
	}

	var decls []Declaration
	var classIndent []int // indentation of enclosing python classes

	for i, ln := range s.lines {
		if ln.Blank || ln.Comment {
			continue
		}

		for len(classIndent) > 0 && ln.Indent <= classIndent[len(classIndent)-1] {
			classIndent = classIndent[:len(classIndent)-1]
		}

		for _, p := range patterns {
			m := p.re.FindStringSubmatchIndex(ln.Code)
			if m == nil || m[2*p.name] < 0 {
				continue
			}
			name := ln.Code[m[2*p.name]:m[2*p.name+1]]
			if controlKeywords[name] {
				continue
			}

			kind := p.kind
			if p.methodGroup > 0 && m[2*p.methodGroup] >= 0 {
				kind = DeclMethod
			}
			if s.src.Language == LanguagePython {
				if kind == DeclFunction && len(classIndent) > 0 {
					kind = DeclMethod
				}
				if kind == DeclClass {
					classIndent = append(classIndent, ln.Indent)
				}
			}

			decls = append(decls, Declaration{
				Kind:      kind,
				Name:      name,
				Signature: signature(ln.Text),
				Line:      ln.Number,
				EndLine:   s.blockEnd(i) + 1,
				Doc:       s.docFor(i),
			})
			break
		}
	}

	return decls
}

func signature(text string) string {
	sig := strings.TrimSpace(text)
	sig = strings.TrimSuffix(sig, "{")
	sig = strings.TrimSpace(sig)
	sig = strings.TrimSuffix(sig, ":")
	return strings.TrimSpace(sig)
}

// docFor returns the documentation attached to the declaration on line i:
// a python docstring directly below it, otherwise the contiguous comment
// block directly above it. Annotations and decorators between the comment
// and the declaration are skipped.
func (s *scan) docFor(i int) string {
	if s.src.Language == LanguagePython {
		if doc := s.docstringAfter(i); doc != "" {
			return doc
		}
	}

	j := i - 1
	for j >= 0 && !s.lines[j].Comment && annotationRe.MatchString(s.lines[j].Text) {
		j--
	}

	var parts []string
	for ; j >= 0 && s.lines[j].Comment; j-- {
		parts = append(parts, commentText(s.lines[j].Text))
	}

	// parts were collected bottom-up
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return joinDoc(parts)
}

func (s *scan) docstringAfter(i int) string {
	j := i + 1
	for j < len(s.lines) && s.lines[j].Blank {
		j++
	}
	if j >= len(s.lines) {
		return ""
	}

	first := strings.TrimSpace(s.lines[j].Text)
	var quote string
	switch {
	case strings.HasPrefix(first, `"""`):
		quote = `"""`
	case strings.HasPrefix(first, `'''`):
		quote = `'''`
	default:
		return ""
	}

	start := j
	var parts []string
	for ; j < len(s.lines); j++ {
		text := strings.TrimSpace(s.lines[j].Text)
		parts = append(parts, commentText(text))

		rest := text
		if j == start {
			rest = text[len(quote):]
		}
		if strings.Contains(rest, quote) {
			break
		}
	}
	return joinDoc(parts)
}

func joinDoc(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// leadingComment returns the comment block at the top of the file, such as
// a package doc comment or a module docstring.
func (s *scan) leadingComment() string {
	var parts []string
	for _, ln := range s.lines {
		if ln.Blank {
			if len(parts) > 0 {
				break
			}
			continue
		}
		if !ln.Comment {
			break
		}
		parts = append(parts, commentText(ln.Text))
	}
	return joinDoc(parts)
}
