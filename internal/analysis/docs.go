package analysis

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Section documents one declaration.
type Section struct {
	Anchor      string `json:"anchor" yaml:"anchor"`
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Signature   string `json:"signature" yaml:"signature"`
	Line        int    `json:"line" yaml:"line"`
	EndLine     int    `json:"end_line" yaml:"end_line"`
	Description string `json:"description" yaml:"description"`
	Documented  bool   `json:"documented" yaml:"documented"`
}

// DocStats summarises the declarations found.
type DocStats struct {
	Lines     int `json:"lines" yaml:"lines"`
	Functions int `json:"functions" yaml:"functions"`
	Methods   int `json:"methods" yaml:"methods"`
	Classes   int `json:"classes" yaml:"classes"`
	Types     int `json:"types" yaml:"types"`
}

// Document is the generated documentation for one source.
type Document struct {
	Title    string    `json:"title" yaml:"title"`
	Language Language  `json:"language" yaml:"language"`
	Overview string    `json:"overview" yaml:"overview"`
	Sections []Section `json:"sections" yaml:"sections"`
	Coverage int       `json:"coverage" yaml:"coverage"`
	Stats    DocStats  `json:"stats" yaml:"stats"`
}

const (
	untitledModule       = "Untitled Module"
	noDescriptionMessage = "No description provided."
)

// GenerateDocs extracts documentation from src.
func GenerateDocs(src *Source) *Document {
	return generateDocs(newScan(src))
}

func generateDocs(s *scan) *Document {
	doc := &Document{
		Title:    docTitle(s.src.Filename),
		Language: s.src.Language,
		Sections: []Section{},
		Coverage: 100,
	}
	doc.Stats.Lines = len(s.lines)

	anchors := make(map[string]int)
	documented := 0
	for _, d := range s.decls {
		switch d.Kind {
		case DeclFunction:
			doc.Stats.Functions++
		case DeclMethod:
			doc.Stats.Methods++
		case DeclClass:
			doc.Stats.Classes++
		case DeclType:
			doc.Stats.Types++
		}

		sec := Section{
			Anchor:      uniqueAnchor(anchors, d.Name),
			Name:        d.Name,
			Kind:        d.Kind,
			Signature:   d.Signature,
			Line:        d.Line,
			EndLine:     d.EndLine,
			Description: d.Doc,
			Documented:  d.Doc != "",
		}
		if sec.Documented {
			documented++
		} else {
			sec.Description = noDescriptionMessage
		}
		doc.Sections = append(doc.Sections, sec)
	}

	if n := len(s.decls); n > 0 {
		doc.Coverage = int(math.Round(float64(documented) * 100 / float64(n)))
	}

	doc.Overview = s.leadingComment()
	if doc.Overview == "" {
		doc.Overview = defaultOverview(doc)
	}

	return doc
}

// docTitle turns a file name such as "user_service.py" into "User Service".
func docTitle(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == "/" {
		return untitledModule
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	if len(words) == 0 {
		return untitledModule
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func uniqueAnchor(seen map[string]int, name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	anchor := strings.Trim(b.String(), "-")
	if anchor == "" {
		anchor = "section"
	}

	seen[anchor]++
	if n := seen[anchor]; n > 1 {
		return fmt.Sprintf("%s-%d", anchor, n-1)
	}
	return anchor
}

func defaultOverview(doc *Document) string {
	if len(doc.Sections) == 0 {
		return fmt.Sprintf("%s source with %d lines and no documented declarations.",
			languageLabel(doc.Language), doc.Stats.Lines)
	}

	var parts []string
	for _, c := range []struct {
		n    int
		noun string
	}{
		{doc.Stats.Classes, "class"},
		{doc.Stats.Types, "type"},
		{doc.Stats.Functions, "function"},
		{doc.Stats.Methods, "method"},
	} {
		if c.n > 0 {
			parts = append(parts, plural(c.n, c.noun))
		}
	}

	return fmt.Sprintf("%s source with %d lines defining %s.",
		languageLabel(doc.Language), doc.Stats.Lines, strings.Join(parts, ", "))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "s") {
		return fmt.Sprintf("%d %ses", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func languageLabel(lang Language) string {
	switch lang {
	case LanguageHTML:
		return "HTML"
	case LanguageJavaScript:
		return "JavaScript"
	case LanguageTypeScript:
		return "TypeScript"
	case "":
		return "Generic"
	default:
		return cases.Title(language.English).String(string(lang))
	}
}
