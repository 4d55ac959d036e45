package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// Format is a documentation output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat converts a user-supplied format name. The empty string means
// markdown.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, true
	case "html", "htm":
		return FormatHTML, true
	case "json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Render writes doc in the requested format.
func Render(ctx context.Context, doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(RenderMarkdown(doc)), nil
	case FormatHTML:
		var buf bytes.Buffer
		if err := DocumentPage(doc).Render(ctx, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return RenderJSON(doc)
	default:
		return nil, fmt.Errorf("unknown documentation format %q", format)
	}
}

// RenderMarkdown renders doc as Markdown.
func RenderMarkdown(doc *Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "%s\n\n", doc.Overview)

	b.WriteString("## Overview\n\n")
	b.WriteString("| Property | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Language | %s |\n", languageLabel(doc.Language))
	fmt.Fprintf(&b, "| Lines | %d |\n", doc.Stats.Lines)
	fmt.Fprintf(&b, "| Declarations | %d |\n", len(doc.Sections))
	fmt.Fprintf(&b, "| Documentation coverage | %d%% |\n\n", doc.Coverage)

	if len(doc.Sections) == 0 {
		return b.String()
	}

	b.WriteString("## Table of Contents\n\n")
	for _, sec := range doc.Sections {
		fmt.Fprintf(&b, "- [%s](#%s) (%s)\n", sec.Name, sec.Anchor, sec.Kind)
	}
	b.WriteString("\n")

	for _, sec := range doc.Sections {
		fmt.Fprintf(&b, "## <a id=\"%s\"></a>%s\n\n", sec.Anchor, sec.Name)
		fmt.Fprintf(&b, "*%s, line %d*\n\n", sec.Kind, sec.Line)
		fmt.Fprintf(&b, "```%s\n%s\n```\n\n", fenceLanguage(doc.Language), sec.Signature)
		fmt.Fprintf(&b, "%s\n\n", sec.Description)
	}

	return b.String()
}

// RenderJSON renders doc as indented JSON.
func RenderJSON(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// DocumentPage renders doc as a standalone HTML page. Every piece of
// user-derived text is escaped.
func DocumentPage(doc *Document) templ.Component {
	return docLayout(doc.Title, templ.Join(
		docSummary(doc),
		docNav(doc.Sections),
		docSections(doc.Sections),
	))
}

func docLayout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.raw("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>")
		p.text(title)
		p.raw("</title>\n</head>\n<body>\n<main class=\"sentra-docs\">\n<h1>")
		p.text(title)
		p.raw("</h1>\n")
		if p.err != nil {
			return p.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.raw("</main>\n</body>\n</html>\n")
		return p.err
	})
}

func docSummary(doc *Document) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.raw("<p class=\"overview\">")
		p.text(doc.Overview)
		p.raw("</p>\n<table class=\"summary\">\n")
		p.row("Language", languageLabel(doc.Language))
		p.row("Lines", strconv.Itoa(doc.Stats.Lines))
		p.row("Declarations", strconv.Itoa(len(doc.Sections)))
		p.row("Documentation coverage", strconv.Itoa(doc.Coverage)+"%")
		p.raw("</table>\n")
		return p.err
	})
}

func docNav(sections []Section) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if len(sections) == 0 {
			return nil
		}
		p := &pageWriter{w: w}
		p.raw("<nav>\n<ul>\n")
		for _, sec := range sections {
			p.raw("<li><a href=\"#")
			p.text(sec.Anchor)
			p.raw("\">")
			p.text(sec.Name)
			p.raw("</a> <small>")
			p.text(sec.Kind)
			p.raw("</small></li>\n")
		}
		p.raw("</ul>\n</nav>\n")
		return p.err
	})
}

func docSections(sections []Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, sec := range sections {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := docSection(sec).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func docSection(sec Section) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.raw("<section id=\"")
		p.text(sec.Anchor)
		p.raw("\">\n<h2>")
		p.text(sec.Name)
		p.raw("</h2>\n<p class=\"meta\">")
		p.text(sec.Kind)
		p.raw(", line " + strconv.Itoa(sec.Line))
		p.raw("</p>\n<pre><code>")
		p.text(sec.Signature)
		p.raw("</code></pre>\n<p>")
		p.text(sec.Description)
		p.raw("</p>\n</section>\n")
		return p.err
	})
}

// pageWriter keeps the first write error so components can emit markup
// without checking every call.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *pageWriter) row(label, value string) {
	p.raw("<tr><th>")
	p.text(label)
	p.raw("</th><td>")
	p.text(value)
	p.raw("</td></tr>\n")
}

func fenceLanguage(lang Language) string {
	if lang == LanguageGeneric {
		return ""
	}
	return string(lang)
}
