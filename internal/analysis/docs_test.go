package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goShapes = `// Package shapes models geometry.
package shapes

// Circle is a round shape.
type Circle struct {
	R float64
}

// Area returns the area.
func (c Circle) Area() float64 {
	return 3.14 * c.R * c.R
}

func helper() {}
`

const pyInventory = `"""Inventory helpers."""


class Store:
    """A store of items."""

    def add(self, item):
        """Add an item."""
        self.items.append(item)

    def remove(self, item):
        self.items.remove(item)


def total(items):
    # counts items
    return len(items)
`

func TestGenerateDocsGo(t *testing.T) {
	doc := GenerateDocs(&Source{Filename: "shapes.go", Language: LanguageGo, Text: goShapes})

	assert.Equal(t, "Shapes", doc.Title)
	assert.Equal(t, LanguageGo, doc.Language)
	assert.Equal(t, "Package shapes models geometry.", doc.Overview)
	require.Len(t, doc.Sections, 3)

	circle := doc.Sections[0]
	assert.Equal(t, "Circle", circle.Name)
	assert.Equal(t, DeclType, circle.Kind)
	assert.Equal(t, 5, circle.Line)
	assert.Equal(t, 7, circle.EndLine)
	assert.Equal(t, "Circle is a round shape.", circle.Description)
	assert.True(t, circle.Documented)

	area := doc.Sections[1]
	assert.Equal(t, "Area", area.Name)
	assert.Equal(t, DeclMethod, area.Kind)
	assert.Equal(t, "func (c Circle) Area() float64", area.Signature)
	assert.Equal(t, 10, area.Line)
	assert.Equal(t, 12, area.EndLine)

	helper := doc.Sections[2]
	assert.Equal(t, DeclFunction, helper.Kind)
	assert.False(t, helper.Documented)
	assert.Equal(t, noDescriptionMessage, helper.Description)
	assert.Equal(t, 14, helper.EndLine)

	assert.Equal(t, 67, doc.Coverage)
	assert.Equal(t, DocStats{Lines: 14, Functions: 1, Methods: 1, Types: 1}, doc.Stats)
}

func TestGenerateDocsPython(t *testing.T) {
	doc := GenerateDocs(&Source{Filename: "inventory.py", Language: LanguagePython, Text: pyInventory})

	assert.Equal(t, "Inventory", doc.Title)
	assert.Equal(t, "Inventory helpers.", doc.Overview)
	require.Len(t, doc.Sections, 4)

	got := make([]string, len(doc.Sections))
	for i, s := range doc.Sections {
		got[i] = s.Kind + ":" + s.Name
	}
	assert.Equal(t, []string{"class:Store", "method:add", "method:remove", "function:total"}, got)

	assert.Equal(t, "A store of items.", doc.Sections[0].Description)
	assert.Equal(t, "Add an item.", doc.Sections[1].Description)
	assert.False(t, doc.Sections[2].Documented)
	assert.False(t, doc.Sections[3].Documented)
	assert.Equal(t, "def add(self, item)", doc.Sections[1].Signature)
	assert.Equal(t, 50, doc.Coverage)
}

func TestGenerateDocsJavaScript(t *testing.T) {
	src := &Source{Language: LanguageJavaScript, Text: `/**
 * Formats a price.
 */
export function formatPrice(value) {
  return value.toFixed(2);
}

const double = (x) => x * 2;

class Cart {
  add(item) {
    if (item) {
      this.items.push(item);
    }
  }
}
`}

	doc := GenerateDocs(src)

	got := make([]string, len(doc.Sections))
	for i, s := range doc.Sections {
		got[i] = s.Kind + ":" + s.Name
	}
	assert.Equal(t, []string{"function:formatPrice", "function:double", "class:Cart", "method:add"}, got)
	assert.Equal(t, "Formats a price.", doc.Sections[0].Description)
	assert.Equal(t, 25, doc.Coverage)
	assert.Equal(t, untitledModule, doc.Title)
}

func TestGenerateDocsJavaAnnotations(t *testing.T) {
	src := &Source{Language: LanguageJava, Text: `/** A greeter. */
public class Greeter {
    // Says hello.
    @Override
    public String greet(String name) {
        return "hi " + name;
    }
}`}

	doc := GenerateDocs(src)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Greeter", doc.Sections[0].Name)
	assert.Equal(t, "A greeter.", doc.Sections[0].Description)
	assert.Equal(t, "greet", doc.Sections[1].Name)
	assert.Equal(t, "Says hello.", doc.Sections[1].Description)
	assert.Equal(t, 100, doc.Coverage)
}

func TestGenerateDocsNoDeclarations(t *testing.T) {
	doc := GenerateDocs(&Source{Language: LanguageGeneric, Text: "hello world\n"})

	assert.Empty(t, doc.Sections)
	assert.NotNil(t, doc.Sections)
	assert.Equal(t, 100, doc.Coverage)
	assert.Equal(t, "Generic source with 1 lines and no documented declarations.", doc.Overview)
}

func TestDocTitle(t *testing.T) {
	tests := map[string]string{
		"user_service.py":     "User Service",
		"src/api-client.ts":   "Api Client",
		"main.go":             "Main",
		"":                    untitledModule,
		"   ":                 untitledModule,
		"archive.tar.gz":      "Archive Tar",
		"/abs/path/widget.js": "Widget",
	}

	for in, want := range tests {
		assert.Equal(t, want, docTitle(in), "filename %q", in)
	}
}

func TestUniqueAnchor(t *testing.T) {
	seen := map[string]int{}

	assert.Equal(t, "add", uniqueAnchor(seen, "add"))
	assert.Equal(t, "add-1", uniqueAnchor(seen, "add"))
	assert.Equal(t, "add-2", uniqueAnchor(seen, "Add"))
	assert.Equal(t, "get-user", uniqueAnchor(seen, "get_user"))
	assert.Equal(t, "section", uniqueAnchor(seen, "__"))
}

func TestRenderMarkdown(t *testing.T) {
	doc := GenerateDocs(&Source{Filename: "inventory.py", Language: LanguagePython, Text: pyInventory})

	md := RenderMarkdown(doc)

	assert.True(t, strings.HasPrefix(md, "# Inventory\n"))
	assert.Contains(t, md, "| Documentation coverage | 50% |")
	assert.Contains(t, md, "## Table of Contents")
	assert.Contains(t, md, "- [Store](#store) (class)")
	assert.Contains(t, md, "```python\ndef add(self, item)\n```")
	assert.Contains(t, md, noDescriptionMessage)
}

func TestRenderHTMLEscapes(t *testing.T) {
	doc := &Document{
		Title:    "A <b>",
		Language: LanguageGo,
		Overview: `"quoted" & <script>alert(1)</script>`,
		Sections: []Section{{
			Anchor:      "x",
			Name:        "<img src=x onerror=alert(1)>",
			Kind:        DeclFunction,
			Signature:   "func X() <-chan int",
			Line:        1,
			Description: noDescriptionMessage,
		}},
		Coverage: 0,
	}

	out, err := Render(context.Background(), doc, FormatHTML)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>A &lt;b&gt;</title>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, html, "&lt;img src=x onerror=alert(1)&gt;")
	assert.Contains(t, html, "func X() &lt;-chan int")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<img")
}

func TestRenderJSON(t *testing.T) {
	doc := GenerateDocs(&Source{Filename: "shapes.go", Language: LanguageGo, Text: goShapes})

	out, err := Render(context.Background(), doc, FormatJSON)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, doc.Title, decoded.Title)
	assert.Len(t, decoded.Sections, 3)
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(context.Background(), &Document{}, Format("pdf"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatMarkdown, true},
		{"md", FormatMarkdown, true},
		{"Markdown", FormatMarkdown, true},
		{"html", FormatHTML, true},
		{"JSON", FormatJSON, true},
		{"pdf", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseFormat(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	assert.Equal(t, "text/html; charset=utf-8", FormatHTML.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
}

func TestDocumentPageSections(t *testing.T) {
	doc := GenerateDocs(&Source{Filename: "shapes.go", Language: LanguageGo, Text: goShapes})

	var buf strings.Builder
	require.NoError(t, DocumentPage(doc).Render(context.Background(), &buf))
	html := buf.String()

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>\n"))
	assert.True(t, strings.HasSuffix(html, "</html>\n"))
	assert.Contains(t, html, "<h1>Shapes</h1>")
	assert.Contains(t, html, "<tr><th>Documentation coverage</th><td>67%</td></tr>")
	assert.Contains(t, html, `<li><a href="#circle">Circle</a> <small>type</small></li>`)

	circle := strings.Index(html, `<section id="circle">`)
	area := strings.Index(html, `<section id="area">`)
	helper := strings.Index(html, `<section id="helper">`)
	require.NotEqual(t, -1, circle)
	assert.Less(t, circle, area)
	assert.Less(t, area, helper)
	assert.Contains(t, html, "<p class=\"meta\">method, line 10</p>")
}

func TestDocumentPageNoSectionsOmitsNav(t *testing.T) {
	doc := GenerateDocs(&Source{Language: LanguageGeneric, Text: "hello world\n"})

	out, err := Render(context.Background(), doc, FormatHTML)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<nav>")
	assert.NotContains(t, string(out), "<section")
}

func TestDocumentPageCancelled(t *testing.T) {
	doc := GenerateDocs(&Source{Filename: "shapes.go", Language: LanguageGo, Text: goShapes})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Render(ctx, doc, FormatHTML)
	assert.ErrorIs(t, err, context.Canceled)
}
