package analysis

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// scanHTML walks the token stream of an HTML document and reports unsafe
// markup. Line numbers are tracked by counting newlines in the raw bytes of
// each token.
func scanHTML(text string) []Finding {
	var findings []Finding

	z := html.NewTokenizer(strings.NewReader(text))
	line := 1
	formMethods := []string{} // method of each open <form>
	inScript := false
	scriptLine := 0
	scriptHasNonce := false
	scriptHasSrc := false
	scriptBody := false

	report := func(id string, at int, tag, detail string) {
		r := securityRule(id)
		if r == nil {
			return
		}
		f := r.fileFinding(at, r.Message)
		if detail != "" {
			f.Message = fmt.Sprintf("%s: <%s %s>", r.Message, tag, detail)
		}
		findings = append(findings, f)
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		raw := z.Raw()
		tokenLine := line
		line += bytes.Count(raw, []byte("\n"))

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			checkAttributes(tok, tokenLine, report)

			switch tok.Data {
			case "form":
				if tt == html.StartTagToken {
					formMethods = append(formMethods, strings.ToLower(attr(tok, "method")))
				}
			case "input":
				if strings.EqualFold(attr(tok, "type"), "password") && len(formMethods) > 0 &&
					formMethods[len(formMethods)-1] == "get" {
					report("H005", tokenLine, tok.Data, `type="password"`)
				}
			case "script":
				if tt == html.StartTagToken {
					inScript = true
					scriptLine = tokenLine
					scriptHasNonce = hasAttr(tok, "nonce")
					scriptHasSrc = hasAttr(tok, "src")
					scriptBody = false
				}
			}

		case html.TextToken:
			if inScript && strings.TrimSpace(string(raw)) != "" {
				scriptBody = true
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "form":
				if len(formMethods) > 0 {
					formMethods = formMethods[:len(formMethods)-1]
				}
			case "script":
				if inScript && scriptBody && !scriptHasSrc && !scriptHasNonce {
					report("H003", scriptLine, "script", "")
				}
				inScript = false
			}
		}
	}

	return findings
}

func checkAttributes(tok html.Token, line int, report func(id string, line int, tag, detail string)) {
	for _, a := range tok.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case strings.HasPrefix(key, "on") && len(key) > 2:
			report("H001", line, tok.Data, key)
		case key == "href" || key == "src" || key == "action" || key == "formaction":
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
				report("H002", line, tok.Data, key)
			}
		}
	}

	if strings.EqualFold(attr(tok, "target"), "_blank") && hasAttr(tok, "href") {
		rel := strings.ToLower(attr(tok, "rel"))
		if !strings.Contains(rel, "noopener") && !strings.Contains(rel, "noreferrer") {
			report("H004", line, tok.Data, `target="_blank"`)
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(tok html.Token, key string) bool {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}
