package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sourceLine is one line of input after comment and string classification.
type sourceLine struct {
	Number int    // 1-based
	Text   string // raw text
	Code   string // Text with comments and string contents blanked, same byte length
	Indent int    // leading whitespace width, tabs count as 4
	Blank  bool
	// Comment is set when the line carries comment text and no code.
	Comment bool
}

// lineScope records the block structure around one line.
type lineScope struct {
	Depth      int  // blocks enclosing the line
	DepthAfter int  // blocks open once the line has been read
	LoopDepth  int  // loops enclosing the line, not counting one it opens
	OpensLoop  bool // the line is a loop header
}

// scan is the shared, read-only pass every analyzer works from. It is built
// once per request and may be read from several goroutines.
type scan struct {
	src    *Source
	lines  []sourceLine
	scopes []lineScope
	decls  []Declaration
}

func newScan(src *Source) *scan {
	s := &scan{src: src}
	s.lines = classifyLines(src.Lines(), src.Language)
	s.scopes = walkScopes(s.lines, src.Language)
	s.decls = extractDeclarations(s)
	return s
}

type commentSyntax struct {
	line       []string
	blockStart []string
	blockEnd   []string
	quotes     string
}

func syntaxFor(lang Language) commentSyntax {
	switch lang {
	case LanguageGo, LanguageJavaScript, LanguageTypeScript, LanguageJava:
		return commentSyntax{
			line:       []string{"//"},
			blockStart: []string{"/*"},
			blockEnd:   []string{"*/"},
			quotes:     "\"'`",
		}
	case LanguagePython:
		return commentSyntax{
			line:       []string{"#"},
			blockStart: []string{`"""`, `'''`},
			blockEnd:   []string{`"""`, `'''`},
			quotes:     "\"'",
		}
	case LanguageHTML:
		return commentSyntax{
			blockStart: []string{"<!--"},
			blockEnd:   []string{"-->"},
		}
	default:
		return commentSyntax{
			line:       []string{"#", "//"},
			blockStart: []string{"/*"},
			blockEnd:   []string{"*/"},
			quotes:     "\"'",
		}
	}
}

// classifyLines blanks comments and string contents so code rules never
// match inside them. Block comments and backtick literals carry over between
// lines; other string literals end with their line.
func classifyLines(raw []string, lang Language) []sourceLine {
	syntax := syntaxFor(lang)
	lines := make([]sourceLine, len(raw))
	var state lexState

	for i, text := range raw {
		var code string
		var hasCode, sawComment bool
		code, hasCode, sawComment, state = stripLine(text, syntax, state)

		trimmed := strings.TrimSpace(text)
		lines[i] = sourceLine{
			Number:  i + 1,
			Text:    text,
			Code:    code,
			Indent:  indentWidth(text),
			Blank:   trimmed == "",
			Comment: trimmed != "" && !hasCode && sawComment,
		}
	}

	return lines
}

// lexState is what stripLine carries from the end of one line into the next.
type lexState struct {
	blockEnd string // closing marker of an open block comment
	inRaw    bool   // inside a backtick literal
}

func stripLine(text string, syntax commentSyntax, state lexState) (code string, hasCode, sawComment bool, next lexState) {
	out := []byte(text)
	i := 0
	blockEnd, inRaw := state.blockEnd, state.inRaw

	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			out[k] = ' '
		}
	}

	for i < len(out) {
		if inRaw {
			hasCode = true
			end := strings.IndexByte(text[i:], '`')
			if end < 0 {
				blank(i, len(out))
				i = len(out)
				break
			}
			blank(i, i+end)
			i += end + 1
			inRaw = false
			continue
		}

		if blockEnd != "" {
			sawComment = true
			end := strings.Index(text[i:], blockEnd)
			if end < 0 {
				blank(i, len(out))
				i = len(out)
				break
			}
			blank(i, i+end+len(blockEnd))
			i += end + len(blockEnd)
			blockEnd = ""
			continue
		}

		if start, endMarker := matchAny(text[i:], syntax.blockStart, syntax.blockEnd); start != "" {
			blank(i, i+len(start))
			i += len(start)
			blockEnd = endMarker
			continue
		}

		if marker, _ := matchAny(text[i:], syntax.line, syntax.line); marker != "" {
			sawComment = true
			blank(i, len(out))
			break
		}

		c := text[i]
		if syntax.quotes != "" && strings.IndexByte(syntax.quotes, c) >= 0 {
			hasCode = true
			end := closingQuote(text, i, c)
			blank(i+1, end)
			if end >= len(text) {
				inRaw = c == '`'
				break
			}
			i = end + 1
			continue
		}

		if c != ' ' && c != '\t' {
			hasCode = true
		}
		i++
	}

	return string(out), hasCode, sawComment, lexState{blockEnd: blockEnd, inRaw: inRaw}
}

func matchAny(s string, starts, ends []string) (string, string) {
	for idx, start := range starts {
		if strings.HasPrefix(s, start) {
			return start, ends[idx]
		}
	}
	return "", ""
}

// closingQuote returns the index of the quote that closes the literal
// opened at text[open], or len(text) when it is unterminated.
func closingQuote(text string, open int, quote byte) int {
	for j := open + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j
		}
	}
	return len(text)
}

func indentWidth(text string) int {
	width := 0
	for _, r := range text {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

var (
	braceLoopRe   = regexp.MustCompile(`^\s*(?:for|while|do)\b`)
	iterCallRe    = regexp.MustCompile(`\.(?:forEach|map|filter|reduce|flatMap|some|every)\s*\(`)
	pythonLoopRe  = regexp.MustCompile(`^\s*(?:async\s+)?(?:for|while)\b.*:\s*$`)
	pythonBlockRe = regexp.MustCompile(`:\s*$`)
)

func walkScopes(lines []sourceLine, lang Language) []lineScope {
	if lang.braceScoped() {
		return walkBraceScopes(lines)
	}
	return walkIndentScopes(lines)
}

func walkBraceScopes(lines []sourceLine) []lineScope {
	scopes := make([]lineScope, len(lines))
	depth := 0
	var loops []int // body depth of each open loop
	pendingLoop := false

	popLoops := func() {
		for len(loops) > 0 && loops[len(loops)-1] > depth {
			loops = loops[:len(loops)-1]
		}
	}

	for i, ln := range lines {
		if ln.Blank || ln.Comment {
			scopes[i] = lineScope{Depth: depth, DepthAfter: depth, LoopDepth: len(loops)}
			continue
		}

		code := strings.TrimSpace(ln.Code)
		leading := 0
		for leading < len(code) && code[leading] == '}' {
			leading++
		}
		depth -= leading
		if depth < 0 {
			depth = 0
		}
		popLoops()

		header := braceLoopRe.MatchString(code)
		scope := lineScope{
			Depth:     depth,
			LoopDepth: len(loops),
			OpensLoop: header || iterCallRe.MatchString(code),
		}

		opens := strings.Count(code, "{") - strings.Count(code, "}") + leading
		next := depth + opens
		if next < 0 {
			next = 0
		}
		switch {
		case (scope.OpensLoop || pendingLoop) && next > depth:
			loops = append(loops, depth+1)
			pendingLoop = false
		case header && !strings.HasSuffix(code, ";"):
			// body brace on the following line
			pendingLoop = true
		default:
			pendingLoop = false
		}
		depth = next
		popLoops()

		scope.DepthAfter = depth
		scopes[i] = scope
	}

	return scopes
}

func walkIndentScopes(lines []sourceLine) []lineScope {
	type frame struct {
		indent int
		loop   bool
	}

	scopes := make([]lineScope, len(lines))
	var stack []frame

	loopCount := func() int {
		n := 0
		for _, f := range stack {
			if f.loop {
				n++
			}
		}
		return n
	}

	for i, ln := range lines {
		if ln.Blank || ln.Comment {
			scopes[i] = lineScope{Depth: len(stack), DepthAfter: len(stack), LoopDepth: loopCount()}
			continue
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= ln.Indent {
			stack = stack[:len(stack)-1]
		}

		code := strings.TrimRight(ln.Code, " \t")
		scope := lineScope{
			Depth:     len(stack),
			LoopDepth: loopCount(),
			OpensLoop: pythonLoopRe.MatchString(code),
		}

		if pythonBlockRe.MatchString(code) {
			stack = append(stack, frame{indent: ln.Indent, loop: scope.OpensLoop})
		}

		scope.DepthAfter = len(stack)
		scopes[i] = scope
	}

	return scopes
}

// blockEnd returns the index of the last line of the block that starts on
// line start, or the last line of the file when the block never closes.
func (s *scan) blockEnd(start int) int {
	if start >= len(s.lines) {
		return len(s.lines) - 1
	}

	if s.src.Language.braceScoped() {
		base := s.scopes[start].Depth
		if s.scopes[start].DepthAfter <= base && strings.Contains(s.lines[start].Code, "{") {
			return start
		}
		opened := false
		for j := start; j < len(s.lines); j++ {
			if s.scopes[j].DepthAfter > base {
				opened = true
			}
			if opened && s.scopes[j].DepthAfter <= base {
				return j
			}
			// a header without a body, e.g. an interface method
			if !opened && j > start+3 {
				return start
			}
		}
		return len(s.lines) - 1
	}

	indent := s.lines[start].Indent
	end := start
	for j := start + 1; j < len(s.lines); j++ {
		ln := s.lines[j]
		if ln.Blank {
			continue
		}
		if !ln.Comment && ln.Indent <= indent {
			break
		}
		end = j
	}
	return end
}

// column converts a byte offset in text into a 1-based rune column.
func column(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return utf8.RuneCountInString(text[:offset]) + 1
}

// stats holds the line counts every analyzer reports.
type stats struct {
	Total   int
	Code    int
	Comment int
	Blank   int
}

func (s *scan) stats() stats {
	var st stats
	st.Total = len(s.lines)
	for _, ln := range s.lines {
		switch {
		case ln.Blank:
			st.Blank++
		case ln.Comment:
			st.Comment++
		default:
			st.Code++
		}
	}
	return st
}

// commentText strips comment markers from a comment line.
func commentText(line string) string {
	t := strings.TrimSpace(line)
	for _, prefix := range []string{"/**", "/*", "*/", "//", "#", "<!--", `"""`, `'''`} {
		t = strings.TrimPrefix(t, prefix)
	}
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, "* ")
	if t == "*" {
		t = ""
	}
	for _, suffix := range []string{"*/", "-->", `"""`, `'''`} {
		t = strings.TrimSuffix(t, suffix)
	}
	return strings.TrimSpace(t)
}
