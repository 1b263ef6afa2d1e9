package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Python performs a structural syntax check of python source and, when the
// source is well formed, extracts the top-level module name of every import.
// Without a real python parser the scanner covers the failure classes that
// dominate generated code: unbalanced brackets, unterminated strings, block
// headers missing their colon, and inconsistent indentation.
func Python(content string) *Result {
	s := newPyScanner(content)
	issues := s.scan()
	if len(issues) > 0 {
		return &Result{Valid: false, Errors: issues, Warnings: []string{}, Imports: []string{}}
	}
	return &Result{
		Valid:    true,
		Errors:   []Issue{},
		Warnings: []string{},
		Imports:  extractPythonImports(s.codeLines),
	}
}

type bracketOpen struct {
	ch   byte
	line int
	col  int
}

type pyScanner struct {
	lines []string
	// codeLines holds each physical line with strings and comments blanked
	// out, used by the colon/indent passes and import extraction.
	codeLines []string
	// depthAtEOL[i] is the bracket nesting depth after scanning line i.
	depthAtEOL []int

	stack       []bracketOpen
	inTriple    bool
	tripleQuote string
	tripleLine  int

	issues []Issue
}

func newPyScanner(content string) *pyScanner {
	lines := strings.Split(content, "\n")
	return &pyScanner{
		lines:      lines,
		codeLines:  make([]string, len(lines)),
		depthAtEOL: make([]int, len(lines)),
	}
}

func (s *pyScanner) scan() []Issue {
	for i := range s.lines {
		s.scanLine(i)
		s.depthAtEOL[i] = len(s.stack)
	}
	if s.inTriple {
		s.report("syntax", s.tripleLine, 1, "unterminated triple-quoted string literal")
	}
	if len(s.stack) > 0 {
		open := s.stack[0]
		s.report("syntax", open.line, open.col, fmt.Sprintf("'%c' was never closed", open.ch))
	}
	if len(s.issues) == 0 {
		s.checkBlocks()
	}
	return s.issues
}

func (s *pyScanner) scanLine(i int) {
	line := s.lines[i]
	code := make([]byte, len(line))
	for k := range code {
		code[k] = ' '
	}
	j := 0
	for j < len(line) {
		if s.inTriple {
			if idx := strings.Index(line[j:], s.tripleQuote); idx >= 0 {
				j += idx + len(s.tripleQuote)
				s.inTriple = false
				continue
			}
			j = len(line)
			continue
		}
		ch := line[j]
		switch ch {
		case '#':
			j = len(line)
		case '"', '\'':
			j = s.scanString(i, line, j, code)
		case '(', '[', '{':
			s.stack = append(s.stack, bracketOpen{ch: ch, line: i + 1, col: j + 1})
			code[j] = ch
			j++
		case ')', ']', '}':
			s.closeBracket(i, j, ch)
			code[j] = ch
			j++
		default:
			code[j] = ch
			j++
		}
	}
	s.codeLines[i] = strings.TrimRight(string(code), " ")
}

// scanString consumes a string literal starting at line[j] and returns the
// index just past it. Prefix letters (f, r, b and combinations) were consumed
// as ordinary identifier bytes before the quote was reached, which is fine:
// the quote character itself anchors the literal.
func (s *pyScanner) scanString(i int, line string, j int, code []byte) int {
	quote := line[j]
	triple := string(quote) + string(quote) + string(quote)
	if strings.HasPrefix(line[j:], triple) {
		rest := line[j+3:]
		if idx := strings.Index(rest, triple); idx >= 0 {
			return j + 3 + idx + 3
		}
		s.inTriple = true
		s.tripleQuote = triple
		s.tripleLine = i + 1
		return len(line)
	}
	for k := j + 1; k < len(line); k++ {
		if line[k] == '\\' {
			k++
			continue
		}
		if line[k] == quote {
			return k + 1
		}
	}
	// Line continuation keeps a single-quoted string open
	if strings.HasSuffix(line, "\\") {
		return len(line)
	}
	s.report("syntax", i+1, j+1, "unterminated string literal")
	return len(line)
}

func (s *pyScanner) closeBracket(i, j int, ch byte) {
	opposite := map[byte]byte{')': '(', ']': '[', '}': '{'}
	want := opposite[ch]
	if len(s.stack) == 0 {
		s.report("syntax", i+1, j+1, fmt.Sprintf("unmatched '%c'", ch))
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if top.ch != want {
		s.report("syntax", i+1, j+1,
			fmt.Sprintf("closing bracket '%c' does not match opening bracket '%c'", ch, top.ch))
	}
}

var pyBlockKeywords = map[string]bool{
	"def": true, "class": true, "if": true, "elif": true, "else": true,
	"for": true, "while": true, "try": true, "except": true,
	"finally": true, "with": true, "async": true,
}

// checkBlocks runs the colon and indentation passes over logical lines.
// Continuation lines (inside brackets or after a trailing backslash) are
// excluded, which keeps the pass free of false positives on wrapped code.
func (s *pyScanner) checkBlocks() {
	indents := []int{0}
	expectIndent := false
	expectLine := 0
	prevDepth := 0
	continuation := false
	for i, code := range s.codeLines {
		depthAtStart := prevDepth
		prevDepth = s.depthAtEOL[i]
		if depthAtStart > 0 || continuation {
			continuation = strings.HasSuffix(code, "\\")
			continue
		}
		continuation = strings.HasSuffix(code, "\\")
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		indent := leadingWidth(code)
		if expectIndent {
			expectIndent = false
			if indent <= indents[len(indents)-1] {
				s.report("indentation", i+1, 1,
					fmt.Sprintf("expected an indented block after line %d", expectLine))
				return
			}
			indents = append(indents, indent)
		}
		top := indents[len(indents)-1]
		switch {
		case indent > top:
			s.report("indentation", i+1, 1, "unexpected indent")
			return
		case indent < top:
			for len(indents) > 1 && indents[len(indents)-1] > indent {
				indents = indents[:len(indents)-1]
			}
			if indents[len(indents)-1] != indent {
				s.report("indentation", i+1, 1, "unindent does not match any outer indentation level")
				return
			}
		}
		// A complete single-line block header must end with ':'. Any logical
		// line ending with ':' at depth zero opens a block, which also covers
		// soft keywords like match/case.
		if s.depthAtEOL[i] == 0 && !strings.HasSuffix(trimmed, "\\") {
			if pyBlockKeywords[firstWord(trimmed)] && !strings.Contains(trimmed, ":") {
				s.report("syntax", i+1, len(code)+1, "expected ':'")
				return
			}
			if strings.HasSuffix(trimmed, ":") {
				expectIndent = true
				expectLine = i + 1
			}
		}
	}
}

func leadingWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		default:
			return width
		}
	}
	return width
}

func firstWord(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
			return s[:i]
		}
	}
	return s
}

func (s *pyScanner) report(issueType string, line, col int, message string) {
	s.issues = append(s.issues, Issue{
		Type:       issueType,
		Message:    message,
		Line:       line,
		Column:     col,
		Suggestion: suggestPythonFix(message),
	})
}

// suggestPythonFix maps an error message to a short remediation hint.
// Indentation wording is matched before the generic "expected" class because
// "expected an indented block" belongs to the indentation family.
func suggestPythonFix(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "expected ':'"):
		return "Check for typos or missing colons"
	case strings.Contains(msg, "indent"):
		return "Fix indentation - use consistent spaces or tabs"
	case strings.Contains(msg, "never closed"),
		strings.Contains(msg, "unmatched"),
		strings.Contains(msg, "does not match opening"),
		strings.Contains(msg, "unterminated"),
		strings.Contains(msg, "unexpected eof"),
		strings.Contains(msg, "expected"):
		return "Check for missing closing brackets, parentheses, or quotes"
	case strings.Contains(msg, "invalid syntax"):
		return "Check for typos or missing colons"
	case strings.Contains(msg, "f-string"):
		return "Check f-string syntax - ensure proper braces {}"
	default:
		return ""
	}
}

var (
	pyImportRe     = regexp.MustCompile(`^\s*import\s+(.+)$`)
	pyFromImportRe = regexp.MustCompile(`^\s*from\s+(\.*)([A-Za-z_][\w.]*)?\s+import\b`)
)

// extractPythonImports collects the top-level module of every import
// statement, deduplicated in first-seen order.
func extractPythonImports(codeLines []string) []string {
	seen := make(map[string]bool)
	var imports []string
	add := func(module string) {
		base := strings.SplitN(module, ".", 2)[0]
		if base == "" || seen[base] {
			return
		}
		seen[base] = true
		imports = append(imports, base)
	}
	for _, line := range codeLines {
		if m := pyFromImportRe.FindStringSubmatch(line); m != nil {
			if m[2] != "" {
				add(m[2])
			}
			continue
		}
		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				name := strings.TrimSpace(part)
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = name[:idx]
				}
				add(strings.TrimSpace(name))
			}
		}
	}
	if imports == nil {
		imports = []string{}
	}
	return imports
}
