package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// lexer turns source text into a token stream with synthetic INDENT,
// DEDENT and NEWLINE tokens, Python-style. Parentheses, brackets and
// braces suppress line structure; a trailing backslash joins lines.
type lexer struct {
	src    string
	pos    int
	line   int
	col    int
	parens int

	indents []int
	pending []token
	atStart bool // at logical line start, indentation not yet measured
}

func newLexer(src string) *lexer {
	return &lexer{
		src:     src,
		line:    1,
		indents: []int{0},
		atStart: true,
	}
}

func (lx *lexer) errorf(format string, args ...any) error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Node:    "token",
		Line:    lx.line,
		Err:     ErrUnsupported,
	}
}

// tokens lexes the whole input.
func (lx *lexer) tokens() ([]token, error) {
	var out []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}

func (lx *lexer) next() (token, error) {
	if len(lx.pending) > 0 {
		tok := lx.pending[0]
		lx.pending = lx.pending[1:]
		return tok, nil
	}

	if lx.atStart && lx.parens == 0 {
		if tok, emitted, err := lx.measureIndent(); err != nil {
			return token{}, err
		} else if emitted {
			return tok, nil
		}
	}

	lx.skipSpacesAndComments()

	if lx.pos >= len(lx.src) {
		return lx.finish()
	}

	ch := lx.src[lx.pos]

	// Explicit line continuation.
	if ch == '\\' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n' {
		lx.advance(2)
		lx.line++
		lx.col = 0
		return lx.next()
	}

	if ch == '\n' {
		lx.advance(1)
		line := lx.line
		lx.line++
		lx.col = 0
		if lx.parens > 0 {
			return lx.next() // implicit joining inside brackets
		}
		lx.atStart = true
		return token{kind: tokNewline, line: line}, nil
	}

	if isNameStart(ch) {
		// String prefixes bind to a following quote.
		if tok, ok, err := lx.stringPrefix(); err != nil {
			return token{}, err
		} else if ok {
			return tok, nil
		}
		return lx.lexName(), nil
	}
	if ch >= '0' && ch <= '9' || ch == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1]) {
		return lx.lexNumber()
	}
	if ch == '"' || ch == '\'' {
		return lx.lexString("")
	}
	return lx.lexOperator()
}

func (lx *lexer) finish() (token, error) {
	// Close any open block with trailing DEDENTs, preceded by a final
	// NEWLINE so the parser always sees a terminated statement.
	if !lx.atStart {
		lx.atStart = true
		return token{kind: tokNewline, line: lx.line}, nil
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.pending = append(lx.pending, token{kind: tokDedent, line: lx.line})
	}
	lx.pending = append(lx.pending, token{kind: tokEOF, line: lx.line})
	tok := lx.pending[0]
	lx.pending = lx.pending[1:]
	return tok, nil
}

// measureIndent handles the start of a logical line, emitting INDENT or
// DEDENT tokens as the indentation level changes. Blank and
// comment-only lines produce no tokens.
func (lx *lexer) measureIndent() (token, bool, error) {
	var width int
measure:
	width = 0
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ':
			width++
			lx.advance(1)
		case '\t':
			width += 8 - width%8
			lx.advance(1)
		default:
			goto measured
		}
	}
measured:
	if lx.pos >= len(lx.src) {
		lx.atStart = true
		return token{}, false, nil
	}
	if lx.src[lx.pos] == '\n' || lx.src[lx.pos] == '#' {
		// Blank or comment-only line: consume to the newline and
		// measure the next line instead.
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
			lx.advance(1)
		}
		if lx.pos < len(lx.src) {
			lx.advance(1)
			lx.line++
			lx.col = 0
		}
		goto measure
	}

	lx.atStart = false
	cur := lx.indents[len(lx.indents)-1]
	switch {
	case width > cur:
		lx.indents = append(lx.indents, width)
		return token{kind: tokIndent, line: lx.line}, true, nil
	case width < cur:
		var toks []token
		for len(lx.indents) > 1 && lx.indents[len(lx.indents)-1] > width {
			lx.indents = lx.indents[:len(lx.indents)-1]
			toks = append(toks, token{kind: tokDedent, line: lx.line})
		}
		if lx.indents[len(lx.indents)-1] != width {
			return token{}, false, lx.errorf("inconsistent indentation")
		}
		lx.pending = append(lx.pending, toks[1:]...)
		return toks[0], true, nil
	default:
		return token{}, false, nil
	}
}

func (lx *lexer) skipSpacesAndComments() {
	for lx.pos < len(lx.src) {
		ch := lx.src[lx.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			lx.advance(1)
			continue
		}
		if ch == '#' {
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance(1)
			}
			continue
		}
		return
	}
}

func (lx *lexer) advance(n int) {
	lx.pos += n
	lx.col += n
}

// stringPrefix recognizes r"..." / f"..." / rb/fr combinations ahead of
// a quote character and lexes the string if present.
func (lx *lexer) stringPrefix() (token, bool, error) {
	start := lx.pos
	end := start
	for end < len(lx.src) && end-start < 2 && isPrefixLetter(lx.src[end]) {
		end++
	}
	if end == start || end >= len(lx.src) {
		return token{}, false, nil
	}
	if lx.src[end] != '"' && lx.src[end] != '\'' {
		return token{}, false, nil
	}
	prefix := strings.ToLower(lx.src[start:end])
	lx.advance(end - start)
	tok, err := lx.lexString(prefix)
	if err != nil {
		return token{}, false, err
	}
	return tok, true, nil
}

func isPrefixLetter(ch byte) bool {
	switch ch {
	case 'r', 'R', 'f', 'F', 'b', 'B', 'u', 'U':
		return true
	}
	return false
}

func (lx *lexer) lexName() token {
	start := lx.pos
	for lx.pos < len(lx.src) && isNameChar(lx.src[lx.pos]) {
		lx.advance(1)
	}
	text := lx.src[start:lx.pos]
	kind := tokName
	if keywords[text] {
		kind = tokKeyword
	}
	return token{kind: kind, text: text, line: lx.line, col: lx.col}
}

func (lx *lexer) lexNumber() (token, error) {
	start := lx.pos
	line := lx.line
	isFloat := false

	if lx.src[lx.pos] == '0' && lx.pos+1 < len(lx.src) {
		switch lx.src[lx.pos+1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			lx.advance(2)
			for lx.pos < len(lx.src) && (isHexDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
				lx.advance(1)
			}
			text := strings.ReplaceAll(lx.src[start:lx.pos], "_", "")
			val, err := strconv.ParseInt(text, 0, 64)
			if err != nil {
				return token{}, lx.errorf("invalid number literal %q", text)
			}
			return token{kind: tokInt, text: text, intVal: val, line: line}, nil
		}
	}

	for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
		lx.advance(1)
	}
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
		// Not a float when the dot starts an attribute access like 1 .real
		// is out of scope; treat digit-adjacent dot as a float point.
		isFloat = true
		lx.advance(1)
		for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.advance(1)
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
		mark := lx.pos
		lx.advance(1)
		if lx.pos < len(lx.src) && (lx.src[lx.pos] == '+' || lx.src[lx.pos] == '-') {
			lx.advance(1)
		}
		if lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			isFloat = true
			for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
				lx.advance(1)
			}
		} else {
			lx.pos = mark
		}
	}

	text := strings.ReplaceAll(lx.src[start:lx.pos], "_", "")
	if isFloat {
		val, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, lx.errorf("invalid number literal %q", text)
		}
		return token{kind: tokFloat, text: text, floatVal: val, line: line}, nil
	}
	val, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Oversized integer literals fall back to float, matching the
		// permissive behavior expected from generated code.
		fval, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return token{}, lx.errorf("invalid number literal %q", text)
		}
		return token{kind: tokFloat, text: text, floatVal: fval, line: line}, nil
	}
	return token{kind: tokInt, text: text, intVal: val, line: line}, nil
}

func (lx *lexer) lexString(prefix string) (token, error) {
	raw := strings.Contains(prefix, "r")
	formatted := strings.Contains(prefix, "f")
	line := lx.line

	quote := lx.src[lx.pos]
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3))
	if triple {
		lx.advance(3)
	} else {
		lx.advance(1)
	}

	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return token{}, lx.errorf("unterminated string literal")
		}
		ch := lx.src[lx.pos]
		if triple {
			if ch == quote && strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3)) {
				lx.advance(3)
				break
			}
		} else if ch == quote {
			lx.advance(1)
			break
		}
		if ch == '\n' {
			if !triple {
				return token{}, lx.errorf("unterminated string literal")
			}
			sb.WriteByte(ch)
			lx.advance(1)
			lx.line++
			lx.col = 0
			continue
		}
		if ch == '\\' && !raw {
			if lx.pos+1 >= len(lx.src) {
				return token{}, lx.errorf("unterminated string literal")
			}
			esc := lx.src[lx.pos+1]
			lx.advance(2)
			if formatted {
				// Keep escapes intact in f-string bodies; the parser
				// decodes literal segments after splitting on braces.
				sb.WriteByte('\\')
				sb.WriteByte(esc)
				continue
			}
			sb.WriteString(decodeEscape(esc))
			continue
		}
		sb.WriteByte(ch)
		lx.advance(1)
	}

	kind := tokString
	if formatted {
		kind = tokFString
	}
	return token{kind: kind, strVal: sb.String(), line: line}, nil
}

func decodeEscape(esc byte) string {
	switch esc {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\':
		return "\\"
	case '\'':
		return "'"
	case '"':
		return "\""
	case '0':
		return "\x00"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case '\n':
		return ""
	default:
		return "\\" + string(esc)
	}
}

func (lx *lexer) lexOperator() (token, error) {
	rest := lx.src[lx.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			line := lx.line
			lx.advance(len(op))
			switch op {
			case "(", "[", "{":
				lx.parens++
			case ")", "]", "}":
				if lx.parens > 0 {
					lx.parens--
				}
			}
			return token{kind: tokOp, text: op, line: line}, nil
		}
	}
	return token{}, lx.errorf("unexpected character %q", string(lx.src[lx.pos]))
}

func isNameStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= 0x80
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || ch >= '0' && ch <= '9'
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F' ||
		ch == 'o' || ch == 'O' || ch == 'b' || ch == 'B' || ch == 'x' || ch == 'X'
}
