package interp

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIndent
	tokDedent
	tokName
	tokKeyword
	tokInt
	tokFloat
	tokString
	tokFString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int

	// intVal/floatVal hold the parsed literal for number tokens.
	intVal   int64
	floatVal float64
	// strVal holds the decoded value for string tokens; for f-strings it
	// is the raw body, decoded lazily by the parser.
	strVal string
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "EOF"
	case tokNewline:
		return "NEWLINE"
	case tokIndent:
		return "INDENT"
	case tokDedent:
		return "DEDENT"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// isKeyword reports whether a name is a reserved word of the subset.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true,
	"and": true, "as": true, "assert": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// operators, longest first per leading byte, matched greedily.
var operators = []string{
	"**=", "//=", ">>=", "<<=",
	"==", "!=", "<=", ">=", "->", "**", "//", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=", ":=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~",
	"<", ">", "=", "(", ")", "[", "]", "{", "}",
	",", ":", ".", ";",
}
