package interp

import (
	"fmt"
	"strings"
)

// Parse turns source text into a list of top-level statements.
func Parse(src string) ([]Stmt, error) {
	toks, err := newLexer(src).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src}
	var stmts []Stmt
	for !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.advance()
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt...)
	}
	return stmts, nil
}

type parser struct {
	toks []token
	idx  int
	src  string
}

func (p *parser) cur() token { return p.toks[p.idx] }
func (p *parser) advance()   { p.idx++ }

func (p *parser) at(k tokenKind) bool {
	return p.cur().kind == k
}

func (p *parser) atOp(text string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == text
}

func (p *parser) atKeyword(text string) bool {
	t := p.cur()
	return t.kind == tokKeyword && t.text == text
}

func (p *parser) eatOp(text string) bool {
	if p.atOp(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) eatKeyword(text string) bool {
	if p.atKeyword(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectOp(text string) error {
	if !p.eatOp(text) {
		return p.errorf("expected %q, found %s", text, p.cur())
	}
	return nil
}

func (p *parser) expectKeyword(text string) error {
	if !p.eatKeyword(text) {
		return p.errorf("expected %q, found %s", text, p.cur())
	}
	return nil
}

func (p *parser) expectName() (string, error) {
	if !p.at(tokName) {
		return "", p.errorf("expected a name, found %s", p.cur())
	}
	name := p.cur().text
	p.advance()
	return name, nil
}

func (p *parser) expectNewline() error {
	if p.at(tokNewline) {
		p.advance()
		return nil
	}
	if p.at(tokEOF) {
		return nil
	}
	return p.errorf("unexpected %s after statement", p.cur())
}

func (p *parser) errorf(format string, args ...any) error {
	return &Error{
		Message:  fmt.Sprintf("invalid syntax: "+format, args...),
		Fragment: p.lineText(p.cur().line),
		Node:     "parse",
		Line:     p.cur().line,
		Err:      ErrUnsupported,
	}
}

func (p *parser) lineText(line int) string {
	lines := strings.Split(p.src, "\n")
	if line >= 1 && line <= len(lines) {
		return strings.TrimSpace(lines[line-1])
	}
	return ""
}

// ---- statements ----

// parseStatement handles one logical line, which may carry several
// simple statements separated by semicolons.
func (p *parser) parseStatement() ([]Stmt, error) {
	if stmt, ok, err := p.parseCompound(); err != nil {
		return nil, err
	} else if ok {
		return []Stmt{stmt}, nil
	}

	var out []Stmt
	for {
		stmt, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		if !p.eatOp(";") {
			break
		}
		if p.at(tokNewline) || p.at(tokEOF) {
			break
		}
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseCompound() (Stmt, bool, error) {
	t := p.cur()
	if t.kind != tokKeyword {
		return nil, false, nil
	}
	var stmt Stmt
	var err error
	switch t.text {
	case "if":
		stmt, err = p.parseIf()
	case "while":
		stmt, err = p.parseWhile()
	case "for":
		stmt, err = p.parseFor()
	case "try":
		stmt, err = p.parseTry()
	case "with":
		stmt, err = p.parseWith()
	case "def":
		stmt, err = p.parseFuncDef()
	case "class":
		stmt, err = p.parseClassDef()
	default:
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return stmt, true, nil
}

func (p *parser) parseSimple() (Stmt, error) {
	t := p.cur()
	if t.kind == tokKeyword {
		switch t.text {
		case "pass":
			p.advance()
			return &PassStmt{pos{t.line}}, nil
		case "break":
			p.advance()
			return &BreakStmt{pos{t.line}}, nil
		case "continue":
			p.advance()
			return &ContinueStmt{pos{t.line}}, nil
		case "return":
			p.advance()
			if p.at(tokNewline) || p.at(tokEOF) || p.atOp(";") {
				return &ReturnStmt{pos: pos{t.line}}, nil
			}
			value, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			return &ReturnStmt{pos: pos{t.line}, Value: value}, nil
		case "raise":
			return p.parseRaise()
		case "assert":
			return p.parseAssert()
		case "import":
			return p.parseImport()
		case "from":
			return p.parseImportFrom()
		case "del":
			return p.parseDelete()
		case "global", "nonlocal", "yield":
			return nil, p.errorf("%s is not supported", t.text)
		}
	}
	return p.parseExprOrAssign()
}

func (p *parser) parseExprOrAssign() (Stmt, error) {
	line := p.cur().line
	first, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}

	// Augmented assignment.
	if t := p.cur(); t.kind == tokOp && strings.HasSuffix(t.text, "=") && isAugOp(t.text) {
		op := strings.TrimSuffix(t.text, "=")
		p.advance()
		switch first.(type) {
		case *NameExpr, *AttrExpr, *SubscriptExpr:
		default:
			return nil, p.errorf("invalid augmented assignment target")
		}
		value, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &AugAssignStmt{pos: pos{line}, Target: first, Op: op, Value: value}, nil
	}

	if !p.atOp("=") {
		return &ExprStmt{pos: pos{line}, Value: first}, nil
	}

	targets := []Expr{first}
	var value Expr
	for p.eatOp("=") {
		next, err := p.parseTargetList()
		if err != nil {
			return nil, err
		}
		if p.atOp("=") {
			targets = append(targets, next)
			continue
		}
		value = next
	}
	for _, t := range targets {
		if err := p.checkTarget(t, false); err != nil {
			return nil, err
		}
	}
	if _, ok := value.(*StarredExpr); ok {
		return nil, p.errorf("starred expression is not allowed here")
	}
	return &AssignStmt{pos: pos{line}, Targets: targets, Value: value}, nil
}

// checkTarget rejects expressions that cannot be assigned to. Starred
// elements are valid only inside a tuple or list target.
func (p *parser) checkTarget(e Expr, inList bool) error {
	switch t := e.(type) {
	case *NameExpr, *AttrExpr, *SubscriptExpr:
		return nil
	case *TupleExpr:
		for _, el := range t.Elts {
			if err := p.checkTarget(el, true); err != nil {
				return err
			}
		}
		return nil
	case *ListExpr:
		for _, el := range t.Elts {
			if err := p.checkTarget(el, true); err != nil {
				return err
			}
		}
		return nil
	case *StarredExpr:
		if !inList {
			return p.errorf("starred assignment target must be in a list or tuple")
		}
		return p.checkTarget(t.Value, false)
	default:
		return p.errorf("cannot assign to this expression")
	}
}

func isAugOp(text string) bool {
	switch text {
	case "+=", "-=", "*=", "/=", "//=", "%=", "**=", "&=", "|=", "^=", ">>=", "<<=", "@=":
		return true
	}
	return false
}

// parseTargetList parses a comma-separated expression list that may be
// an assignment target (starred elements allowed).
func (p *parser) parseTargetList() (Expr, error) {
	line := p.cur().line
	first, err := p.parseStarOrTernary()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.eatOp(",") {
		if p.exprListEnd() {
			break
		}
		elt, err := p.parseStarOrTernary()
		if err != nil {
			return nil, err
		}
		elts = append(elts, elt)
	}
	return &TupleExpr{pos: pos{line}, Elts: elts}, nil
}

func (p *parser) parseStarOrTernary() (Expr, error) {
	if p.atOp("*") {
		line := p.cur().line
		p.advance()
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &StarredExpr{pos: pos{line}, Value: inner}, nil
	}
	return p.parseTernary()
}

// parseExprList parses `a, b, c` into a tuple when more than one
// element is present.
func (p *parser) parseExprList() (Expr, error) {
	return p.parseTargetList()
}

func (p *parser) exprListEnd() bool {
	t := p.cur()
	if t.kind == tokNewline || t.kind == tokEOF {
		return true
	}
	if t.kind == tokOp {
		switch t.text {
		case "=", ")", "]", "}", ":", ";":
			return true
		}
	}
	return false
}

func (p *parser) parseRaise() (Stmt, error) {
	line := p.cur().line
	p.advance()
	stmt := &RaiseStmt{pos: pos{line}}
	if p.at(tokNewline) || p.at(tokEOF) || p.atOp(";") {
		return stmt, nil
	}
	exc, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	stmt.Exc = exc
	if p.eatKeyword("from") {
		cause, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		stmt.Cause = cause
	}
	return stmt, nil
}

func (p *parser) parseAssert() (Stmt, error) {
	line := p.cur().line
	p.advance()
	cond, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	stmt := &AssertStmt{pos: pos{line}, Cond: cond}
	if p.eatOp(",") {
		msg, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		stmt.Msg = msg
	}
	return stmt, nil
}

func (p *parser) parseImport() (Stmt, error) {
	line := p.cur().line
	p.advance()
	stmt := &ImportStmt{pos: pos{line}}
	for {
		path, err := p.parseDottedName()
		if err != nil {
			return nil, err
		}
		name := ImportName{Path: path}
		if p.eatKeyword("as") {
			alias, err := p.expectName()
			if err != nil {
				return nil, err
			}
			name.Alias = alias
		}
		stmt.Names = append(stmt.Names, name)
		if !p.eatOp(",") {
			return stmt, nil
		}
	}
}

func (p *parser) parseImportFrom() (Stmt, error) {
	line := p.cur().line
	p.advance()
	module, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("import"); err != nil {
		return nil, err
	}
	stmt := &ImportFromStmt{pos: pos{line}, Module: module}
	if p.eatOp("*") {
		stmt.Names = append(stmt.Names, ImportName{Path: "*"})
		return stmt, nil
	}
	parens := p.eatOp("(")
	for {
		target, err := p.expectName()
		if err != nil {
			return nil, err
		}
		name := ImportName{Path: target}
		if p.eatKeyword("as") {
			alias, err := p.expectName()
			if err != nil {
				return nil, err
			}
			name.Alias = alias
		}
		stmt.Names = append(stmt.Names, name)
		if !p.eatOp(",") {
			break
		}
		if parens && p.atOp(")") {
			break
		}
	}
	if parens {
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseDottedName() (string, error) {
	first, err := p.expectName()
	if err != nil {
		return "", err
	}
	parts := []string{first}
	for p.eatOp(".") {
		next, err := p.expectName()
		if err != nil {
			return "", err
		}
		parts = append(parts, next)
	}
	return strings.Join(parts, "."), nil
}

func (p *parser) parseDelete() (Stmt, error) {
	line := p.cur().line
	p.advance()
	stmt := &DeleteStmt{pos: pos{line}}
	for {
		target, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		stmt.Targets = append(stmt.Targets, target)
		if !p.eatOp(",") {
			return stmt, nil
		}
	}
}

// ---- compound statements ----

// parseBlock parses `: NEWLINE INDENT stmts DEDENT` or an inline
// `: simple_stmts NEWLINE` suite.
func (p *parser) parseBlock() ([]Stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if !p.at(tokNewline) {
		// Inline suite on the same line.
		var out []Stmt
		for {
			stmt, err := p.parseSimple()
			if err != nil {
				return nil, err
			}
			out = append(out, stmt)
			if !p.eatOp(";") {
				break
			}
			if p.at(tokNewline) || p.at(tokEOF) {
				break
			}
		}
		if err := p.expectNewline(); err != nil {
			return nil, err
		}
		return out, nil
	}
	p.advance() // newline
	if !p.at(tokIndent) {
		return nil, p.errorf("expected an indented block")
	}
	p.advance()
	var out []Stmt
	for !p.at(tokDedent) && !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.advance()
			continue
		}
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	if p.at(tokDedent) {
		p.advance()
	}
	if len(out) == 0 {
		return nil, p.errorf("expected an indented block")
	}
	return out, nil
}

func (p *parser) parseIf() (Stmt, error) {
	line := p.cur().line
	p.advance()
	cond, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{pos: pos{line}, Cond: cond, Body: body}
	if p.atKeyword("elif") {
		nested, err := p.parseIf() // reuse: elif parses like if
		if err != nil {
			return nil, err
		}
		stmt.Else = []Stmt{nested}
		return stmt, nil
	}
	if p.eatKeyword("else") {
		orelse, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = orelse
	}
	return stmt, nil
}

func (p *parser) parseWhile() (Stmt, error) {
	line := p.cur().line
	p.advance()
	cond, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &WhileStmt{pos: pos{line}, Cond: cond, Body: body}
	if p.eatKeyword("else") {
		orelse, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = orelse
	}
	return stmt, nil
}

func (p *parser) parseFor() (Stmt, error) {
	line := p.cur().line
	p.advance()
	target, err := p.parseForTarget()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ForStmt{pos: pos{line}, Target: target, Iter: iter, Body: body}
	if p.eatKeyword("else") {
		orelse, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = orelse
	}
	return stmt, nil
}

// parseForTarget parses a loop target: name, tuple of names, starred.
func (p *parser) parseForTarget() (Expr, error) {
	line := p.cur().line
	first, err := p.parseForTargetAtom()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.eatOp(",") {
		if p.atKeyword("in") {
			break
		}
		elt, err := p.parseForTargetAtom()
		if err != nil {
			return nil, err
		}
		elts = append(elts, elt)
	}
	return &TupleExpr{pos: pos{line}, Elts: elts}, nil
}

func (p *parser) parseForTargetAtom() (Expr, error) {
	if p.atOp("*") {
		line := p.cur().line
		p.advance()
		inner, err := p.parseForTargetAtom()
		if err != nil {
			return nil, err
		}
		return &StarredExpr{pos: pos{line}, Value: inner}, nil
	}
	if p.atOp("(") || p.atOp("[") {
		closing := "]"
		if p.atOp("(") {
			closing = ")"
		}
		line := p.cur().line
		p.advance()
		var elts []Expr
		for !p.atOp(closing) {
			elt, err := p.parseForTargetAtom()
			if err != nil {
				return nil, err
			}
			elts = append(elts, elt)
			if !p.eatOp(",") {
				break
			}
		}
		if err := p.expectOp(closing); err != nil {
			return nil, err
		}
		return &TupleExpr{pos: pos{line}, Elts: elts}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parseTry() (Stmt, error) {
	line := p.cur().line
	p.advance()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &TryStmt{pos: pos{line}, Body: body}
	for p.atKeyword("except") {
		p.advance()
		var clause ExceptClause
		if !p.atOp(":") {
			typ, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			clause.Type = typ
			if p.eatKeyword("as") {
				name, err := p.expectName()
				if err != nil {
					return nil, err
				}
				clause.Name = name
			}
		}
		handlerBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		clause.Body = handlerBody
		stmt.Handlers = append(stmt.Handlers, clause)
	}
	if p.eatKeyword("else") {
		if len(stmt.Handlers) == 0 {
			return nil, p.errorf("try/else without except")
		}
		orelse, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = orelse
	}
	if p.eatKeyword("finally") {
		final, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Finally = final
	}
	if len(stmt.Handlers) == 0 && len(stmt.Finally) == 0 {
		return nil, p.errorf("try without except or finally")
	}
	return stmt, nil
}

func (p *parser) parseWith() (Stmt, error) {
	line := p.cur().line
	p.advance()
	expr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	stmt := &WithStmt{pos: pos{line}, Expr: expr}
	if p.eatKeyword("as") {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		stmt.Name = name
	}
	if p.atOp(",") {
		return nil, p.errorf("multiple with items are not supported")
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *parser) parseFuncDef() (Stmt, error) {
	line := p.cur().line
	p.advance()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	// Return annotation, parsed and dropped.
	if p.eatOp("->") {
		if _, err := p.parseTernary(); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDefStmt{pos: pos{line}, Name: name, Params: params, Body: body}, nil
}

// parseParams parses a parameter list up to and including the closing
// paren. Annotations are parsed and dropped.
func (p *parser) parseParams() (ParamSpec, error) {
	var spec ParamSpec
	for !p.atOp(")") {
		switch {
		case p.eatOp("**"):
			name, err := p.expectName()
			if err != nil {
				return spec, err
			}
			spec.KwArg = name
		case p.eatOp("*"):
			if p.at(tokName) {
				name, _ := p.expectName()
				spec.VarArg = name
			}
			// A bare * (keyword-only marker) is accepted and ignored.
		default:
			name, err := p.expectName()
			if err != nil {
				return spec, err
			}
			if p.eatOp(":") {
				if _, err := p.parseTernary(); err != nil {
					return spec, err
				}
			}
			spec.Names = append(spec.Names, name)
			if p.eatOp("=") {
				dflt, err := p.parseTernary()
				if err != nil {
					return spec, err
				}
				spec.Defaults = append(spec.Defaults, dflt)
			} else if len(spec.Defaults) > 0 {
				return spec, p.errorf("non-default parameter follows default parameter")
			}
		}
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return spec, err
	}
	return spec, nil
}

func (p *parser) parseClassDef() (Stmt, error) {
	line := p.cur().line
	p.advance()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	stmt := &ClassDefStmt{pos: pos{line}, Name: name}
	if p.eatOp("(") {
		for !p.atOp(")") {
			base, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			stmt.Bases = append(stmt.Bases, base)
			if !p.eatOp(",") {
				break
			}
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

// ---- expressions ----

func (p *parser) parseTernary() (Expr, error) {
	if p.atKeyword("lambda") {
		return p.parseLambda()
	}
	value, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("if") {
		return value, nil
	}
	line := p.cur().line
	p.advance()
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	orelse, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &CondExpr{pos: pos{line}, Cond: cond, Then: value, Else: orelse}, nil
}

func (p *parser) parseLambda() (Expr, error) {
	line := p.cur().line
	p.advance()
	var spec ParamSpec
	for !p.atOp(":") {
		switch {
		case p.eatOp("**"):
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			spec.KwArg = name
		case p.eatOp("*"):
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			spec.VarArg = name
		default:
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			spec.Names = append(spec.Names, name)
			if p.eatOp("=") {
				dflt, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				spec.Defaults = append(spec.Defaults, dflt)
			}
		}
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &LambdaExpr{pos: pos{line}, Params: spec, Body: body}, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("or") {
		return left, nil
	}
	expr := &BoolOpExpr{pos: pos{p.cur().line}, Op: "or", Values: []Expr{left}}
	for p.eatKeyword("or") {
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		expr.Values = append(expr.Values, next)
	}
	return expr, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("and") {
		return left, nil
	}
	expr := &BoolOpExpr{pos: pos{p.cur().line}, Op: "and", Values: []Expr{left}}
	for p.eatKeyword("and") {
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		expr.Values = append(expr.Values, next)
	}
	return expr, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.atKeyword("not") {
		line := p.cur().line
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{pos: pos{line}, Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comps []Expr
	for {
		var op string
		t := p.cur()
		switch {
		case t.kind == tokOp && compareOps[t.text]:
			op = t.text
			p.advance()
		case p.atKeyword("in"):
			op = "in"
			p.advance()
		case p.atKeyword("not"):
			p.advance()
			if err := p.expectKeyword("in"); err != nil {
				return nil, err
			}
			op = "not in"
		case p.atKeyword("is"):
			p.advance()
			op = "is"
			if p.eatKeyword("not") {
				op = "is not"
			}
		default:
			if len(ops) == 0 {
				return left, nil
			}
			return &CompareExpr{pos: pos{left.Pos()}, Left: left, Ops: ops, Comparators: comps}, nil
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comps = append(comps, right)
	}
}

// Binary operator levels, loosest to tightest.
func (p *parser) parseBitOr() (Expr, error) { return p.parseBinary(0) }

var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

func (p *parser) parseBinary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.kind != tokOp || !contains(binaryLevels[level], t.text) {
			return left, nil
		}
		p.advance()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{pos: pos{t.line}, Op: t.text, Left: left, Right: right}
	}
}

func contains(ops []string, text string) bool {
	for _, op := range ops {
		if op == text {
			return true
		}
	}
	return false
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.cur()
	if t.kind == tokOp && (t.text == "-" || t.text == "+" || t.text == "~") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{pos: pos{t.line}, Op: t.text, Operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if !p.atOp("**") {
		return base, nil
	}
	line := p.cur().line
	p.advance()
	// Right-associative; the exponent may itself be unary (2 ** -1).
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{pos: pos{line}, Op: "**", Left: base, Right: exp}, nil
}

func (p *parser) parsePostfix() (Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOp("("):
			call, err := p.parseCall(expr)
			if err != nil {
				return nil, err
			}
			expr = call
		case p.atOp("["):
			line := p.cur().line
			p.advance()
			index, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			expr = &SubscriptExpr{pos: pos{line}, Value: expr, Index: index}
		case p.atOp("."):
			line := p.cur().line
			p.advance()
			attr, err := p.expectName()
			if err != nil {
				return nil, err
			}
			expr = &AttrExpr{pos: pos{line}, Value: expr, Attr: attr}
		default:
			return expr, nil
		}
	}
}

func (p *parser) parseCall(fn Expr) (Expr, error) {
	line := p.cur().line
	p.advance() // (
	call := &CallExpr{pos: pos{line}, Func: fn, Src: p.lineText(line)}
	for !p.atOp(")") {
		switch {
		case p.atOp("**"):
			p.advance()
			value, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Value: value})
		case p.atOp("*"):
			starLine := p.cur().line
			p.advance()
			value, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &StarredExpr{pos: pos{starLine}, Value: value})
		case p.at(tokName) && p.peekIsOp(1, "="):
			name := p.cur().text
			p.advance()
			p.advance() // =
			value, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Name: name, Value: value})
		default:
			value, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			// Generator argument: f(x for x in xs).
			if p.atKeyword("for") {
				comp, err := p.parseCompTail("generator", value, nil, line)
				if err != nil {
					return nil, err
				}
				value = comp
			}
			call.Args = append(call.Args, value)
		}
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) peekIsOp(offset int, text string) bool {
	idx := p.idx + offset
	if idx >= len(p.toks) {
		return false
	}
	t := p.toks[idx]
	return t.kind == tokOp && t.text == text
}

func (p *parser) parseSubscript() (Expr, error) {
	line := p.cur().line
	parsePart := func() (Expr, error) {
		if p.atOp(":") || p.atOp("]") || p.atOp(",") {
			return nil, nil
		}
		return p.parseTernary()
	}
	low, err := parsePart()
	if err != nil {
		return nil, err
	}
	if !p.atOp(":") {
		if low == nil {
			return nil, p.errorf("empty subscript")
		}
		// Tuple index: d[a, b].
		if p.atOp(",") {
			elts := []Expr{low}
			for p.eatOp(",") {
				if p.atOp("]") {
					break
				}
				elt, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				elts = append(elts, elt)
			}
			return &TupleExpr{pos: pos{line}, Elts: elts}, nil
		}
		return low, nil
	}
	p.advance() // :
	high, err := parsePart()
	if err != nil {
		return nil, err
	}
	slice := &SliceExpr{pos: pos{line}, Low: low, High: high}
	if p.eatOp(":") {
		step, err := parsePart()
		if err != nil {
			return nil, err
		}
		slice.Step = step
	}
	return slice, nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		return &IntLit{pos: pos{t.line}, Value: t.intVal}, nil
	case tokFloat:
		p.advance()
		return &FloatLit{pos: pos{t.line}, Value: t.floatVal}, nil
	case tokString, tokFString:
		return p.parseStringGroup()
	case tokName:
		p.advance()
		return &NameExpr{pos: pos{t.line}, Name: t.text}, nil
	case tokKeyword:
		switch t.text {
		case "True":
			p.advance()
			return &BoolLit{pos: pos{t.line}, Value: true}, nil
		case "False":
			p.advance()
			return &BoolLit{pos: pos{t.line}, Value: false}, nil
		case "None":
			p.advance()
			return &NoneLit{pos{t.line}}, nil
		case "lambda":
			return p.parseLambda()
		case "not":
			return p.parseNot()
		}
	case tokOp:
		switch t.text {
		case "(":
			return p.parseParenForm()
		case "[":
			return p.parseListForm()
		case "{":
			return p.parseBraceForm()
		}
	}
	return nil, p.errorf("unexpected %s", t)
}

// parseStringGroup handles implicit adjacent-literal concatenation,
// promoting the group to an f-string when any member is one.
func (p *parser) parseStringGroup() (Expr, error) {
	line := p.cur().line
	var parts []FStringPart
	sawFString := false
	var plain strings.Builder
	for p.at(tokString) || p.at(tokFString) {
		t := p.cur()
		p.advance()
		if t.kind == tokString {
			plain.WriteString(t.strVal)
			parts = append(parts, FStringPart{Literal: t.strVal})
			continue
		}
		sawFString = true
		sub, err := p.parseFStringBody(t.strVal, t.line)
		if err != nil {
			return nil, err
		}
		parts = append(parts, sub...)
	}
	if !sawFString {
		return &StringLit{pos: pos{line}, Value: plain.String()}, nil
	}
	return &FStringExpr{pos: pos{line}, Parts: parts}, nil
}

// parseFStringBody splits a raw f-string body on braces and parses each
// embedded expression with a sub-parser.
func (p *parser) parseFStringBody(body string, line int) ([]FStringPart, error) {
	var parts []FStringPart
	var lit strings.Builder
	i := 0
	for i < len(body) {
		ch := body[i]
		switch {
		case ch == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case ch == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case ch == '{':
			if lit.Len() > 0 {
				parts = append(parts, FStringPart{Literal: decodeLiteral(lit.String())})
				lit.Reset()
			}
			end, err := matchBrace(body, i)
			if err != nil {
				return nil, &Error{Message: err.Error(), Node: "fstring", Line: line, Err: ErrUnsupported}
			}
			inner := body[i+1 : end]
			part, err := p.parseFStringField(inner, line)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			i = end + 1
		case ch == '}':
			return nil, &Error{Message: "single '}' in f-string", Node: "fstring", Line: line, Err: ErrUnsupported}
		case ch == '\\' && i+1 < len(body):
			lit.WriteByte(ch)
			lit.WriteByte(body[i+1])
			i += 2
		default:
			lit.WriteByte(ch)
			i++
		}
	}
	if lit.Len() > 0 {
		parts = append(parts, FStringPart{Literal: decodeLiteral(lit.String())})
	}
	return parts, nil
}

// decodeLiteral applies escape sequences deferred by the lexer for
// f-string bodies.
func decodeLiteral(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			sb.WriteString(decodeEscape(s[i+1]))
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func matchBrace(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		case '\'', '"':
			quote := s[i]
			for i++; i < len(s) && s[i] != quote; i++ {
			}
		}
	}
	return 0, fmt.Errorf("unmatched '{' in f-string")
}

func (p *parser) parseFStringField(field string, line int) (FStringPart, error) {
	var part FStringPart
	// Split off the format spec at the last top-level colon, then the
	// conversion flag.
	expr := field
	if idx := topLevelIndex(expr, ':'); idx >= 0 {
		part.Format = expr[idx+1:]
		expr = expr[:idx]
	}
	if len(expr) > 2 && expr[len(expr)-2] == '!' {
		conv := expr[len(expr)-1]
		if conv == 'r' || conv == 's' {
			part.Conversion = string(conv)
			expr = expr[:len(expr)-2]
		}
	}
	parsed, err := parseExprString(expr)
	if err != nil {
		return part, &Error{
			Message: fmt.Sprintf("invalid expression in f-string: %s", expr),
			Node:    "fstring",
			Line:    line,
			Err:     ErrUnsupported,
		}
	}
	part.Value = parsed
	return part, nil
}

// topLevelIndex finds sep outside any bracket or quote nesting.
func topLevelIndex(s string, sep byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '\'', '"':
			quote := s[i]
			for i++; i < len(s) && s[i] != quote; i++ {
			}
		case sep:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseExprString parses a standalone expression, used for f-string
// fields.
func parseExprString(src string) (Expr, error) {
	toks, err := newLexer(src).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src}
	expr, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if !p.at(tokNewline) && !p.at(tokEOF) {
		return nil, p.errorf("trailing input after expression")
	}
	return expr, nil
}

func (p *parser) parseParenForm() (Expr, error) {
	line := p.cur().line
	p.advance() // (
	if p.atOp(")") {
		p.advance()
		return &TupleExpr{pos: pos{line}}, nil
	}
	first, err := p.parseStarOrTernary()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("for") {
		comp, err := p.parseCompTail("generator", first, nil, line)
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	if p.atOp(",") {
		elts := []Expr{first}
		for p.eatOp(",") {
			if p.atOp(")") {
				break
			}
			elt, err := p.parseStarOrTernary()
			if err != nil {
				return nil, err
			}
			elts = append(elts, elt)
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return &TupleExpr{pos: pos{line}, Elts: elts}, nil
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return first, nil
}

func (p *parser) parseListForm() (Expr, error) {
	line := p.cur().line
	p.advance() // [
	if p.atOp("]") {
		p.advance()
		return &ListExpr{pos: pos{line}}, nil
	}
	first, err := p.parseStarOrTernary()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("for") {
		comp, err := p.parseCompTail("list", first, nil, line)
		if err != nil {
			return nil, err
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	elts := []Expr{first}
	for p.eatOp(",") {
		if p.atOp("]") {
			break
		}
		elt, err := p.parseStarOrTernary()
		if err != nil {
			return nil, err
		}
		elts = append(elts, elt)
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &ListExpr{pos: pos{line}, Elts: elts}, nil
}

func (p *parser) parseBraceForm() (Expr, error) {
	line := p.cur().line
	p.advance() // {
	if p.atOp("}") {
		p.advance()
		return &DictExpr{pos: pos{line}}, nil
	}

	// ** unpacking can only start a dict display.
	if p.atOp("**") {
		dict := &DictExpr{pos: pos{line}}
		for {
			if p.eatOp("**") {
				value, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				dict.Keys = append(dict.Keys, nil)
				dict.Values = append(dict.Values, value)
			} else {
				key, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				if err := p.expectOp(":"); err != nil {
					return nil, err
				}
				value, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				dict.Keys = append(dict.Keys, key)
				dict.Values = append(dict.Values, value)
			}
			if !p.eatOp(",") {
				break
			}
			if p.atOp("}") {
				break
			}
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return dict, nil
	}

	first, err := p.parseTernary()
	if err != nil {
		return nil, err
	}

	if p.atOp(":") {
		p.advance()
		firstValue, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if p.atKeyword("for") {
			comp, err := p.parseCompTail("dict", first, firstValue, line)
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("}"); err != nil {
				return nil, err
			}
			return comp, nil
		}
		dict := &DictExpr{pos: pos{line}, Keys: []Expr{first}, Values: []Expr{firstValue}}
		for p.eatOp(",") {
			if p.atOp("}") {
				break
			}
			if p.eatOp("**") {
				value, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				dict.Keys = append(dict.Keys, nil)
				dict.Values = append(dict.Values, value)
				continue
			}
			key, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(":"); err != nil {
				return nil, err
			}
			value, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			dict.Keys = append(dict.Keys, key)
			dict.Values = append(dict.Values, value)
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return dict, nil
	}

	if p.atKeyword("for") {
		comp, err := p.parseCompTail("set", first, nil, line)
		if err != nil {
			return nil, err
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return comp, nil
	}

	set := &SetExpr{pos: pos{line}, Elts: []Expr{first}}
	for p.eatOp(",") {
		if p.atOp("}") {
			break
		}
		elt, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		set.Elts = append(set.Elts, elt)
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return set, nil
}

// parseCompTail parses the `for ... in ... [if ...]*` clauses of a
// comprehension whose element expression(s) were already parsed. For
// dict comprehensions elt is the key and value the value expression.
func (p *parser) parseCompTail(form string, elt, value Expr, line int) (Expr, error) {
	comp := &CompExpr{pos: pos{line}, Form: form, Elt: elt, Value: value}
	for p.atKeyword("for") {
		p.advance()
		target, err := p.parseForTarget()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		iter, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		gen := CompFor{Target: target, Iter: iter}
		for p.atKeyword("if") {
			p.advance()
			cond, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		comp.Generators = append(comp.Generators, gen)
	}
	return comp, nil
}
