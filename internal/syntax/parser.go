package syntax

import (
	"fmt"
	"strings"
)

// ParseError is a non-fatal syntax problem. The parser always produces a
// usable tree; errors describe what it had to skip or repair.
type ParseError struct {
	Rng Range
	Msg string
}

func (e ParseError) Error() string {
	return e.Rng.Start.String() + ": " + e.Msg
}

// Parse parses one flow DSL source file. The returned script is never nil
// and carries a parent index; errors are best-effort recovery notes.
func Parse(path, src string) (*Script, []ParseError) {
	p := &parser{toks: lex(src)}
	script := &Script{Path: path}
	for !p.at(tokEOF) {
		p.skipSeparators()
		if p.at(tokEOF) {
			break
		}
		item := p.parseTopItem()
		if item != nil {
			script.Items = append(script.Items, item)
		}
	}
	script.indexParents()
	return script, p.errs
}

type parser struct {
	toks []token
	i    int
	errs []ParseError
}

func (p *parser) cur() token  { return p.toks[p.i] }
func (p *parser) peek() token { return p.peekN(1) }

func (p *parser) peekN(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) at(kind tokenKind) bool { return p.cur().kind == kind }

func (p *parser) atIdent(text string) bool {
	return p.cur().kind == tokIdent && p.cur().text == text
}

func (p *parser) advance() token {
	t := p.cur()
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) accept(kind tokenKind) (token, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	return token{}, false
}

func (p *parser) expect(kind tokenKind, what string) (token, bool) {
	if t, ok := p.accept(kind); ok {
		return t, true
	}
	p.errorf(p.cur().span(), "expected %s", what)
	return token{pos: p.cur().pos}, false
}

func (p *parser) errorf(rng Range, format string, args ...any) {
	p.errs = append(p.errs, ParseError{Rng: rng, Msg: fmt.Sprintf(format, args...)})
}

// skipSeparators consumes newlines and semicolons.
func (p *parser) skipSeparators() {
	for p.at(tokNewline) || p.at(tokSemi) {
		p.advance()
	}
}

func (p *parser) skipNewlines() {
	for p.at(tokNewline) {
		p.advance()
	}
}

func (p *parser) parseTopItem() Node {
	switch {
	case p.atIdent("include"):
		return p.parseInclude()
	case p.atIdent("process") && p.peek().kind == tokIdent:
		return p.parseProcess()
	case p.atIdent("workflow") && (p.peek().kind == tokIdent || p.peek().kind == tokLBrace):
		return p.parseWorkflow()
	case p.atIdent("def") && p.peek().kind == tokIdent:
		return p.parseFunction(false)
	case p.atIdent("operator") && p.peek().kind == tokIdent && p.peekN(2).kind == tokLParen:
		return p.parseFunction(true)
	case p.at(tokRBrace):
		p.errorf(p.cur().span(), "unexpected '}'")
		p.advance()
		return nil
	default:
		return p.parseStmt()
	}
}

func (p *parser) parseInclude() Node {
	start := p.advance() // include
	decl := &IncludeDecl{}
	if _, ok := p.expect(tokLBrace, "'{' after include"); !ok {
		p.syncToNewline()
		return nil
	}
	for {
		p.skipSeparators()
		if p.at(tokRBrace) || p.at(tokEOF) {
			break
		}
		name, ok := p.expect(tokIdent, "include item name")
		if !ok {
			p.syncTo(tokRBrace)
			break
		}
		item := &IncludeItem{
			Name:      name.text,
			NameRange: name.span(),
			Rng:       name.span(),
		}
		if p.atIdent("as") {
			p.advance()
			if alias, ok := p.expect(tokIdent, "alias name"); ok {
				item.Alias = alias.text
				item.AliasRange = alias.span()
				item.Rng = Range{Start: name.pos, End: alias.end()}
			}
		}
		decl.Items = append(decl.Items, item)
		if p.at(tokComma) || p.at(tokSemi) {
			p.advance()
		}
	}
	end := p.cur().end()
	p.accept(tokRBrace)
	if p.atIdent("from") {
		p.advance()
		if s, ok := p.expect(tokString, "include path string"); ok {
			decl.From = unquote(s.text)
			end = s.end()
		}
	} else {
		p.errorf(p.cur().span(), "expected 'from' after include block")
	}
	decl.Rng = Range{Start: start.pos, End: end}
	return decl
}

// process sections and workflow sections recognized as `label:` lines
var processSections = map[string]bool{
	"input": true, "output": true, "script": true, "exec": true,
	"shell": true, "when": true, "stub": true,
}

var workflowSections = map[string]bool{
	"take": true, "main": true, "emit": true,
}

func (p *parser) atSectionLabel(set map[string]bool) (string, bool) {
	if p.cur().kind == tokIdent && set[p.cur().text] && p.peek().kind == tokColon {
		return p.cur().text, true
	}
	return "", false
}

func (p *parser) parseProcess() Node {
	start := p.advance() // process
	name := p.advance() // checked by caller
	decl := &ProcessDecl{
		Name:      name.text,
		NameRange: name.span(),
		Exec:      &Block{},
	}
	if _, ok := p.expect(tokLBrace, "'{' after process name"); !ok {
		p.syncToNewline()
		decl.Rng = Range{Start: start.pos, End: name.end()}
		return decl
	}
	section := ""
	for {
		p.skipSeparators()
		if p.at(tokRBrace) || p.at(tokEOF) {
			break
		}
		if label, ok := p.atSectionLabel(processSections); ok {
			section = label
			p.advance()
			p.advance()
			continue
		}
		switch section {
		case "input":
			if e := p.parseBlockEntry(false); e != nil {
				decl.Inputs = append(decl.Inputs, e)
			}
		case "output":
			if e := p.parseBlockEntry(true); e != nil {
				decl.Outputs = append(decl.Outputs, e)
			}
		case "script", "exec":
			if s := p.parseStmt(); s != nil {
				decl.Exec.Stmts = append(decl.Exec.Stmts, s)
			}
		default:
			// directives and unrecognized sections: parse and drop
			p.parseStmt()
		}
	}
	end := p.cur().end()
	p.accept(tokRBrace)
	decl.Rng = Range{Start: start.pos, End: end}
	if len(decl.Exec.Stmts) > 0 {
		decl.Exec.Rng = Range{
			Start: decl.Exec.Stmts[0].Span().Start,
			End:   decl.Exec.Stmts[len(decl.Exec.Stmts)-1].Span().End,
		}
	}
	return decl
}

// parseBlockEntry parses one input/output block entry:
// `val x`, `path x`, bare `x`, and for outputs `val x, emit: label`.
func (p *parser) parseBlockEntry(output bool) *BlockEntry {
	first, ok := p.expect(tokIdent, "block entry")
	if !ok {
		p.syncToNewline()
		return nil
	}
	entry := &BlockEntry{Name: first.text, NameRange: first.span(), Rng: first.span()}
	if p.at(tokIdent) {
		// first token was a qualifier (val, path, env, ...)
		name := p.advance()
		entry.Qualifier = first.text
		entry.Name = name.text
		entry.NameRange = name.span()
		entry.Rng = Range{Start: first.pos, End: name.end()}
	}
	if output && p.at(tokComma) && p.peek().kind == tokIdent && p.peek().text == "emit" && p.peekN(2).kind == tokColon {
		p.advance() // ,
		p.advance() // emit
		p.advance() // :
		if label, ok := p.expect(tokIdent, "emit label"); ok {
			entry.Emit = label.text
			entry.EmitRange = label.span()
			entry.Rng.End = label.end()
		}
	}
	p.syncToNewline()
	return entry
}

func (p *parser) parseWorkflow() Node {
	start := p.advance() // workflow
	decl := &WorkflowDecl{Main: &Block{}}
	if p.at(tokIdent) {
		name := p.advance()
		decl.Name = name.text
		decl.NameRange = name.span()
	}
	if _, ok := p.expect(tokLBrace, "'{' after workflow"); !ok {
		p.syncToNewline()
		decl.Rng = Range{Start: start.pos, End: p.cur().pos}
		return decl
	}
	section := "main"
	for {
		p.skipSeparators()
		if p.at(tokRBrace) || p.at(tokEOF) {
			break
		}
		if label, ok := p.atSectionLabel(workflowSections); ok {
			section = label
			p.advance()
			p.advance()
			continue
		}
		switch section {
		case "take":
			if name, ok := p.expect(tokIdent, "take entry"); ok {
				decl.Takes = append(decl.Takes, &BlockEntry{
					Name: name.text, NameRange: name.span(), Rng: name.span(),
				})
			}
			p.syncToNewline()
		case "emit":
			if e := p.parseEmitEntry(); e != nil {
				decl.Emits = append(decl.Emits, e)
			}
		default:
			if s := p.parseStmt(); s != nil {
				decl.Main.Stmts = append(decl.Main.Stmts, s)
			}
		}
	}
	end := p.cur().end()
	p.accept(tokRBrace)
	decl.Rng = Range{Start: start.pos, End: end}
	if len(decl.Main.Stmts) > 0 {
		decl.Main.Rng = Range{
			Start: decl.Main.Stmts[0].Span().Start,
			End:   decl.Main.Stmts[len(decl.Main.Stmts)-1].Span().End,
		}
	}
	return decl
}

// parseEmitEntry parses `name` or `name = expr`.
func (p *parser) parseEmitEntry() *BlockEntry {
	name, ok := p.expect(tokIdent, "emit entry")
	if !ok {
		p.syncToNewline()
		return nil
	}
	entry := &BlockEntry{Name: name.text, NameRange: name.span(), Rng: name.span()}
	if p.at(tokAssign) {
		p.advance()
		p.skipNewlines()
		if x := p.parseExpr(); x != nil {
			entry.Value = x
			entry.Rng.End = x.Span().End
		}
	}
	p.syncToNewline()
	return entry
}

func (p *parser) parseFunction(isOperator bool) Node {
	start := p.advance() // def or operator
	name := p.advance() // checked by caller
	decl := &FunctionDecl{
		Name:       name.text,
		NameRange:  name.span(),
		IsOperator: isOperator,
		Body:       &Block{},
	}
	if _, ok := p.expect(tokLParen, "'(' after function name"); ok {
		for !p.at(tokRParen) && !p.at(tokEOF) {
			p.skipNewlines()
			if param, ok := p.accept(tokIdent); ok {
				decl.Params = append(decl.Params, &Param{Name: param.text, Rng: param.span()})
			} else {
				p.errorf(p.cur().span(), "expected parameter name")
				p.advance()
			}
			p.skipNewlines()
			if !p.at(tokComma) {
				break
			}
			p.advance()
		}
		p.expect(tokRParen, "')'")
	}
	p.skipNewlines()
	end := p.cur().end()
	if p.at(tokLBrace) {
		decl.Body = p.parseBracedBlock()
		end = decl.Body.Rng.End
	}
	decl.Rng = Range{Start: start.pos, End: end}
	return decl
}

// parseBracedBlock parses `{ stmts }` starting at '{'.
func (p *parser) parseBracedBlock() *Block {
	open := p.advance() // '{'
	block := &Block{}
	for {
		p.skipSeparators()
		if p.at(tokRBrace) || p.at(tokEOF) {
			break
		}
		if s := p.parseStmt(); s != nil {
			block.Stmts = append(block.Stmts, s)
		}
	}
	end := p.cur().end()
	p.accept(tokRBrace)
	block.Rng = Range{Start: open.pos, End: end}
	return block
}

func (p *parser) parseStmt() Node {
	if p.at(tokIdent) && p.peek().kind == tokAssign {
		name := p.advance()
		p.advance() // '='
		p.skipNewlines()
		x := p.parseExpr()
		if x == nil {
			x = &BasicLit{Rng: name.span()}
		}
		return &AssignStmt{
			Name: &Ident{Name: name.text, Rng: name.span()},
			X:    x,
			Rng:  Range{Start: name.pos, End: x.Span().End},
		}
	}
	x := p.parseExpr()
	if x == nil {
		// could not make sense of this token, skip it
		p.errorf(p.cur().span(), "unexpected token %q", p.cur().text)
		p.advance()
		return nil
	}
	return &ExprStmt{X: x}
}

func (p *parser) parseExpr() Expr { return p.parsePipe() }

func (p *parser) parsePipe() Expr {
	left := p.parseCompare()
	if left == nil {
		return nil
	}
	for p.at(tokOp) && p.cur().text == "|" {
		p.advance()
		p.skipNewlines()
		right := p.parseCompare()
		if right == nil {
			break
		}
		left = &BinaryExpr{
			Op: "|", LHS: left, RHS: right,
			Rng: Range{Start: left.Span().Start, End: right.Span().End},
		}
	}
	return left
}

func (p *parser) parseCompare() Expr {
	return p.parseBinary(map[string]bool{"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}, p.parseAdditive)
}

func (p *parser) parseAdditive() Expr {
	return p.parseBinary(map[string]bool{"+": true, "-": true}, p.parseMultiplicative)
}

func (p *parser) parseMultiplicative() Expr {
	return p.parseBinary(map[string]bool{"*": true, "/": true, "%": true}, p.parseUnary)
}

func (p *parser) parseBinary(ops map[string]bool, next func() Expr) Expr {
	left := next()
	if left == nil {
		return nil
	}
	for p.at(tokOp) && ops[p.cur().text] {
		op := p.advance()
		p.skipNewlines()
		right := next()
		if right == nil {
			break
		}
		left = &BinaryExpr{
			Op: op.text, LHS: left, RHS: right,
			Rng: Range{Start: left.Span().Start, End: right.Span().End},
		}
	}
	return left
}

func (p *parser) parseUnary() Expr {
	if p.at(tokOp) && (p.cur().text == "-" || p.cur().text == "!") {
		p.advance()
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() Expr {
	x := p.parsePrimary()
	if x == nil {
		return nil
	}
	for {
		switch {
		case p.at(tokDot):
			p.advance()
			name, ok := p.expect(tokIdent, "property name")
			if !ok {
				return x
			}
			if p.at(tokLParen) {
				call := &CallExpr{
					Receiver: x,
					Name:     &Ident{Name: name.text, Rng: name.span()},
				}
				end := p.parseCallArgs(call)
				call.Rng = Range{Start: x.Span().Start, End: end}
				x = p.maybeTrailingClosure(call)
			} else if p.at(tokLBrace) {
				closure := p.parseClosure()
				call := &CallExpr{
					Receiver: x,
					Name:     &Ident{Name: name.text, Rng: name.span()},
					Args:     []Expr{closure},
					Rng:      Range{Start: x.Span().Start, End: closure.Span().End},
				}
				x = call
			} else {
				x = &PropertyExpr{
					X: x, Name: name.text, NameRange: name.span(),
					Rng: Range{Start: x.Span().Start, End: name.end()},
				}
			}
		case p.at(tokLParen):
			ident, ok := x.(*Ident)
			if !ok {
				return x
			}
			call := &CallExpr{Name: ident}
			end := p.parseCallArgs(call)
			call.Rng = Range{Start: ident.Span().Start, End: end}
			x = p.maybeTrailingClosure(call)
		case p.at(tokLBrace):
			// `name { ... }` is a call with a sole closure argument
			ident, ok := x.(*Ident)
			if !ok {
				return x
			}
			closure := p.parseClosure()
			x = &CallExpr{
				Name: ident,
				Args: []Expr{closure},
				Rng:  Range{Start: ident.Span().Start, End: closure.Span().End},
			}
		default:
			return x
		}
	}
}

// parseCallArgs consumes `(args...)` and returns the end position.
func (p *parser) parseCallArgs(call *CallExpr) Pos {
	p.advance() // '('
	for {
		p.skipNewlines()
		if p.at(tokRParen) || p.at(tokEOF) {
			break
		}
		arg := p.parseExpr()
		if arg == nil {
			p.advance()
			continue
		}
		call.Args = append(call.Args, arg)
		p.skipNewlines()
		if !p.at(tokComma) {
			break
		}
		p.advance()
	}
	end := p.cur().end()
	p.expect(tokRParen, "')'")
	return end
}

// maybeTrailingClosure attaches `{ ... }` immediately following a call as a
// final closure argument.
func (p *parser) maybeTrailingClosure(call *CallExpr) Expr {
	if p.at(tokLBrace) {
		closure := p.parseClosure()
		call.Args = append(call.Args, closure)
		call.Rng.End = closure.Span().End
	}
	return call
}

func (p *parser) parsePrimary() Expr {
	switch p.cur().kind {
	case tokIdent:
		t := p.advance()
		return &Ident{Name: t.text, Rng: t.span()}
	case tokNumber, tokString:
		t := p.advance()
		return &BasicLit{Value: t.text, Rng: t.span()}
	case tokLParen:
		p.advance()
		p.skipNewlines()
		x := p.parseExpr()
		p.skipNewlines()
		p.expect(tokRParen, "')'")
		return x
	case tokLBrace:
		return p.parseClosure()
	default:
		return nil
	}
}

// parseClosure parses `{ [params ->] stmts }` starting at '{'.
func (p *parser) parseClosure() Expr {
	open := p.advance() // '{'
	closure := &ClosureExpr{Body: &Block{}}

	// lookahead for a parameter list terminated by '->'
	save := p.i
	var params []*Param
	p.skipNewlines()
	for p.at(tokIdent) {
		t := p.advance()
		params = append(params, &Param{Name: t.text, Rng: t.span()})
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	if len(params) > 0 && p.at(tokArrow) {
		p.advance()
		closure.Params = params
	} else {
		p.i = save
	}

	for {
		p.skipSeparators()
		if p.at(tokRBrace) || p.at(tokEOF) {
			break
		}
		if s := p.parseStmt(); s != nil {
			closure.Body.Stmts = append(closure.Body.Stmts, s)
		}
	}
	end := p.cur().end()
	p.accept(tokRBrace)
	closure.Rng = Range{Start: open.pos, End: end}
	closure.Body.Rng = closure.Rng
	return closure
}

// syncToNewline skips tokens through the end of the current line.
func (p *parser) syncToNewline() {
	for !p.at(tokNewline) && !p.at(tokSemi) && !p.at(tokEOF) && !p.at(tokRBrace) {
		p.advance()
	}
}

// syncTo skips tokens until the given kind (or EOF), without consuming it.
func (p *parser) syncTo(kind tokenKind) {
	for !p.at(kind) && !p.at(tokEOF) {
		p.advance()
	}
}

func unquote(s string) string {
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 6 {
			return s[3 : len(s)-3]
		}
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
