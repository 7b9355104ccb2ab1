// Package syntax contains the flow DSL abstract syntax tree, lexer, and
// parser. Scripts declare processes, workflows, functions, operators, and
// includes; the parser is tolerant and produces a best-effort tree with
// source ranges for every node.
package syntax

import "fmt"

// Pos is a zero-based line/column source position.
type Pos struct {
	Line int
	Col  int
}

// Before reports whether p is strictly before other.
func (p Pos) Before(other Pos) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Col < other.Col
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is a half-open source span: Start inclusive, End exclusive on the
// column of the last line.
type Range struct {
	Start Pos
	End   Pos
}

// Contains reports whether the position falls within the range.
func (r Range) Contains(p Pos) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Col < r.Start.Col {
		return false
	}
	if p.Line == r.End.Line && p.Col >= r.End.Col {
		return false
	}
	return true
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Node is implemented by every AST node.
type Node interface {
	Span() Range
}

// Script is the root node for one parsed source file.
type Script struct {
	Path  string
	Items []Node // top-level items in source order

	parents map[Node]Node
}

func (s *Script) Span() Range {
	if len(s.Items) == 0 {
		return Range{}
	}
	return Range{Start: s.Items[0].Span().Start, End: s.Items[len(s.Items)-1].Span().End}
}

// ParentOf returns the parent of n within this script, or nil for the root
// and for nodes that do not belong to this script. The parent index is built
// once after parsing.
func (s *Script) ParentOf(n Node) Node {
	return s.parents[n]
}

// IncludeDecl is `include { name as alias; ... } from './path'`.
type IncludeDecl struct {
	Items []*IncludeItem
	From  string // include path literal, without quotes
	Rng   Range
}

func (d *IncludeDecl) Span() Range { return d.Rng }

// IncludeItem is one `name[ as alias]` entry of an include declaration.
type IncludeItem struct {
	Name       string
	NameRange  Range
	Alias      string // empty when no alias
	AliasRange Range  // zero value when no alias
	Rng        Range  // full `name[ as alias]` span
}

func (it *IncludeItem) Span() Range { return it.Rng }

// LocalName is the name the item binds in the including file.
func (it *IncludeItem) LocalName() string {
	if it.Alias != "" {
		return it.Alias
	}
	return it.Name
}

// BlockEntry is one entry of an input/output/take/emit block. Process
// outputs may carry an emit label (`val x, emit: label`); workflow emits may
// carry an expression (`name = expr`).
type BlockEntry struct {
	Qualifier string // `val`, `path`, ... empty for bare entries
	Name      string
	NameRange Range
	Emit      string // output emit label, empty when absent
	EmitRange Range
	Value     Expr // right side of `name = expr` emit form, nil otherwise
	Rng       Range
}

func (e *BlockEntry) Span() Range { return e.Rng }

// ProcessDecl is a process declaration with input/output blocks and an
// executable section.
type ProcessDecl struct {
	Name      string
	NameRange Range
	Inputs    []*BlockEntry
	Outputs   []*BlockEntry
	Exec      *Block // statements of the script/exec section, never nil
	Rng       Range
}

func (d *ProcessDecl) Span() Range { return d.Rng }

// WorkflowDecl is a workflow declaration. Name is empty for the anonymous
// entry workflow.
type WorkflowDecl struct {
	Name      string
	NameRange Range
	Takes     []*BlockEntry
	Main      *Block // never nil
	Emits     []*BlockEntry
	Rng       Range
}

func (d *WorkflowDecl) Span() Range { return d.Rng }

// Param is a declared function/operator parameter.
type Param struct {
	Name string
	Rng  Range
}

func (p *Param) Span() Range { return p.Rng }

// FunctionDecl is `def name(params) { ... }` or, with the operator
// capability, `operator name(params) { ... }`.
type FunctionDecl struct {
	Name       string
	NameRange  Range
	Params     []*Param
	Body       *Block // never nil
	IsOperator bool
	Rng        Range
}

func (d *FunctionDecl) Span() Range { return d.Rng }

// Block is a statement list.
type Block struct {
	Stmts []Node
	Rng   Range
}

func (b *Block) Span() Range { return b.Rng }

// Stmt nodes

// ExprStmt wraps an expression used as a statement.
type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) Span() Range { return s.X.Span() }

// AssignStmt is `name = expr`.
type AssignStmt struct {
	Name *Ident
	X    Expr
	Rng  Range
}

func (s *AssignStmt) Span() Range { return s.Rng }

// Expr nodes

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Ident is a plain name reference.
type Ident struct {
	Name string
	Rng  Range
}

func (e *Ident) Span() Range { return e.Rng }
func (e *Ident) exprNode()   {}

// CallExpr is a call. Receiver is nil for implicit (unqualified) calls and
// set for `recv.name(args)` forms.
type CallExpr struct {
	Receiver Expr
	Name     *Ident
	Args     []Expr
	Rng      Range
}

func (e *CallExpr) Span() Range { return e.Rng }
func (e *CallExpr) exprNode()   {}

// PropertyExpr is `x.name` without call arguments.
type PropertyExpr struct {
	X         Expr
	Name      string
	NameRange Range
	Rng       Range
}

func (e *PropertyExpr) Span() Range { return e.Rng }
func (e *PropertyExpr) exprNode()   {}

// BinaryExpr is a binary operation; Op "|" is the pipe operator.
type BinaryExpr struct {
	Op  string
	LHS Expr
	RHS Expr
	Rng Range
}

func (e *BinaryExpr) Span() Range { return e.Rng }
func (e *BinaryExpr) exprNode()   {}

// ClosureExpr is `{ params -> stmts }` or `{ stmts }`.
type ClosureExpr struct {
	Params []*Param
	Body   *Block // never nil
	Rng    Range
}

func (e *ClosureExpr) Span() Range { return e.Rng }
func (e *ClosureExpr) exprNode()   {}

// BasicLit is a string or number literal.
type BasicLit struct {
	Value string
	Rng   Range
}

func (e *BasicLit) Span() Range { return e.Rng }
func (e *BasicLit) exprNode()   {}

// Children returns the direct child nodes of n in source order. It is the
// single place that knows every node's shape; traversal, parent indexing,
// and position lookup are all built on it.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		switch v := c.(type) {
		case nil:
		case *Ident:
			if v != nil {
				out = append(out, v)
			}
		default:
			out = append(out, c)
		}
	}
	switch v := n.(type) {
	case *Script:
		for _, it := range v.Items {
			add(it)
		}
	case *IncludeDecl:
		for _, it := range v.Items {
			add(it)
		}
	case *IncludeItem:
	case *ProcessDecl:
		for _, e := range v.Inputs {
			add(e)
		}
		for _, e := range v.Outputs {
			add(e)
		}
		if v.Exec != nil {
			add(v.Exec)
		}
	case *WorkflowDecl:
		for _, e := range v.Takes {
			add(e)
		}
		if v.Main != nil {
			add(v.Main)
		}
		for _, e := range v.Emits {
			add(e)
		}
	case *FunctionDecl:
		for _, p := range v.Params {
			add(p)
		}
		if v.Body != nil {
			add(v.Body)
		}
	case *BlockEntry:
		if v.Value != nil {
			add(v.Value)
		}
	case *Block:
		for _, s := range v.Stmts {
			add(s)
		}
	case *ExprStmt:
		add(v.X)
	case *AssignStmt:
		add(v.Name)
		add(v.X)
	case *CallExpr:
		if v.Receiver != nil {
			add(v.Receiver)
		}
		add(v.Name)
		for _, a := range v.Args {
			add(a)
		}
	case *PropertyExpr:
		add(v.X)
	case *BinaryExpr:
		add(v.LHS)
		add(v.RHS)
	case *ClosureExpr:
		for _, p := range v.Params {
			add(p)
		}
		if v.Body != nil {
			add(v.Body)
		}
	case *Param, *Ident, *BasicLit:
	}
	return out
}

// Walk visits n and every node beneath it in source order. The visitor
// returns false to skip a node's children.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, visit)
	}
}

// indexParents builds the script's parent index with a single traversal.
func (s *Script) indexParents() {
	s.parents = make(map[Node]Node)
	var walk func(n Node)
	walk = func(n Node) {
		for _, c := range Children(n) {
			s.parents[c] = n
			walk(c)
		}
	}
	walk(s)
}

// NodePathAt returns the innermost-to-outermost chain of nodes whose spans
// contain the position. The script root is always the final element when any
// node matches.
func (s *Script) NodePathAt(p Pos) []Node {
	var path []Node
	var descend func(n Node)
	descend = func(n Node) {
		path = append(path, n)
		for _, c := range Children(n) {
			if c.Span().Contains(p) {
				descend(c)
				return
			}
		}
	}
	for _, it := range s.Items {
		if it.Span().Contains(p) {
			descend(it)
			break
		}
	}
	if path == nil {
		return nil
	}
	// innermost first, then ancestors, ending at the script
	rev := make([]Node, 0, len(path)+1)
	for i := len(path) - 1; i >= 0; i-- {
		rev = append(rev, path[i])
	}
	rev = append(rev, s)
	return rev
}

// NodeAt returns the innermost node at the position, or nil.
func (s *Script) NodeAt(p Pos) Node {
	path := s.NodePathAt(p)
	if len(path) == 0 {
		return nil
	}
	return path[0]
}
