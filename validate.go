package flowlens

import (
	"fmt"

	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/syntax"
)

// callContext is the traversal context of the call-site validator. It is
// passed by value down the recursion, so entering a workflow body or a
// closure cannot leak into sibling subtrees.
type callContext struct {
	inWorkflow bool
	inClosure  bool
}

type validator struct {
	cache *cache.Cache
	file  string
	diags []Diagnostic
	// piped marks calls on the right-hand side of a pipe, whose first
	// argument arrives through the pipe.
	piped map[*syntax.CallExpr]bool
}

// Validate checks every call site, pipe expression, and output property
// access in the file. Violations are collected, never fatal: the traversal
// always completes and returns the full list in source order.
func (a *Analyzer) Validate(file string) []Diagnostic {
	script := a.cache.Script(file)
	if script == nil {
		return nil
	}
	v := &validator{cache: a.cache, file: file, piped: make(map[*syntax.CallExpr]bool)}
	for _, item := range script.Items {
		switch decl := item.(type) {
		case *syntax.ProcessDecl:
			v.walk(decl.Exec, callContext{})
		case *syntax.WorkflowDecl:
			wctx := callContext{inWorkflow: true}
			v.walk(decl.Main, wctx)
			for _, emit := range decl.Emits {
				if emit.Value != nil {
					v.walk(emit.Value, wctx)
				}
			}
		case *syntax.FunctionDecl:
			v.walk(decl.Body, callContext{})
		default:
			// top-level script code runs outside any workflow
			v.walk(item, callContext{})
		}
	}
	return v.diags
}

func (v *validator) walk(n syntax.Node, ctx callContext) {
	if n == nil {
		return
	}
	switch node := n.(type) {
	case *syntax.ClosureExpr:
		ctx.inClosure = true
	case *syntax.CallExpr:
		v.checkCall(node, ctx)
	case *syntax.BinaryExpr:
		if node.Op == "|" {
			if rhs, ok := node.RHS.(*syntax.CallExpr); ok {
				v.piped[rhs] = true
			}
			v.checkPipe(node)
		}
	case *syntax.PropertyExpr:
		v.checkOutputAccess(node)
	}
	for _, c := range syntax.Children(n) {
		v.walk(c, ctx)
	}
}

func (v *validator) report(rng Range, msg string) {
	v.diags = append(v.diags, Diagnostic{Range: rng, Message: msg})
}

// checkCall enforces call legality and arity. At most one message fires per
// call: workflow context is checked first, then closure nesting, then
// arity. Pipe right-hand calls skip the arity check since the piped value
// supplies an argument.
func (v *validator) checkCall(call *syntax.CallExpr, ctx callContext) {
	def := v.cache.ResolveCallTarget(v.file, call)
	if def == nil {
		return
	}
	switch def.Kind {
	case cache.KindProcess, cache.KindWorkflow:
		label := "Processes"
		if def.Kind == cache.KindWorkflow {
			label = "Workflows"
		}
		switch {
		case !ctx.inWorkflow:
			v.report(call.Rng, label+" can only be called from a workflow")
		case ctx.inClosure:
			v.report(call.Rng, label+" cannot be called from within a closure")
		case !v.piped[call] && len(call.Args) != def.Arity():
			v.report(call.Rng, arityMessage(def.Arity(), len(call.Args)))
		}
	default:
		if !v.piped[call] && len(call.Args) != def.Arity() {
			v.report(call.Rng, arityMessage(def.Arity(), len(call.Args)))
		}
	}
}

func arityMessage(expected, received int) string {
	return fmt.Sprintf("Incorrect number of call arguments, expected %d but received %d", expected, received)
}

// checkPipe enforces the pipe composition rules: a bare name on the left
// may not resolve to a callable, and a call on the right must target an
// operator.
func (v *validator) checkPipe(bin *syntax.BinaryExpr) {
	if lhs, ok := bin.LHS.(*syntax.Ident); ok {
		if def := v.cache.ResolveDefinition(v.file, lhs); def != nil && def.Callable() {
			v.report(lhs.Rng, "Invalid pipe expression -- left-hand side cannot be a callable")
		}
	}
	if rhs, ok := bin.RHS.(*syntax.CallExpr); ok {
		if def := v.cache.ResolveCallTarget(v.file, rhs); def != nil && !def.IsOperator {
			v.report(rhs.Rng, "Invalid pipe expression -- only operators can be curried")
		}
	}
}

// checkOutputAccess validates `name.out.field` against the target's
// declared outputs. Property accesses that are not output accesses fall
// through without a diagnostic.
func (v *validator) checkOutputAccess(prop *syntax.PropertyExpr) {
	inner, ok := prop.X.(*syntax.PropertyExpr)
	if !ok || inner.Name != "out" {
		return
	}
	base, ok := inner.X.(*syntax.Ident)
	if !ok {
		return
	}
	def := v.cache.ResolveDefinition(v.file, base)
	if def == nil {
		return
	}
	switch def.Kind {
	case cache.KindProcess, cache.KindWorkflow:
		if !def.HasOutput(prop.Name) {
			v.report(prop.Rng, fmt.Sprintf("Unrecognized output `%s` for %s `%s`",
				prop.Name, def.Kind.Label(), def.Name))
		}
	}
}
