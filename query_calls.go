package flowlens

import (
	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/syntax"
)

// CallHandle identifies one end of a call-hierarchy query: a definition or
// a call site accepted by PrepareCallHierarchy, re-resolvable by its range.
type CallHandle struct {
	Name           string
	Kind           string // always "method"; editors render all DSL callables alike
	File           string
	Range          Range
	SelectionRange Range
}

// IncomingCall is one caller of the prepared symbol, with every call-site
// range inside that caller.
type IncomingCall struct {
	From       CallHandle
	FromRanges []Range
}

// OutgoingCall is one callee reached from the prepared symbol's body, with
// every occurrence range of the callee name in that body.
type OutgoingCall struct {
	To         CallHandle
	FromRanges []Range
}

// PrepareCallHierarchy resolves the cursor to a call-hierarchy handle. Only
// a definition node or a plain name that is the callee of a call is
// accepted; anything else yields an empty result.
func (a *Analyzer) PrepareCallHierarchy(file string, pos Pos) []CallHandle {
	path := a.cache.NodePathAt(file, pos)
	if len(path) == 0 {
		return nil
	}
	switch n := path[0].(type) {
	case *syntax.ProcessDecl, *syntax.WorkflowDecl, *syntax.FunctionDecl:
		def := a.cache.ResolveDefinition(file, n)
		if def == nil {
			return nil
		}
		return []CallHandle{{
			Name:           def.DisplayName(),
			Kind:           "method",
			File:           file,
			Range:          n.Span(),
			SelectionRange: n.Span(),
		}}
	case *syntax.Ident:
		if len(path) < 2 {
			return nil
		}
		call, ok := path[1].(*syntax.CallExpr)
		if !ok || call.Name != n {
			return nil
		}
		return []CallHandle{{
			Name:           n.Name,
			Kind:           "method",
			File:           file,
			Range:          n.Rng,
			SelectionRange: n.Rng,
		}}
	}
	return nil
}

// resolveHandle re-resolves the node at a handle's range to its definition.
func (a *Analyzer) resolveHandle(h CallHandle) *cache.Definition {
	node := a.cache.NodeAt(h.File, h.Range.Start)
	if node == nil {
		return nil
	}
	return a.cache.ResolveDefinition(h.File, node)
}

// IncomingCalls groups every project-wide occurrence of the handle's
// definition by the definition that contains it. Top-level script code
// groups under a synthetic "<entry>" caller per file. Callers appear in
// first-discovery order and never twice.
func (a *Analyzer) IncomingCalls(h CallHandle) []IncomingCall {
	def := a.resolveHandle(h)
	if def == nil {
		return nil
	}
	occs := a.cache.OccurrencesOf(def, false)

	type ownerKey struct {
		file  string
		owner *cache.Definition
	}
	index := make(map[ownerKey]int)
	var calls []IncomingCall
	for _, occ := range occs {
		owner := a.ownerOf(occ.File, occ.Node)
		key := ownerKey{file: occ.File, owner: owner}
		i, seen := index[key]
		if !seen {
			from := CallHandle{Name: "<entry>", Kind: "method", File: occ.File}
			if owner != nil {
				from = CallHandle{
					Name:           owner.DisplayName(),
					Kind:           "method",
					File:           owner.File,
					Range:          owner.Rng,
					SelectionRange: owner.NameRng,
				}
			}
			index[key] = len(calls)
			i = len(calls)
			calls = append(calls, IncomingCall{From: from})
		}
		calls[i].FromRanges = append(calls[i].FromRanges, occ.Rng)
	}
	return calls
}

// OutgoingCalls traverses the executable body of the handle's definition
// and groups every implicit call by callee name, in first-discovery order.
func (a *Analyzer) OutgoingCalls(h CallHandle) []OutgoingCall {
	def := a.resolveHandle(h)
	if def == nil || !def.Callable() {
		return nil
	}
	body := executableBody(def)
	if body == nil {
		return nil
	}

	index := make(map[string]int)
	var calls []OutgoingCall
	syntax.Walk(body, func(n syntax.Node) bool {
		call, ok := n.(*syntax.CallExpr)
		if !ok || call.Receiver != nil || call.Name == nil {
			return true
		}
		name := call.Name.Name
		i, seen := index[name]
		if !seen {
			index[name] = len(calls)
			i = len(calls)
			calls = append(calls, OutgoingCall{To: CallHandle{
				Name:           name,
				Kind:           "method",
				File:           def.File,
				Range:          call.Name.Rng,
				SelectionRange: call.Name.Rng,
			}})
		}
		calls[i].FromRanges = append(calls[i].FromRanges, call.Name.Rng)
		return true
	})
	return calls
}

// executableBody selects the block a definition runs: the script/exec
// section for processes, the main body for workflows, the code body for
// functions and operators. Builtins have none.
func executableBody(def *cache.Definition) syntax.Node {
	switch decl := def.Node.(type) {
	case *syntax.ProcessDecl:
		return decl.Exec
	case *syntax.WorkflowDecl:
		return decl.Main
	case *syntax.FunctionDecl:
		return decl.Body
	}
	return nil
}
