// Package cache holds parsed scripts for a workspace and answers the
// resolution queries the analyzer is built on: node lookup by position,
// name-to-definition resolution (scope and include aware), project-wide
// occurrence collection, and definition listing.
package cache

import "github.com/flowlens/flowlens/internal/syntax"

// DefKind discriminates the closed set of definition variants.
type DefKind int

const (
	KindProcess DefKind = iota
	KindWorkflow
	KindFunction
	KindOperator
	KindVariable
)

// Label returns the lowercase kind name used in diagnostics and symbol
// listings.
func (k DefKind) Label() string {
	switch k {
	case KindProcess:
		return "process"
	case KindWorkflow:
		return "workflow"
	case KindFunction:
		return "function"
	case KindOperator:
		return "operator"
	case KindVariable:
		return "variable"
	}
	return "unknown"
}

// OutputEntry is one process output: a channel name and an optional emit
// label.
type OutputEntry struct {
	Name string
	Emit string
}

// AliasBinding records that a Variable definition was introduced by an
// include item, possibly under an alias.
type AliasBinding struct {
	Item *syntax.IncludeItem
	From string // include path as written in the source
}

// Definition is the shared tagged variant every analyzer component operates
// on. The kind-specific list fields are always non-nil: absent or malformed
// blocks are normalized to empty lists at construction time, so arity and
// lookup logic never needs shape checks.
type Definition struct {
	Name string // empty for the anonymous entry workflow
	Kind DefKind
	File string // empty for builtins
	Rng  syntax.Range
	// NameRng is the span of the declared name token. For the anonymous
	// workflow it is the zero range.
	NameRng syntax.Range
	Node    syntax.Node // declaring node, nil for builtins

	Inputs  []string      // process input names, in declaration order
	Outputs []OutputEntry // process outputs
	Takes   []string      // workflow take names
	Emits   []string      // workflow emit names (bare or left side of `name = expr`)
	Params  []string      // function/operator parameters

	IsOperator bool          // operator capability flag
	Alias      *AliasBinding // set for include-introduced variables
}

// Arity is the number of arguments a call to this definition must supply.
func (d *Definition) Arity() int {
	switch d.Kind {
	case KindProcess:
		return len(d.Inputs)
	case KindWorkflow:
		return len(d.Takes)
	case KindFunction, KindOperator:
		return len(d.Params)
	}
	return 0
}

// Callable reports whether the definition can be the target of a call.
func (d *Definition) Callable() bool {
	switch d.Kind {
	case KindProcess, KindWorkflow, KindFunction, KindOperator:
		return true
	}
	return false
}

// HasOutput reports whether the named output exists: an emit-labelled
// output entry for processes, an emit entry for workflows.
func (d *Definition) HasOutput(name string) bool {
	switch d.Kind {
	case KindProcess:
		for _, out := range d.Outputs {
			if out.Emit == name {
				return true
			}
		}
	case KindWorkflow:
		for _, emit := range d.Emits {
			if emit == name {
				return true
			}
		}
	}
	return false
}

// DisplayName is the name rendered in symbol listings; the anonymous entry
// workflow shows as "<entry>".
func (d *Definition) DisplayName() string {
	if d.Name == "" && d.Kind == KindWorkflow {
		return "<entry>"
	}
	return d.Name
}

// Located reports whether the definition has an owning file. Builtins do
// not, and cannot be renamed.
func (d *Definition) Located() bool {
	return d.File != ""
}

// builtinOperators are channel operators known to the resolver without a
// declaring file. They carry the operator capability flag so they are valid
// on the right-hand side of a pipe.
var builtinOperators = []string{"map", "filter", "collect", "flatten", "mix"}

func newBuiltins() map[string]*Definition {
	out := make(map[string]*Definition, len(builtinOperators))
	for _, name := range builtinOperators {
		out[name] = &Definition{
			Name:       name,
			Kind:       KindOperator,
			Params:     []string{"ch"},
			Inputs:     []string{},
			Outputs:    []OutputEntry{},
			Takes:      []string{},
			Emits:      []string{},
			IsOperator: true,
			Rng: syntax.Range{
				Start: syntax.Pos{Line: -1, Col: -1},
				End:   syntax.Pos{Line: -1, Col: -1},
			},
		}
	}
	return out
}
