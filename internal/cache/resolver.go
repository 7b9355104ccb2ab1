package cache

import (
	"path"

	"github.com/flowlens/flowlens/internal/syntax"
)

// buildDefinitions derives the file's definitions from its AST. Blocks
// normalize to empty (never nil) lists here so downstream arity and output
// lookups see a uniform shape.
func buildDefinitions(entry *fileEntry) {
	for _, item := range entry.script.Items {
		switch decl := item.(type) {
		case *syntax.ProcessDecl:
			def := &Definition{
				Name:    decl.Name,
				Kind:    KindProcess,
				File:    entry.path,
				Rng:     decl.Rng,
				NameRng: decl.NameRange,
				Node:    decl,
				Inputs:  entryNames(decl.Inputs),
				Outputs: outputEntries(decl.Outputs),
				Takes:   []string{},
				Emits:   []string{},
				Params:  []string{},
			}
			entry.defs = append(entry.defs, def)
			entry.byName[def.Name] = def
		case *syntax.WorkflowDecl:
			def := &Definition{
				Name:    decl.Name,
				Kind:    KindWorkflow,
				File:    entry.path,
				Rng:     decl.Rng,
				NameRng: decl.NameRange,
				Node:    decl,
				Inputs:  []string{},
				Outputs: []OutputEntry{},
				Takes:   entryNames(decl.Takes),
				Emits:   entryNames(decl.Emits),
				Params:  []string{},
			}
			entry.defs = append(entry.defs, def)
			if def.Name != "" {
				entry.byName[def.Name] = def
			}
		case *syntax.FunctionDecl:
			kind := KindFunction
			if decl.IsOperator {
				kind = KindOperator
			}
			def := &Definition{
				Name:       decl.Name,
				Kind:       kind,
				File:       entry.path,
				Rng:        decl.Rng,
				NameRng:    decl.NameRange,
				Node:       decl,
				Inputs:     []string{},
				Outputs:    []OutputEntry{},
				Takes:      []string{},
				Emits:      []string{},
				Params:     paramNames(decl.Params),
				IsOperator: decl.IsOperator,
			}
			entry.defs = append(entry.defs, def)
			entry.byName[def.Name] = def
		case *syntax.IncludeDecl:
			for _, inc := range decl.Items {
				def := &Definition{
					Name:    inc.LocalName(),
					Kind:    KindVariable,
					File:    entry.path,
					Rng:     inc.Rng,
					NameRng: inc.NameRange,
					Node:    inc,
					Inputs:  []string{},
					Outputs: []OutputEntry{},
					Takes:   []string{},
					Emits:   []string{},
					Params:  []string{},
					Alias:   &AliasBinding{Item: inc, From: decl.From},
				}
				entry.defs = append(entry.defs, def)
				entry.includes = append(entry.includes, &includeBinding{
					item: inc,
					from: decl.From,
					def:  def,
				})
			}
		case *syntax.AssignStmt:
			def := &Definition{
				Name:    decl.Name.Name,
				Kind:    KindVariable,
				File:    entry.path,
				Rng:     decl.Span(),
				NameRng: decl.Name.Rng,
				Node:    decl,
				Inputs:  []string{},
				Outputs: []OutputEntry{},
				Takes:   []string{},
				Emits:   []string{},
				Params:  []string{},
			}
			entry.defs = append(entry.defs, def)
			if _, taken := entry.byName[def.Name]; !taken {
				entry.byName[def.Name] = def
			}
		}
	}
}

func entryNames(entries []*syntax.BlockEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e != nil && e.Name != "" {
			out = append(out, e.Name)
		}
	}
	return out
}

func outputEntries(entries []*syntax.BlockEntry) []OutputEntry {
	out := make([]OutputEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		out = append(out, OutputEntry{Name: e.Name, Emit: e.Emit})
	}
	return out
}

func paramNames(params []*syntax.Param) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Name)
	}
	return out
}

// lookup resolves a name in a file's scope: local declarations first, then
// include bindings (by local name, following the include to its target),
// then builtin operators.
func (c *Cache) lookup(entry *fileEntry, name string) *Definition {
	if def, ok := entry.byName[name]; ok {
		return def
	}
	for _, binding := range entry.includes {
		if binding.item.LocalName() == name {
			return c.includeTarget(entry, binding)
		}
	}
	if def, ok := c.builtins[name]; ok {
		return def
	}
	return nil
}

// includeTarget resolves an include binding to the definition it imports.
// When the included file is not cached or does not declare the name, the
// binding's own Variable definition stands in, so local queries still work.
func (c *Cache) includeTarget(entry *fileEntry, binding *includeBinding) *Definition {
	targetPath := resolveIncludePath(entry.path, binding.from)
	target, ok := c.files[targetPath]
	if !ok {
		return binding.def
	}
	if def, ok := target.byName[binding.item.Name]; ok && def.Callable() {
		return def
	}
	return binding.def
}

// resolveIncludePath resolves an include path literal relative to the
// including file. A missing extension defaults to .nf, matching how the DSL
// locates modules.
func resolveIncludePath(fromFile, include string) string {
	p := include
	if path.Ext(p) == "" {
		p += ".nf"
	}
	if !path.IsAbs(p) {
		p = path.Join(path.Dir(fromFile), p)
	}
	return Normalize(p)
}

// ResolveDefinition resolves a node to the definition it names, or nil.
// Declaration nodes resolve to themselves; idents resolve through the
// file's scope; include items resolve through the include.
func (c *Cache) ResolveDefinition(file string, n syntax.Node) *Definition {
	entry, ok := c.files[Normalize(file)]
	if !ok || n == nil {
		return nil
	}
	switch v := n.(type) {
	case *syntax.Ident:
		return c.lookup(entry, v.Name)
	case *syntax.IncludeItem:
		for _, binding := range entry.includes {
			if binding.item == v {
				return c.includeTarget(entry, binding)
			}
		}
		return nil
	case *syntax.ProcessDecl, *syntax.WorkflowDecl, *syntax.FunctionDecl, *syntax.AssignStmt:
		for _, def := range entry.defs {
			if def.Node == n {
				return def
			}
		}
		return nil
	case *syntax.PropertyExpr:
		// resolve the base of a property chain
		if base, ok := v.X.(*syntax.Ident); ok {
			return c.lookup(entry, base.Name)
		}
		return nil
	}
	return nil
}

// ResolveCallTarget resolves a call expression's callee to a callable
// definition. Explicit (receiver-qualified) calls never resolve.
func (c *Cache) ResolveCallTarget(file string, call *syntax.CallExpr) *Definition {
	if call == nil || call.Receiver != nil || call.Name == nil {
		return nil
	}
	entry, ok := c.files[Normalize(file)]
	if !ok {
		return nil
	}
	def := c.lookup(entry, call.Name.Name)
	if def == nil || !def.Callable() {
		return nil
	}
	return def
}
