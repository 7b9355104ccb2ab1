package flowlens

import (
	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/syntax"
)

// Analyzer answers the semantic queries of the language core: call-site
// validation, call hierarchy, references, rename, and symbol listing. Every
// query runs synchronously against the cache snapshot and computes its
// result fresh; a query whose cursor does not resolve returns an empty
// result, never an error.
type Analyzer struct {
	cache *cache.Cache
}

// NewAnalyzer wraps an AST cache directly. Most callers obtain an Analyzer
// from [Engine.Analyzer] instead.
func NewAnalyzer(c *cache.Cache) *Analyzer {
	return &Analyzer{cache: c}
}

// Location is a source span in a file.
type Location struct {
	File  string
	Range Range
}

// Diagnostic is one validation finding.
type Diagnostic struct {
	Range   Range
	Message string
}

// TextEdit replaces a source span with new text.
type TextEdit struct {
	Range   Range
	NewText string
}

// SymbolInfo is one definition rendered for outline or workspace search.
type SymbolInfo struct {
	Name     string
	Kind     string
	Location Location
}

// symbolAt resolves the cursor to a symbol name and its definition,
// following the extraction precedence: definition node, include item token
// (base name or alias chosen by column offset), then plain name token.
// Returns ("", nil) when nothing resolves.
func (a *Analyzer) symbolAt(file string, pos Pos) (string, *cache.Definition) {
	path := a.cache.NodePathAt(file, pos)
	if len(path) == 0 {
		return "", nil
	}
	switch n := path[0].(type) {
	case *syntax.ProcessDecl, *syntax.WorkflowDecl, *syntax.FunctionDecl:
		def := a.cache.ResolveDefinition(file, n)
		if def == nil {
			return "", nil
		}
		return def.Name, def
	case *syntax.IncludeItem:
		def := a.cache.ResolveDefinition(file, n)
		if def == nil {
			return "", nil
		}
		// the cursor's offset within `name[ as alias]` picks the token
		name := n.Name
		if n.Alias != "" && pos.Col >= n.Rng.Start.Col+len(n.Name) {
			name = n.Alias
		}
		return name, def
	case *syntax.Ident:
		def := a.cache.ResolveDefinition(file, n)
		if def == nil {
			return "", nil
		}
		return n.Name, def
	}
	return "", nil
}

// ownerOf walks ancestors of a node until a definition-shaped owner is
// found. Returns nil for top-level script code.
func (a *Analyzer) ownerOf(file string, n syntax.Node) *cache.Definition {
	for cur := a.cache.ParentOf(file, n); cur != nil; cur = a.cache.ParentOf(file, cur) {
		switch cur.(type) {
		case *syntax.ProcessDecl, *syntax.WorkflowDecl, *syntax.FunctionDecl:
			return a.cache.ResolveDefinition(file, cur)
		}
	}
	return nil
}
