package cache

import "github.com/flowlens/flowlens/internal/syntax"

// Occurrence is one located use of a symbol name: the declaration itself or
// a reference. Text is the literal name at that location, which differs
// from the definition's canonical name at alias use sites.
type Occurrence struct {
	File          string
	Rng           syntax.Range
	Text          string
	IsDeclaration bool
	// IncludeItem is set when the occurrence is an include item, so rename
	// can reconstruct the full `name as alias` form over the item's span.
	IncludeItem *syntax.IncludeItem
	// Node is the occurrence's AST node, used for ancestor walks.
	Node syntax.Node
}

// OccurrencesOf collects every occurrence of def across the project, in
// file order then source order. The declaration's own name token is
// included only when includeDeclaration is set. Results are computed fresh
// on every call and never cached.
func (c *Cache) OccurrencesOf(def *Definition, includeDeclaration bool) []Occurrence {
	if def == nil {
		return nil
	}
	var out []Occurrence
	for _, file := range c.Files() {
		entry := c.files[file]
		syntax.Walk(entry.script, func(n syntax.Node) bool {
			switch v := n.(type) {
			case *syntax.IncludeItem:
				binding := entry.bindingFor(v)
				if binding == nil {
					return true
				}
				if c.includeTarget(entry, binding) != def && binding.def != def {
					return true
				}
				occ := Occurrence{
					File:        entry.path,
					Rng:         v.NameRange,
					Text:        v.Name,
					IncludeItem: v,
					Node:        v,
				}
				if v.Alias != "" {
					occ.Rng = v.AliasRange
					occ.Text = v.Alias
				}
				out = append(out, occ)
			case *syntax.Ident:
				if entry.path == def.File && v.Rng == def.NameRng {
					// the declaration token of a variable binding
					if includeDeclaration {
						out = append(out, Occurrence{
							File: entry.path, Rng: v.Rng, Text: v.Name, IsDeclaration: true, Node: v,
						})
					}
					return true
				}
				if c.lookup(entry, v.Name) == def {
					out = append(out, Occurrence{File: entry.path, Rng: v.Rng, Text: v.Name, Node: v})
				}
			case *syntax.ProcessDecl, *syntax.WorkflowDecl, *syntax.FunctionDecl:
				if entry.path == def.File && n == def.Node && includeDeclaration && def.Name != "" {
					out = append(out, Occurrence{
						File: entry.path, Rng: def.NameRng, Text: def.Name, IsDeclaration: true, Node: n,
					})
				}
			}
			return true
		})
	}
	return out
}

func (e *fileEntry) bindingFor(item *syntax.IncludeItem) *includeBinding {
	for _, b := range e.includes {
		if b.item == item {
			return b
		}
	}
	return nil
}
