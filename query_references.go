package flowlens

import (
	"strings"

	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/syntax"
)

// References finds all occurrences of the symbol at the cursor. When the
// cursor is on an alias use, results are confined to occurrences of that
// alias text in the same file: aliases never resolve across files and never
// merge with the canonical name or with a different alias of the same
// definition.
func (a *Analyzer) References(file string, pos Pos, includeDeclaration bool) []Location {
	name, def := a.symbolAt(file, pos)
	if name == "" || def == nil {
		return nil
	}
	occs := a.scopedOccurrences(file, name, def, includeDeclaration)
	var out []Location
	for _, occ := range occs {
		out = append(out, Location{File: occ.File, Range: occ.Rng})
	}
	return out
}

// scopedOccurrences fetches project-wide occurrences and applies alias
// scoping: when the requested name differs from the definition's canonical
// name, only same-file occurrences with that exact text survive.
func (a *Analyzer) scopedOccurrences(file, name string, def *cache.Definition, includeDeclaration bool) []cache.Occurrence {
	occs := a.cache.OccurrencesOf(def, includeDeclaration)
	if name == def.Name {
		return occs
	}
	file = cache.Normalize(file)
	var scoped []cache.Occurrence
	for _, occ := range occs {
		if occ.File == file && occ.Text == name {
			scoped = append(scoped, occ)
		}
	}
	return scoped
}

// Rename builds the text edits that rename the symbol at the cursor to
// newName, keyed by file and ordered by position. It returns no edits when
// the cursor does not resolve or the target has no owning file (a builtin).
func (a *Analyzer) Rename(file string, pos Pos, newName string) map[string][]TextEdit {
	oldName, def := a.symbolAt(file, pos)
	if oldName == "" || def == nil || !def.Located() {
		return nil
	}
	occs := a.scopedOccurrences(file, oldName, def, true)
	edits := make(map[string][]TextEdit)
	for _, occ := range occs {
		var edit *TextEdit
		switch {
		case occ.IncludeItem != nil:
			edit = includeItemEdit(occ.IncludeItem, oldName, newName)
		case occ.IsDeclaration:
			edit = a.declarationEdit(def, occ, oldName, newName)
		default:
			// defensive: only rewrite occurrences whose stored text matches
			if occ.Text == oldName {
				edit = &TextEdit{Range: occ.Rng, NewText: newName}
			}
		}
		if edit != nil {
			edits[occ.File] = append(edits[occ.File], *edit)
		}
	}
	if len(edits) == 0 {
		return nil
	}
	return edits
}

// declarationEdit replaces the old name inside the first source line of the
// definition's range, found by literal text search, leaving the rest of the
// signature line intact.
func (a *Analyzer) declarationEdit(def *cache.Definition, occ cache.Occurrence, oldName, newName string) *TextEdit {
	line := a.cache.SourceText(occ.File, def.Rng, 1)
	idx := strings.Index(line, oldName)
	if idx < 0 {
		return nil
	}
	start := Pos{Line: def.Rng.Start.Line, Col: def.Rng.Start.Col + idx}
	return &TextEdit{
		Range:   Range{Start: start, End: Pos{Line: start.Line, Col: start.Col + len(oldName)}},
		NewText: newName,
	}
}

// includeItemEdit reconstructs an include item's full `name[ as alias]`
// text. Renaming the base name keeps the alias; renaming the alias keeps
// the base; an item without an alias stays a bare name.
func includeItemEdit(item *syntax.IncludeItem, oldName, newName string) *TextEdit {
	base, alias := item.Name, item.Alias
	switch oldName {
	case item.Name:
		base = newName
	case item.Alias:
		alias = newName
	default:
		return nil
	}
	text := base
	if alias != "" {
		text = base + " as " + alias
	}
	return &TextEdit{Range: item.Rng, NewText: text}
}
