package flowlens

import (
	"strings"

	"github.com/flowlens/flowlens/internal/cache"
)

// DocumentSymbols lists every definition declared in the file, in source
// order. Definitions without a real location (synthetic or builtin) are
// excluded.
func (a *Analyzer) DocumentSymbols(file string) []SymbolInfo {
	var out []SymbolInfo
	for _, def := range a.cache.DefinitionsIn(file) {
		if def.Rng.Start.Line < 0 {
			continue
		}
		out = append(out, symbolInfo(def))
	}
	return out
}

// WorkspaceSymbols performs a case-insensitive substring search over every
// definition's display name across the project. Variables (plain bindings
// and include aliases) have no workspace symbol form and are skipped, as
// are builtins.
func (a *Analyzer) WorkspaceSymbols(query string) []SymbolInfo {
	query = strings.ToLower(query)
	var out []SymbolInfo
	for _, def := range a.cache.DefinitionsIn("") {
		if def.Kind == cache.KindVariable || !def.Located() {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(def.DisplayName()), query) {
			continue
		}
		out = append(out, symbolInfo(def))
	}
	return out
}

func symbolInfo(def *cache.Definition) SymbolInfo {
	return SymbolInfo{
		Name: def.DisplayName(),
		Kind: def.Kind.Label(),
		Location: Location{
			File:  def.File,
			Range: def.Rng,
		},
	}
}
