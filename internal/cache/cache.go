package cache

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/flowlens/flowlens/internal/syntax"
)

// Cache is the project-wide AST cache. Scripts go in whole-file at a time
// via Put; every query runs against the current snapshot and computes its
// result fresh. The cache itself is not safe for concurrent mutation; the
// surrounding engine serializes reloads against queries.
type Cache struct {
	files    map[string]*fileEntry
	builtins map[string]*Definition
}

type fileEntry struct {
	path     string
	src      string
	lines    []string
	script   *syntax.Script
	defs     []*Definition // source order, includes include-item variables
	byName   map[string]*Definition
	includes []*includeBinding
	errs     []syntax.ParseError
}

type includeBinding struct {
	item *syntax.IncludeItem
	from string
	def  *Definition // the Variable definition the include item introduces
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		files:    make(map[string]*fileEntry),
		builtins: newBuiltins(),
	}
}

// Put parses src and replaces any previous entry for path. The returned
// errors are parse recovery notes, not failures: the file is always cached.
func (c *Cache) Put(path, src string) []syntax.ParseError {
	path = Normalize(path)
	script, errs := syntax.Parse(path, src)
	entry := &fileEntry{
		path:   path,
		src:    src,
		lines:  strings.Split(src, "\n"),
		script: script,
		byName: make(map[string]*Definition),
		errs:   errs,
	}
	buildDefinitions(entry)
	c.files[path] = entry
	return errs
}

// Remove drops a file from the cache.
func (c *Cache) Remove(path string) {
	delete(c.files, Normalize(path))
}

// HasAST reports whether the file is cached.
func (c *Cache) HasAST(path string) bool {
	_, ok := c.files[Normalize(path)]
	return ok
}

// Files returns the cached file paths in sorted order.
func (c *Cache) Files() []string {
	out := make([]string, 0, len(c.files))
	for path := range c.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Script returns the parsed AST for a file, or nil.
func (c *Cache) Script(path string) *syntax.Script {
	if entry, ok := c.files[Normalize(path)]; ok {
		return entry.script
	}
	return nil
}

// ParseErrors returns the recovery notes recorded when the file was parsed.
func (c *Cache) ParseErrors(path string) []syntax.ParseError {
	if entry, ok := c.files[Normalize(path)]; ok {
		return entry.errs
	}
	return nil
}

// NodeAt returns the innermost node at the position, or nil.
func (c *Cache) NodeAt(path string, pos syntax.Pos) syntax.Node {
	entry, ok := c.files[Normalize(path)]
	if !ok {
		return nil
	}
	return entry.script.NodeAt(pos)
}

// NodePathAt returns the innermost-to-outermost node chain at the position.
func (c *Cache) NodePathAt(path string, pos syntax.Pos) []syntax.Node {
	entry, ok := c.files[Normalize(path)]
	if !ok {
		return nil
	}
	return entry.script.NodePathAt(pos)
}

// ParentOf returns the parent of n within the file's AST.
func (c *Cache) ParentOf(path string, n syntax.Node) syntax.Node {
	entry, ok := c.files[Normalize(path)]
	if !ok {
		return nil
	}
	return entry.script.ParentOf(n)
}

// SourceText returns the source covered by the first n lines of rng. With
// n=1 this is the text from the range start through the end of its first
// line (or through the range end when it is single-line).
func (c *Cache) SourceText(path string, rng syntax.Range, firstNLines int) string {
	entry, ok := c.files[Normalize(path)]
	if !ok {
		return ""
	}
	if firstNLines <= 0 {
		firstNLines = 1
	}
	var parts []string
	for i := 0; i < firstNLines; i++ {
		lineNo := rng.Start.Line + i
		if lineNo < 0 || lineNo >= len(entry.lines) || lineNo > rng.End.Line {
			break
		}
		line := entry.lines[lineNo]
		start, end := 0, len(line)
		if lineNo == rng.Start.Line && rng.Start.Col < len(line) {
			start = rng.Start.Col
		}
		if lineNo == rng.End.Line && rng.End.Col < end {
			end = rng.End.Col
		}
		if start > end {
			start = end
		}
		parts = append(parts, line[start:end])
	}
	return strings.Join(parts, "\n")
}

// Line returns one raw source line, or "".
func (c *Cache) Line(path string, line int) string {
	entry, ok := c.files[Normalize(path)]
	if !ok || line < 0 || line >= len(entry.lines) {
		return ""
	}
	return entry.lines[line]
}

// OwnerFile returns the path of the file whose AST contains n, or "" when
// the node belongs to no cached file.
func (c *Cache) OwnerFile(n syntax.Node) string {
	if n == nil {
		return ""
	}
	if script, ok := n.(*syntax.Script); ok {
		return script.Path
	}
	for _, entry := range c.files {
		if entry.script.ParentOf(n) != nil {
			return entry.path
		}
	}
	return ""
}

// DefinitionsIn lists the definitions declared in one file, in source
// order. With an empty path it lists every definition in the project,
// ordered by file then position, followed by the builtin operators in name
// order.
func (c *Cache) DefinitionsIn(path string) []*Definition {
	if path != "" {
		if entry, ok := c.files[Normalize(path)]; ok {
			out := make([]*Definition, len(entry.defs))
			copy(out, entry.defs)
			return out
		}
		return nil
	}
	var out []*Definition
	for _, file := range c.Files() {
		out = append(out, c.files[file].defs...)
	}
	names := make([]string, 0, len(c.builtins))
	for name := range c.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, c.builtins[name])
	}
	return out
}

// Normalize cleans a path to the cache's canonical key form.
func Normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
