// Package flowlens provides semantic analysis and cross-reference queries
// for dataflow pipeline scripts. It resolves names across files through
// include declarations, validates call sites, and answers the queries a
// language server needs: references, rename, document and workspace
// symbols, and call hierarchy.
//
// # Pipeline
//
// Flowlens keeps an in-memory AST cache as its source of truth:
//
//  1. Load: the Engine discovers a workspace's .nf files, parses each into
//     the cache, and builds per-file definition tables (processes,
//     workflows, functions, includes, top-level assignments).
//
//  2. Query: the Analyzer resolves the symbol under a position against the
//     cache and walks ASTs on demand. Queries are deterministic: files are
//     visited in sorted order and results follow source order.
//
// When an index database is configured, the Engine additionally persists a
// symbol table to SQLite for fast workspace-wide lookup between runs.
//
// # Usage
//
// Create an Engine, load the workspace, and query through the Analyzer:
//
//	e, err := flowlens.New("path/to/workspace")
//	if err != nil { ... }
//	defer e.Close()
//
//	if err := e.Load(context.Background()); err != nil { ... }
//
//	a := e.Analyzer()
//	diags := a.Validate("main.nf")
//	refs, err := a.References("main.nf", flowlens.Pos{Line: 4, Col: 9}, true)
//
// Positions are zero-based line and column offsets; ranges are half-open.
package flowlens
