package store

import "time"

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Hash        string
	LastIndexed time.Time
}

// Symbol is one persisted definition record.
type Symbol struct {
	ID        int64
	FileID    int64
	Name      string
	Kind      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// SymbolResult is a Symbol joined with its file path, as returned by
// search queries.
type SymbolResult struct {
	Symbol
	FilePath string
}
