// Package store is the persisted workspace symbol index: a small SQLite
// database the engine refreshes after loading a workspace, so repeated
// symbol queries from the CLI can skip reparsing.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the symbol index.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
`

// InsertFile inserts a file record and returns its ID.
func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, last_indexed) VALUES (?, ?, ?)",
		f.Path, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	return res.LastInsertId()
}

// FileByPath returns the file record for a path, or nil when absent.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, hash, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// DeleteFile removes a file record and, via cascade, its symbols.
func (s *Store) DeleteFile(fileID int64) error {
	if _, err := s.db.Exec("DELETE FROM symbols WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete symbols: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// InsertSymbol inserts a symbol record and returns its ID.
func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, kind, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.Kind,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	return res.LastInsertId()
}

// SymbolsByFile returns the symbols of one file in position order.
func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, name, kind, start_line, start_col, end_line, end_col
		 FROM symbols WHERE file_id = ? ORDER BY start_line, start_col`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("symbols by file: %w", err)
	}
	defer rows.Close()

	var out []*Symbol
	for rows.Next() {
		sym := &Symbol{}
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Name, &sym.Kind,
			&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol); err != nil {
			return nil, fmt.Errorf("symbols by file: scan: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// SearchSymbols performs a case-insensitive substring search over symbol
// names across the whole index, ordered by name then path.
func (s *Store) SearchSymbols(query string) ([]*SymbolResult, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(
		`SELECT s.id, s.file_id, s.name, s.kind,
			s.start_line, s.start_col, s.end_line, s.end_col, f.path
		 FROM symbols s
		 JOIN files f ON s.file_id = f.id
		 WHERE s.name LIKE ? ESCAPE '\'
		 ORDER BY s.name, f.path, s.start_line`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	defer rows.Close()

	var out []*SymbolResult
	for rows.Next() {
		sr := &SymbolResult{}
		if err := rows.Scan(&sr.ID, &sr.FileID, &sr.Name, &sr.Kind,
			&sr.StartLine, &sr.StartCol, &sr.EndLine, &sr.EndCol, &sr.FilePath); err != nil {
			return nil, fmt.Errorf("search symbols: scan: %w", err)
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search symbols: rows: %w", err)
	}
	if out == nil {
		out = []*SymbolResult{}
	}
	return out, nil
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
