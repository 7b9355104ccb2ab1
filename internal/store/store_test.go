package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestFile(t *testing.T, s *Store, path string) int64 {
	t.Helper()
	id, err := s.InsertFile(&File{Path: path, Hash: "h1", LastIndexed: time.Now()})
	require.NoError(t, err)
	return id
}

func TestFileByPath(t *testing.T) {
	s := newTestStore(t)
	id := insertTestFile(t, s, "proj/main.nf")

	f, err := s.FileByPath("proj/main.nf")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, id, f.ID)
	assert.Equal(t, "h1", f.Hash)
}

func TestFileByPath_Missing(t *testing.T) {
	s := newTestStore(t)

	f, err := s.FileByPath("proj/other.nf")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestDeleteFile_CascadesSymbols(t *testing.T) {
	s := newTestStore(t)
	id := insertTestFile(t, s, "proj/main.nf")

	_, err := s.InsertSymbol(&Symbol{FileID: id, Name: "ALIGN", Kind: "process", EndLine: 4})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile(id))

	f, err := s.FileByPath("proj/main.nf")
	require.NoError(t, err)
	assert.Nil(t, f)

	syms, err := s.SymbolsByFile(id)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestSymbolsByFile_SourceOrder(t *testing.T) {
	s := newTestStore(t)
	id := insertTestFile(t, s, "proj/main.nf")

	_, err := s.InsertSymbol(&Symbol{FileID: id, Name: "W", Kind: "workflow", StartLine: 10, EndLine: 14})
	require.NoError(t, err)
	_, err = s.InsertSymbol(&Symbol{FileID: id, Name: "P", Kind: "process", StartLine: 0, EndLine: 8})
	require.NoError(t, err)

	syms, err := s.SymbolsByFile(id)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "P", syms[0].Name)
	assert.Equal(t, "W", syms[1].Name)
}

func TestSearchSymbols_Substring(t *testing.T) {
	s := newTestStore(t)
	id := insertTestFile(t, s, "proj/main.nf")

	for _, sym := range []Symbol{
		{FileID: id, Name: "ALIGN_READS", Kind: "process"},
		{FileID: id, Name: "MAPPING", Kind: "workflow"},
		{FileID: id, Name: "align_stats", Kind: "function"},
	} {
		sym := sym
		_, err := s.InsertSymbol(&sym)
		require.NoError(t, err)
	}

	results, err := s.SearchSymbols("align")
	require.NoError(t, err)
	require.Len(t, results, 2, "LIKE match is case-insensitive for ASCII names")
	assert.Equal(t, "ALIGN_READS", results[0].Name)
	assert.Equal(t, "proj/main.nf", results[0].FilePath)
	assert.Equal(t, "align_stats", results[1].Name)
}

func TestSearchSymbols_EscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	id := insertTestFile(t, s, "proj/main.nf")

	_, err := s.InsertSymbol(&Symbol{FileID: id, Name: "a_b", Kind: "function"})
	require.NoError(t, err)
	_, err = s.InsertSymbol(&Symbol{FileID: id, Name: "axb", Kind: "function"})
	require.NoError(t, err)

	results, err := s.SearchSymbols("a_b")
	require.NoError(t, err)
	require.Len(t, results, 1, "underscore must match literally, not as a wildcard")
	assert.Equal(t, "a_b", results[0].Name)
}

func TestSearchSymbols_NoMatchIsEmpty(t *testing.T) {
	s := newTestStore(t)
	insertTestFile(t, s, "proj/main.nf")

	results, err := s.SearchSymbols("nothing")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}
