package flowlens

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/config"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const engineMain = `include { greet } from './lib/util'

workflow {
    greet('x')
}
`

const engineLib = `def greet(name) {
    name
}
`

func newTestWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "main.nf", engineMain)
	writeFile(t, root, "lib/util.nf", engineLib)
	writeFile(t, root, "README.md", "docs, not a script\n")
	return root
}

func TestEngine_LoadDiscoversScripts(t *testing.T) {
	root := newTestWorkspace(t)

	e, err := New(root)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Load(context.Background()))

	files := e.Cache().Files()
	require.Len(t, files, 2, "only .nf files are loaded")
	assert.Equal(t, cache.Normalize(filepath.Join(root, "lib/util.nf")), files[0])
	assert.Equal(t, cache.Normalize(filepath.Join(root, "main.nf")), files[1])
}

func TestEngine_LoadResolvesAcrossFiles(t *testing.T) {
	root := newTestWorkspace(t)

	e, err := New(root)
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	mainPath := filepath.Join(root, "main.nf")
	locs := e.Analyzer().References(mainPath, posOf(t, engineMain, "greet('x')"), true)
	require.Len(t, locs, 3, "declaration, include item, call")
}

func TestEngine_ExcludeConfig(t *testing.T) {
	root := newTestWorkspace(t)
	writeFile(t, root, "scratch/tmp.nf", "workflow {\n    x\n}\n")

	e, err := New(root, WithConfig(&config.Config{Exclude: []string{"scratch"}}))
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	for _, f := range e.Cache().Files() {
		assert.NotContains(t, f, "scratch/", "excluded directories are not loaded")
	}
}

func TestEngine_SourceDirsConfig(t *testing.T) {
	root := newTestWorkspace(t)

	e, err := New(root, WithConfig(&config.Config{SourceDirs: []string{"lib"}}))
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	files := e.Cache().Files()
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "lib/util.nf")
}

func TestEngine_ConfigFromWorkspaceFile(t *testing.T) {
	root := newTestWorkspace(t)
	writeFile(t, root, config.FileName, "source_dirs:\n  - lib\n")

	e, err := New(root)
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	require.Len(t, e.Cache().Files(), 1)
}

func TestEngine_GitignoreRespected(t *testing.T) {
	root := newTestWorkspace(t)
	writeFile(t, root, ".gitignore", "ignored/\n")
	writeFile(t, root, "ignored/skip.nf", "workflow {\n    x\n}\n")

	e, err := New(root)
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	for _, f := range e.Cache().Files() {
		assert.NotContains(t, f, "ignored/")
	}
}

func TestEngine_PersistsSymbolIndex(t *testing.T) {
	root := newTestWorkspace(t)

	e, err := New(root, WithConfig(&config.Config{IndexDB: "idx/flowlens.db"}))
	require.NoError(t, err)
	defer e.Close()
	require.NotNil(t, e.Store())

	require.NoError(t, e.Load(context.Background()))

	mainKey := cache.Normalize(filepath.Join(root, "main.nf"))
	f, err := e.Store().FileByPath(mainKey)
	require.NoError(t, err)
	require.NotNil(t, f)
	firstID := f.ID

	results, err := e.Store().SearchSymbols("greet")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "function", results[0].Kind)

	// unchanged content keeps the existing rows
	require.NoError(t, e.Load(context.Background()))
	f, err = e.Store().FileByPath(mainKey)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, firstID, f.ID, "hash-unchanged files are not reindexed")
}

func TestEngine_ReindexesChangedFile(t *testing.T) {
	root := newTestWorkspace(t)

	e, err := New(root, WithConfig(&config.Config{IndexDB: "idx/flowlens.db"}))
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Load(context.Background()))

	libKey := cache.Normalize(filepath.Join(root, "lib/util.nf"))
	before, err := e.Store().FileByPath(libKey)
	require.NoError(t, err)
	require.NotNil(t, before)

	writeFile(t, root, "lib/util.nf", engineLib+"\ndef extra(a) {\n    a\n}\n")
	require.NoError(t, e.Load(context.Background()))

	after, err := e.Store().FileByPath(libKey)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.NotEqual(t, before.Hash, after.Hash)

	results, err := e.Store().SearchSymbols("extra")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestEngine_LoadFileDirect(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "one.nf", "process P {\n    input:\n    val x\n}\n")

	e, err := New(root)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.LoadFile(path))
	assert.True(t, e.Cache().HasAST(path))
	syms := e.Analyzer().DocumentSymbols(path)
	require.Len(t, syms, 1)
	assert.Equal(t, "P", syms[0].Name)
}
