package flowlens

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/config"
	"github.com/flowlens/flowlens/internal/store"
)

// sourceExt is the flow DSL file extension.
const sourceExt = ".nf"

// Engine loads a workspace of flow DSL sources into the AST cache and
// exposes the Analyzer over it. When an index database is configured, the
// engine refreshes the persisted symbol index after each load, skipping
// files whose content hash is unchanged.
type Engine struct {
	root  string
	cfg   *config.Config
	cache *cache.Cache
	store *store.Store
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig supplies a workspace configuration, overriding the
// .flowlens.yml lookup.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// New creates an Engine rooted at a workspace directory. The workspace
// config is read from .flowlens.yml unless WithConfig is given; an index
// database is opened when the config names one.
func New(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("flowlens: resolve root %q: %w", root, err)
	}
	e := &Engine{
		root:  abs,
		cache: cache.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg == nil {
		cfg, err := config.LoadRoot(abs)
		if err != nil {
			return nil, fmt.Errorf("flowlens: load config: %w", err)
		}
		e.cfg = cfg
	}
	if e.cfg.IndexDB != "" {
		dbPath := e.cfg.IndexDB
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(abs, dbPath)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("flowlens: create index dir: %w", err)
		}
		s, err := store.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("flowlens: open index: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("flowlens: migrate index: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Close releases the engine's index database, if any.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Root returns the workspace root directory.
func (e *Engine) Root() string {
	return e.root
}

// Cache returns the underlying AST cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Store returns the symbol index store, or nil when none is configured.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Analyzer returns the semantic query interface over the loaded workspace.
func (e *Engine) Analyzer() *Analyzer {
	return &Analyzer{cache: e.cache}
}

// Load discovers the workspace's sources, parses them into the cache, and
// refreshes the symbol index. Errors on individual files are collected;
// loading continues past them.
func (e *Engine) Load(ctx context.Context) error {
	paths, err := e.discover()
	if err != nil {
		return fmt.Errorf("flowlens: discover sources: %w", err)
	}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.loadFile(path); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("flowlens: loading had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// LoadFile parses a single source file into the cache, for callers that
// manage their own file set.
func (e *Engine) LoadFile(path string) error {
	return e.loadFile(path)
}

func (e *Engine) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	e.cache.Put(path, string(content))
	if e.store == nil {
		return nil
	}
	return e.persistFile(path, content)
}

// persistFile refreshes one file's rows in the symbol index, skipping
// unchanged content.
func (e *Engine) persistFile(path string, content []byte) error {
	key := cache.Normalize(path)
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.FileByPath(key)
	if err != nil {
		return fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return nil // unchanged
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return fmt.Errorf("delete stale rows: %w", err)
		}
	}
	fileID, err := e.store.InsertFile(&store.File{
		Path:        key,
		Hash:        hash,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	for _, def := range e.cache.DefinitionsIn(key) {
		// variables (plain bindings and include aliases) have no workspace
		// symbol form, matching the analyzer's workspace search
		if def.Rng.Start.Line < 0 || def.Kind == cache.KindVariable {
			continue
		}
		_, err := e.store.InsertSymbol(&store.Symbol{
			FileID:    fileID,
			Name:      def.DisplayName(),
			Kind:      def.Kind.Label(),
			StartLine: def.Rng.Start.Line,
			StartCol:  def.Rng.Start.Col,
			EndLine:   def.Rng.End.Line,
			EndCol:    def.Rng.End.Col,
		})
		if err != nil {
			return fmt.Errorf("insert symbol %s: %w", def.DisplayName(), err)
		}
	}
	return nil
}

// discover lists the workspace's source files. If the root is a git
// repository, git ls-files is used so .gitignore is respected; otherwise a
// filesystem walk consults the root .gitignore directly.
func (e *Engine) discover() ([]string, error) {
	paths, err := e.gitListFiles()
	if err != nil {
		paths, err = e.walkListFiles()
		if err != nil {
			return nil, err
		}
	}
	filtered := paths[:0]
	for _, p := range paths {
		if e.included(p) {
			filtered = append(filtered, p)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// included applies the config's source_dirs and exclude filters to a path
// relative decision.
func (e *Engine) included(path string) bool {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, ex := range e.cfg.Exclude {
		if rel == ex || strings.HasPrefix(rel, strings.TrimSuffix(ex, "/")+"/") {
			return false
		}
	}
	if len(e.cfg.SourceDirs) == 0 {
		return true
	}
	for _, dir := range e.cfg.SourceDirs {
		if rel == dir || strings.HasPrefix(rel, strings.TrimSuffix(dir, "/")+"/") {
			return true
		}
	}
	return false
}

// gitListFiles uses git ls-files to discover tracked and untracked (but
// not ignored) sources under the root.
func (e *Engine) gitListFiles() ([]string, error) {
	if info, err := os.Stat(filepath.Join(e.root, ".git")); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("not a git repository")
	}
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = e.root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || filepath.Ext(line) != sourceExt {
			continue
		}
		paths = append(paths, filepath.Join(e.root, line))
	}
	return paths, nil
}

// skipDirs are directories never descended into during the walk fallback.
var skipDirs = map[string]bool{
	"node_modules": true,
	"work":         true,
	".nextflow":    true,
}

// walkListFiles discovers sources by walking the filesystem, consulting
// the root .gitignore when present.
func (e *Engine) walkListFiles() ([]string, error) {
	var gi *ignore.GitIgnore
	if compiled, err := ignore.CompileIgnoreFile(filepath.Join(e.root, ".gitignore")); err == nil {
		gi = compiled
	}
	var paths []string
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		name := d.Name()
		if d.IsDir() {
			if path == e.root {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(name) != sourceExt {
			return nil
		}
		if gi != nil {
			if rel, err := filepath.Rel(e.root, path); err == nil && gi.MatchesPath(rel) {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}
	return paths, nil
}
