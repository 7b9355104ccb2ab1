package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowlens/flowlens"
	"github.com/flowlens/flowlens/internal/config"
	"github.com/flowlens/flowlens/internal/mcpserver"
	mcp "github.com/mark3labs/mcp-go/server"
)

const version = "0.1.0"

var (
	flagDir    string
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "flowlens",
	Short:         "Semantic analysis and cross-reference queries for pipeline scripts",
	Long:          "Flowlens parses a workspace of pipeline scripts and answers language-server style queries: diagnostics, references, rename, symbols, and call hierarchy.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "symbol index database path (overrides .flowlens.yml)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadEngine creates an Engine for the --dir workspace and loads its
// sources. The --db flag overrides the configured index path.
func loadEngine() (*flowlens.Engine, error) {
	engine, err := loadEngineNoSources()
	if err != nil {
		return nil, err
	}
	if err := engine.Load(context.Background()); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

// loadEngineNoSources creates an Engine without parsing the workspace, for
// commands that read only the persisted index.
func loadEngineNoSources() (*flowlens.Engine, error) {
	root, err := filepath.Abs(flagDir)
	if err != nil {
		return nil, fmt.Errorf("resolving --dir %q: %w", flagDir, err)
	}
	var opts []flowlens.Option
	if flagDB != "" {
		cfg, err := config.LoadRoot(root)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg.IndexDB = flagDB
		opts = append(opts, flowlens.WithConfig(cfg))
	}
	return flowlens.New(root, opts...)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Parse the workspace and refresh the symbol index",
	Long:  "Parses every pipeline script in the workspace and, when an index database is configured, persists the symbol table. Unchanged files are skipped by content hash.",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	files := engine.Cache().Files()
	fmt.Fprintf(os.Stderr, "Indexed %d file(s) under %s in %s\n",
		len(files), engine.Root(), time.Since(start).Round(time.Millisecond))
	if engine.Store() != nil {
		fmt.Fprintf(os.Stderr, "Database: %s\n", engine.Store().Path())
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over MCP stdio",
	Long:  "Loads the workspace and exposes the query tools to MCP clients over stdin/stdout.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	handler := mcpserver.NewHandler(engine)
	s := mcpserver.New(handler, version)

	fmt.Fprintf(os.Stderr, "flowlens MCP server: %d file(s) loaded from %s\n",
		len(engine.Cache().Files()), engine.Root())
	return mcp.ServeStdio(s)
}
