package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flowlens/flowlens"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the loaded workspace",
	Long:  "Run semantic queries against the workspace named by --dir. All line and column numbers are 0-based.",
}

func init() {
	queryCmd.AddCommand(validateCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(renameCmd)
	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
}

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as a non-negative integer.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	return n, nil
}

// parsePositionArgs extracts the <file> <line> <col> triple shared by the
// position-based commands.
func parsePositionArgs(args []string) (string, flowlens.Pos, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return "", flowlens.Pos{}, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return "", flowlens.Pos{}, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return "", flowlens.Pos{}, err
	}
	return file, flowlens.Pos{Line: line, Col: col}, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as
// a CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func locationToCLI(loc flowlens.Location) CLILocation {
	return CLILocation{
		File:      loc.File,
		StartLine: loc.Range.Start.Line,
		StartCol:  loc.Range.Start.Col,
		EndLine:   loc.Range.End.Line,
		EndCol:    loc.Range.End.Col,
	}
}

func symbolToCLI(sym flowlens.SymbolInfo) CLISymbol {
	return CLISymbol{
		Name:      sym.Name,
		Kind:      sym.Kind,
		File:      sym.Location.File,
		StartLine: sym.Location.Range.Start.Line,
		StartCol:  sym.Location.Range.Start.Col,
		EndLine:   sym.Location.Range.End.Line,
		EndCol:    sym.Location.Range.End.Col,
	}
}

// sortedKeys returns a map's keys in sorted order, for stable edit output.
func sortedKeys(m map[string][]flowlens.TextEdit) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// prepareCall resolves the call-hierarchy item at a position, for callers
// and callees.
func prepareCall(a *flowlens.Analyzer, file string, pos flowlens.Pos) (flowlens.CallHandle, error) {
	handles := a.PrepareCallHierarchy(file, pos)
	if len(handles) == 0 {
		return flowlens.CallHandle{}, fmt.Errorf("no callable at %s:%d:%d", file, pos.Line, pos.Col)
	}
	return handles[0], nil
}

// --- Commands ---

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Report diagnostics for a script",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return outputError("validate", err)
	}
	defer engine.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("validate", err)
	}

	diags := engine.Analyzer().Validate(file)
	cliDiags := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		cliDiags[i] = CLIDiagnostic{
			File:      file,
			StartLine: d.Range.Start.Line,
			StartCol:  d.Range.Start.Col,
			EndLine:   d.Range.End.Line,
			EndCol:    d.Range.End.Col,
			Message:   d.Message,
		}
	}

	count := len(cliDiags)
	return outputResult(CLIResult{
		Command:    "validate",
		Results:    cliDiags,
		TotalCount: &count,
	})
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the symbols declared in a script",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return outputError("symbols", err)
	}
	defer engine.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("symbols", err)
	}

	syms := engine.Analyzer().DocumentSymbols(file)
	cliSyms := make([]CLISymbol, len(syms))
	for i, s := range syms {
		cliSyms[i] = symbolToCLI(s)
	}

	count := len(cliSyms)
	return outputResult(CLIResult{
		Command:    "symbols",
		Results:    cliSyms,
		TotalCount: &count,
	})
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search workspace symbols by name",
	Long:  "Case-insensitive substring match over symbol names across the workspace. With --indexed, reads the persisted symbol index instead of parsing sources.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Bool("indexed", false, "query the symbol index database instead of parsing sources")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	if indexed, _ := cmd.Flags().GetBool("indexed"); indexed {
		return runSearchIndexed(query)
	}

	engine, err := loadEngine()
	if err != nil {
		return outputError("search", err)
	}
	defer engine.Close()

	syms := engine.Analyzer().WorkspaceSymbols(query)
	cliSyms := make([]CLISymbol, len(syms))
	for i, s := range syms {
		cliSyms[i] = symbolToCLI(s)
	}

	count := len(cliSyms)
	return outputResult(CLIResult{
		Command:    "search",
		Results:    cliSyms,
		TotalCount: &count,
	})
}

// runSearchIndexed serves search from the SQLite index without loading the
// workspace.
func runSearchIndexed(query string) error {
	engine, err := loadEngineNoSources()
	if err != nil {
		return outputError("search", err)
	}
	defer engine.Close()

	if engine.Store() == nil {
		return outputError("search", fmt.Errorf("no index database configured (set index_db in .flowlens.yml or pass --db)"))
	}
	results, err := engine.Store().SearchSymbols(query)
	if err != nil {
		return outputError("search", err)
	}

	cliSyms := make([]CLISymbol, len(results))
	for i, r := range results {
		cliSyms[i] = CLISymbol{
			Name:      r.Name,
			Kind:      r.Kind,
			File:      r.FilePath,
			StartLine: r.StartLine,
			StartCol:  r.StartCol,
			EndLine:   r.EndLine,
			EndCol:    r.EndCol,
		}
	}

	count := len(cliSyms)
	return outputResult(CLIResult{
		Command:    "search",
		Results:    cliSyms,
		TotalCount: &count,
	})
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "Find all references to the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runReferences,
}

func init() {
	referencesCmd.Flags().Bool("include-declaration", true, "include the declaration itself")
}

func runReferences(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return outputError("references", err)
	}
	defer engine.Close()

	file, pos, err := parsePositionArgs(args)
	if err != nil {
		return outputError("references", err)
	}
	includeDecl, _ := cmd.Flags().GetBool("include-declaration")

	locs := engine.Analyzer().References(file, pos, includeDecl)
	cliLocs := make([]CLILocation, len(locs))
	for i, loc := range locs {
		cliLocs[i] = locationToCLI(loc)
	}

	count := len(cliLocs)
	return outputResult(CLIResult{
		Command:    "references",
		Results:    cliLocs,
		TotalCount: &count,
	})
}

var renameCmd = &cobra.Command{
	Use:   "rename <file> <line> <col> <new-name>",
	Short: "Compute the edits that rename the symbol at a position",
	Args:  cobra.ExactArgs(4),
	RunE:  runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return outputError("rename", err)
	}
	defer engine.Close()

	file, pos, err := parsePositionArgs(args[:3])
	if err != nil {
		return outputError("rename", err)
	}
	newName := args[3]

	edits := engine.Analyzer().Rename(file, pos, newName)
	if edits == nil {
		return outputError("rename", fmt.Errorf("no renameable symbol at %s:%d:%d", file, pos.Line, pos.Col))
	}

	var cliEdits []CLIEdit
	for _, path := range sortedKeys(edits) {
		for _, e := range edits[path] {
			cliEdits = append(cliEdits, CLIEdit{
				File:      path,
				StartLine: e.Range.Start.Line,
				StartCol:  e.Range.Start.Col,
				EndLine:   e.Range.End.Line,
				EndCol:    e.Range.End.Col,
				NewText:   e.NewText,
			})
		}
	}

	count := len(cliEdits)
	return outputResult(CLIResult{
		Command:    "rename",
		Results:    cliEdits,
		TotalCount: &count,
	})
}

var callersCmd = &cobra.Command{
	Use:   "callers <file> <line> <col>",
	Short: "Find callers of the callable at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runCallers,
}

func runCallers(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return outputError("callers", err)
	}
	defer engine.Close()

	file, pos, err := parsePositionArgs(args)
	if err != nil {
		return outputError("callers", err)
	}

	a := engine.Analyzer()
	handle, err := prepareCall(a, file, pos)
	if err != nil {
		return outputError("callers", err)
	}

	calls := a.IncomingCalls(handle)
	cliCalls := make([]CLICall, len(calls))
	for i, c := range calls {
		sites := make([]CLILocation, len(c.FromRanges))
		for j, rng := range c.FromRanges {
			sites[j] = locationToCLI(flowlens.Location{File: c.From.File, Range: rng})
		}
		cliCalls[i] = CLICall{Name: c.From.Name, File: c.From.File, Sites: sites}
	}

	count := len(cliCalls)
	return outputResult(CLIResult{
		Command:    "callers",
		Results:    cliCalls,
		TotalCount: &count,
	})
}

var calleesCmd = &cobra.Command{
	Use:   "callees <file> <line> <col>",
	Short: "Find callables invoked by the callable at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runCallees,
}

func runCallees(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return outputError("callees", err)
	}
	defer engine.Close()

	file, pos, err := parsePositionArgs(args)
	if err != nil {
		return outputError("callees", err)
	}

	a := engine.Analyzer()
	handle, err := prepareCall(a, file, pos)
	if err != nil {
		return outputError("callees", err)
	}

	calls := a.OutgoingCalls(handle)
	cliCalls := make([]CLICall, len(calls))
	for i, c := range calls {
		sites := make([]CLILocation, len(c.FromRanges))
		for j, rng := range c.FromRanges {
			sites[j] = locationToCLI(flowlens.Location{File: file, Range: rng})
		}
		cliCalls[i] = CLICall{Name: c.To.Name, File: c.To.File, Sites: sites}
	}

	count := len(cliCalls)
	return outputResult(CLIResult{
		Command:    "callees",
		Results:    cliCalls,
		TotalCount: &count,
	})
}
