package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Name, s.Kind, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatDiagnosticsText formats CLIDiagnostic results as compiler-style lines.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s\n", d.File, d.StartLine, d.StartCol, d.Message)
	}
}

// formatEditsText formats CLIEdit results as aligned columns.
func formatEditsText(w io.Writer, edits []CLIEdit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSPAN\tNEW TEXT")
	for _, e := range edits {
		span := fmt.Sprintf("%d:%d-%d:%d", e.StartLine, e.StartCol, e.EndLine, e.EndCol)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.File, span, e.NewText)
	}
	tw.Flush()
}

// formatCallsText formats CLICall results with one line per call site.
func formatCallsText(w io.Writer, calls []CLICall) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILE\tSITES")
	for _, c := range calls {
		sites := make([]string, len(c.Sites))
		for i, s := range c.Sites {
			sites[i] = fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.File, strings.Join(sites, " "))
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on
// the result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIEdit:
		formatEditsText(w, v)
	case []CLICall:
		formatCallsText(w, v)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
