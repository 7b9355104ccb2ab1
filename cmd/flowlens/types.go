package main

// CLIResult is the JSON envelope for all command output.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a source span in CLI output. Lines and columns are 0-based.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLISymbol is a definition in CLI output.
type CLISymbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a validation finding in CLI output.
type CLIDiagnostic struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Message   string `json:"message"`
}

// CLIEdit is one text replacement of a rename in CLI output.
type CLIEdit struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	NewText   string `json:"new_text"`
}

// CLICall is one call-hierarchy edge in CLI output. Sites are the call
// locations inside From (callers) or toward To (callees).
type CLICall struct {
	Name  string        `json:"name"`
	File  string        `json:"file"`
	Sites []CLILocation `json:"sites"`
}
