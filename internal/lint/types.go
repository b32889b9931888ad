package lint

import "encoding/json"

// Severity indicates whether a diagnostic blocks ingestion.
type Severity int

const (
	// SeverityWarning marks problems that are reported but never block a sync.
	SeverityWarning Severity = iota + 1
	// SeverityError marks problems that stop the ingest phase.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Diagnostic codes.
const (
	CodeMissingTitle        = "missing-title"
	CodeMultipleTitles      = "multiple-titles"
	CodeEmptySection        = "empty-section"
	CodeUnresolvedReference = "unresolved-reference"
)

// Diagnostic is one problem found in a page. Lines and columns are 1-based;
// columns count runes.
type Diagnostic struct {
	Path      string   `json:"path"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	EndLine   int      `json:"end_line"`
	EndColumn int      `json:"end_column"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
}

// Result collects the diagnostics of many files.
type Result struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	FilesTotal  int          `json:"files_total"`
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool { return r.ErrorCount() > 0 }

// ErrorCount returns the number of error diagnostics.
func (r *Result) ErrorCount() int { return count(r.Diagnostics, SeverityError) }

// WarningCount returns the number of warning diagnostics.
func (r *Result) WarningCount() int { return count(r.Diagnostics, SeverityWarning) }

// Errors returns only the error diagnostics.
func (r *Result) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func count(ds []Diagnostic, s Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// HasErrors reports whether ds contains an error.
func HasErrors(ds []Diagnostic) bool { return count(ds, SeverityError) > 0 }
