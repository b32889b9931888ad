package lint

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter writes a lint result.
type Formatter interface {
	Format(w io.Writer, result *Result) error
}

// NewFormatter returns the formatter for "text" or "json".
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return TextFormatter{}, nil
	case "json":
		return JSONFormatter{}, nil
	}
	return nil, fmt.Errorf("lint: unknown format %q", format)
}

// TextFormatter prints diagnostics grouped by file, then a summary.
type TextFormatter struct{}

func (TextFormatter) Format(w io.Writer, result *Result) error {
	current := ""
	for _, d := range result.Diagnostics {
		if d.Path != current {
			if current != "" {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			current = d.Path
			if _, err := fmt.Fprintln(w, d.Path); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "  %d:%d  %-7s  %s  %s\n", d.Line, d.Column, d.Severity, d.Message, d.Code); err != nil {
			return err
		}
	}
	if len(result.Diagnostics) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d file%s checked, %d error%s, %d warning%s\n",
		result.FilesTotal, plural(result.FilesTotal),
		result.ErrorCount(), plural(result.ErrorCount()),
		result.WarningCount(), plural(result.WarningCount()))
	return err
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// JSONFormatter writes the result as one indented JSON document.
type JSONFormatter struct{}

func (JSONFormatter) Format(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Result
		ErrorCount   int `json:"error_count"`
		WarningCount int `json:"warning_count"`
	}{result, result.ErrorCount(), result.WarningCount()})
}
