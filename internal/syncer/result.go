package syncer

import (
	"fmt"
	"strings"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/lint"
)

// Mode selects the phases of a run.
type Mode int

const (
	// ModeFull validates, ingests, then regenerates.
	ModeFull Mode = iota
	// ModeIngestOnly validates and ingests.
	ModeIngestOnly
	// ModeRegenerateOnly regenerates; the pending-edit guard still applies.
	ModeRegenerateOnly
)

func (m Mode) String() string {
	switch m {
	case ModeIngestOnly:
		return "ingest"
	case ModeRegenerateOnly:
		return "regenerate"
	}
	return "full"
}

// ParseMode accepts "full", "ingest" or "regenerate".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ModeFull, nil
	case "ingest", "ingest-only":
		return ModeIngestOnly, nil
	case "regenerate", "regenerate-only", "generate":
		return ModeRegenerateOnly, nil
	}
	return 0, fmt.Errorf("syncer: unknown mode %q", s)
}

func (m Mode) ingests() bool    { return m != ModeRegenerateOnly }
func (m Mode) regenerates() bool { return m != ModeIngestOnly }

// Issue is a problem tied to one page.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result reports one run. Counters only grow while the run progresses.
type Result struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Scope      string    `json:"scope"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Validated int `json:"validated"`
	Ingested  int `json:"ingested"`
	Skipped   int `json:"skipped"` // editable pages unchanged since generation
	Generated int `json:"generated"`
	Changed   int `json:"changed"`
	Deleted   int `json:"deleted"`

	Errors      []Issue           `json:"errors"`
	Warnings    []Issue           `json:"warnings"`
	Diagnostics []lint.Diagnostic `json:"diagnostics,omitempty"`
	// Updates counts applied records per family.
	Updates map[string]int `json:"updates"`
}

func newResult(id string, opts Options, now time.Time) *Result {
	return &Result{
		RunID:     id,
		Mode:      opts.Mode.String(),
		Scope:     opts.Scope.String(),
		StartedAt: now,
		Errors:    []Issue{},
		Warnings:  []Issue{},
		Updates:   make(map[string]int),
	}
}

// Failed reports whether any page failed validation or ingestion.
func (r *Result) Failed() bool { return len(r.Errors) > 0 }

func (r *Result) fail(path, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warn(path, msg string) {
	r.Warnings = append(r.Warnings, Issue{Path: path, Message: msg})
}
