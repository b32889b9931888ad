// Package marker reads and writes the pending-edit marker: an advisory file at
// the output root announcing edits an external writer has not yet ingested.
package marker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
)

// FileName is the marker path relative to the output root.
const FileName = ".pending-edits.json"

// Marker is the on-disk record.
type Marker struct {
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files"`
}

// ConflictError is returned by Guard when a marker is present.
type ConflictError struct {
	Marker *Marker
}

func (e *ConflictError) Error() string {
	files := "no files listed"
	if len(e.Marker.Files) > 0 {
		files = strings.Join(e.Marker.Files, ", ")
	}
	return fmt.Sprintf("%v: edits from %q at %s (%s); run an ingest first",
		apperr.ErrPendingEdits, e.Marker.Origin, e.Marker.Timestamp.Format(time.RFC3339), files)
}

func (e *ConflictError) Unwrap() error { return apperr.ErrPendingEdits }

// Read returns the marker, or nil when none exists.
func Read(p storage.Provider) (*Marker, error) {
	data, err := p.Read(FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("marker: %w", err)
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("marker: decode %s: %w", FileName, err)
	}
	return &m, nil
}

// Guard returns a *ConflictError when a marker exists.
func Guard(p storage.Provider) error {
	m, err := Read(p)
	if err != nil {
		return err
	}
	if m != nil {
		return &ConflictError{Marker: m}
	}
	return nil
}

// Write replaces the marker.
func Write(p storage.Provider, m *Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marker: encode: %w", err)
	}
	if err := p.Write(FileName, append(data, '\n')); err != nil {
		return fmt.Errorf("marker: %w", err)
	}
	return nil
}

// Add records files edited by origin, merging with an existing marker. The
// file list stays sorted and free of duplicates; the timestamp moves to now.
func Add(p storage.Provider, origin string, now time.Time, files ...string) (*Marker, error) {
	m, err := Read(p)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &Marker{Origin: origin}
	}
	seen := make(map[string]struct{}, len(m.Files)+len(files))
	merged := make([]string, 0, len(m.Files)+len(files))
	for _, f := range append(m.Files, files...) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		merged = append(merged, f)
	}
	sort.Strings(merged)
	m.Files = merged
	m.Timestamp = now.UTC().Truncate(time.Second)
	if err := Write(p, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Clear deletes the marker. A missing marker is not an error.
func Clear(p storage.Provider) error {
	ok, err := p.Exists(FileName)
	if err != nil {
		return fmt.Errorf("marker: %w", err)
	}
	if !ok {
		return nil
	}
	if err := p.Delete(FileName); err != nil {
		return fmt.Errorf("marker: %w", err)
	}
	return nil
}
