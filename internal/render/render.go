// Package render turns page contexts into markdown through text/template.
// The default templates are embedded; a directory of *.md.tmpl files can
// override any of them by name.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/soffiafdz/palimpsest-sub000/internal/wikictx"
)

//go:embed templates/*.md.tmpl
var embeddedTemplates embed.FS

const suffix = ".md.tmpl"

// ErrUnknownTemplate is returned by Render for a name with no template.
var ErrUnknownTemplate = errors.New("render: unknown template")

// Renderer executes the page templates. It is safe for concurrent use.
type Renderer struct {
	tpl *template.Template
}

// New parses the embedded templates, then any *.md.tmpl file in overrideDir.
// A file in overrideDir replaces the embedded template of the same name.
func New(overrideDir string) (*Renderer, error) {
	tpl, err := template.New("pages").Funcs(funcs()).Option("missingkey=error").
		ParseFS(embeddedTemplates, "templates/*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("render: parse embedded templates: %w", err)
	}
	if overrideDir != "" {
		matches, err := filepath.Glob(filepath.Join(overrideDir, "*"+suffix))
		if err != nil {
			return nil, fmt.Errorf("render: list overrides: %w", err)
		}
		if len(matches) > 0 {
			if tpl, err = tpl.ParseFiles(matches...); err != nil {
				return nil, fmt.Errorf("render: parse overrides: %w", err)
			}
		}
	}
	return &Renderer{tpl: tpl}, nil
}

// Render executes the named template ("entry", "chapter", ...) and
// normalizes the result.
func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.tpl.Lookup(name + suffix)
	if t == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return Normalize(buf.String()), nil
}

// Has reports whether a template exists.
func (r *Renderer) Has(name string) bool {
	return r.tpl.Lookup(name+suffix) != nil
}

// Names lists the page templates, partials excluded.
func (r *Renderer) Names() []string {
	var out []string
	for _, t := range r.tpl.Templates() {
		if n, ok := strings.CutSuffix(t.Name(), suffix); ok && n != "partials" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Normalize trims trailing spaces, collapses runs of blank lines, keeps a
// blank line before every "---" rule so it never reads as a setext heading,
// and ends the page with exactly one newline.
func Normalize(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		if line == "---" && !blank {
			out = append(out, "")
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"join": joinRefs,
		"nav":  nav,
	}
}

func joinRefs(refs []wikictx.Ref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func nav(prev, next wikictx.Ref) string {
	var parts []string
	if !prev.IsZero() {
		parts = append(parts, "Previous: "+prev.String())
	}
	if !next.IsZero() {
		parts = append(parts, "Next: "+next.String())
	}
	if len(parts) == 0 {
		return "The only entry."
	}
	return strings.Join(parts, " · ")
}
