// Package lint checks wiki pages before their edits are ingested: one title,
// no empty sections, and no link that points nowhere.
package lint

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
)

// Resolver answers whether a link target names an existing page.
type Resolver interface {
	Resolves(target string) bool
}

// Validator checks pages against one snapshot of the addressable set. It is
// safe for concurrent use as long as the resolver is.
type Validator struct {
	resolver Resolver
	md       goldmark.Markdown
}

// New returns a validator over the addressable set r.
func New(r Resolver) *Validator {
	return &Validator{resolver: r, md: goldmark.New()}
}

var (
	linkMarker = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]*))?\]\]`)
	inlineCode = regexp.MustCompile("`[^`\n]*`")
	separator  = regexp.MustCompile(`^ {0,3}(?:-{3,}|\*{3,}|_{3,})\s*$`)
)

type heading struct {
	level int
	line  int // 1-based
}

// doc is a page split into lines with the structure goldmark found.
type doc struct {
	lines    []string
	starts   []int // byte offset of each line
	headings []heading
	code     map[int]bool // lines inside code blocks
}

func (v *Validator) parse(src []byte) *doc {
	d := &doc{code: make(map[int]bool)}
	s := string(src)
	d.lines = strings.Split(s, "\n")
	off := 0
	for _, l := range d.lines {
		d.starts = append(d.starts, off)
		off += len(l) + 1
	}

	root := v.md.Parser().Parse(text.NewReader(src))
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			line := 0
			if node.Lines().Len() > 0 {
				line = d.lineOf(node.Lines().At(0).Start)
			}
			d.headings = append(d.headings, heading{level: node.Level, line: line})
		case *gmast.FencedCodeBlock, *gmast.CodeBlock:
			segs := node.Lines()
			for i := 0; i < segs.Len(); i++ {
				d.code[d.lineOf(segs.At(i).Start)] = true
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return d
}

// lineOf maps a byte offset to a 1-based line number.
func (d *doc) lineOf(offset int) int {
	return sort.Search(len(d.starts), func(i int) bool { return d.starts[i] > offset })
}

func (d *doc) line(n int) string {
	if n < 1 || n > len(d.lines) {
		return ""
	}
	return strings.TrimRight(d.lines[n-1], "\r")
}

func (d *doc) span(path string, n int) Diagnostic {
	return Diagnostic{Path: path, Line: n, Column: 1, EndLine: n, EndColumn: utf8.RuneCountInString(d.line(n)) + 1}
}

// Validate returns the sorted diagnostics of one page.
func (v *Validator) Validate(ctx context.Context, path, page string) ([]Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := v.parse([]byte(page))
	var out []Diagnostic
	out = append(out, d.checkTitles(path)...)
	out = append(out, d.checkEmptySections(path)...)
	out = append(out, d.checkReferences(path, v.resolver)...)
	sortDiagnostics(out)
	return out, nil
}

func (d *doc) checkTitles(path string) []Diagnostic {
	var out []Diagnostic
	seen := 0
	for _, h := range d.headings {
		if h.level != 1 {
			continue
		}
		seen++
		if seen > 1 {
			diag := d.span(path, h.line)
			diag.Severity = SeverityError
			diag.Code = CodeMultipleTitles
			diag.Message = fmt.Sprintf("extra title %q; a page has exactly one H1", strings.TrimSpace(strings.TrimLeft(d.line(h.line), "# ")))
			out = append(out, diag)
		}
	}
	if seen == 0 {
		diag := d.span(path, 1)
		diag.Severity = SeverityError
		diag.Code = CodeMissingTitle
		diag.Message = "page has no H1 title"
		out = append(out, diag)
	}
	return out
}

// checkEmptySections flags "##" headings with nothing before the next
// heading of level two or less, a separator, or the end of the page.
func (d *doc) checkEmptySections(path string) []Diagnostic {
	var out []Diagnostic
	for i, h := range d.headings {
		if h.level != 2 {
			continue
		}
		end := len(d.lines) + 1
		for _, next := range d.headings[i+1:] {
			if next.level <= 2 {
				end = next.line
				break
			}
		}
		empty := true
		for n := h.line + 1; n < end; n++ {
			l := d.line(n)
			if !d.code[n] && separator.MatchString(l) {
				break
			}
			if strings.TrimSpace(l) != "" {
				empty = false
				break
			}
		}
		if empty {
			diag := d.span(path, h.line)
			diag.Severity = SeverityWarning
			diag.Code = CodeEmptySection
			diag.Message = fmt.Sprintf("section %q is empty", strings.TrimSpace(strings.TrimLeft(d.line(h.line), "# ")))
			out = append(out, diag)
		}
	}
	return out
}

func (d *doc) checkReferences(path string, r Resolver) []Diagnostic {
	var out []Diagnostic
	for i := range d.lines {
		n := i + 1
		if d.code[n] {
			continue
		}
		l := d.line(n)
		// Blank out inline code so its markers are skipped but columns hold.
		masked := inlineCode.ReplaceAllStringFunc(l, func(s string) string { return strings.Repeat(" ", len(s)) })
		for _, m := range linkMarker.FindAllStringSubmatchIndex(masked, -1) {
			target := strings.TrimSpace(masked[m[2]:m[3]])
			alias := ""
			if m[4] >= 0 {
				alias = strings.TrimSpace(masked[m[4]:m[5]])
			}
			if r.Resolves(target) || (alias != "" && r.Resolves(alias)) {
				continue
			}
			out = append(out, Diagnostic{
				Path:      path,
				Line:      n,
				Column:    utf8.RuneCountInString(l[:m[0]]) + 1,
				EndLine:   n,
				EndColumn: utf8.RuneCountInString(l[:m[1]]) + 1,
				Severity:  SeverityError,
				Code:      CodeUnresolvedReference,
				Message:   fmt.Sprintf("[[%s]] does not name an existing page", target),
			})
		}
	}
	return out
}

func sortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Code < b.Code
	})
}

// ValidateTree validates every path and collects the diagnostics.
func (v *Validator) ValidateTree(ctx context.Context, files storage.Provider, paths []string) (*Result, error) {
	res := &Result{Diagnostics: []Diagnostic{}}
	for _, p := range paths {
		data, err := files.Read(p)
		if err != nil {
			return nil, fmt.Errorf("lint: %w", err)
		}
		ds, err := v.Validate(ctx, p, string(data))
		if err != nil {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, ds...)
		res.FilesTotal++
	}
	sortDiagnostics(res.Diagnostics)
	return res, nil
}
