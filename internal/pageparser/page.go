// Package pageparser reads the editable subset of generated pages back into
// update records for the persistence layer.
package pageparser

import (
	"regexp"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Page is the raw structure of a page: its title, metadata lines and
// section bodies. Nothing after the final "---" line is kept.
type Page struct {
	Key      string
	Metadata []Field
	Sections map[string]*Section // keyed by lowercase heading
}

// Field is one "- **Label:** value" metadata line.
type Field struct {
	Label string
	Value string
	Line  int
}

// Section is the body of a "## Heading" zone.
type Section struct {
	Heading string
	Lines   []Line
	Blocks  []Block // "### Name" sub-blocks, in page order
}

// Block is a "### Name" zone nested in a section.
type Block struct {
	Name  string
	Line  int
	Lines []Line
}

// Line is one body line with its 1-based line number.
type Line struct {
	N    int
	Text string
}

type state int

const (
	stateMetadata state = iota
	stateSection
	stateNested
)

var metadataLine = regexp.MustCompile(`^- \*\*([^*]+?):\*\*\s*(.*)$`)

// ParsePage splits text into zones with a line-oriented state machine:
// metadata until the first "##" heading, then sections, with "###" headings
// opening nested blocks inside the current section.
func ParsePage(text string) *Page {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines = lines[:footerStart(lines)]

	p := &Page{Sections: make(map[string]*Section)}
	st := stateMetadata
	var sec *Section
	var blk *Block

	for i, raw := range lines {
		n := i + 1
		line := strings.TrimRight(raw, " \t")
		switch {
		case strings.HasPrefix(line, "# "):
			if p.Key == "" {
				p.Key = strings.TrimSpace(line[2:])
			}
			continue
		case strings.HasPrefix(line, "## "):
			heading := strings.TrimSpace(line[3:])
			key := strings.ToLower(heading)
			if existing, ok := p.Sections[key]; ok {
				sec = existing
			} else {
				sec = &Section{Heading: heading}
				p.Sections[key] = sec
			}
			blk = nil
			st = stateSection
			continue
		case strings.HasPrefix(line, "### ") && st != stateMetadata:
			sec.Blocks = append(sec.Blocks, Block{Name: strings.TrimSpace(line[4:]), Line: n})
			blk = &sec.Blocks[len(sec.Blocks)-1]
			st = stateNested
			continue
		}

		switch st {
		case stateMetadata:
			if m := metadataLine.FindStringSubmatch(line); m != nil {
				p.Metadata = append(p.Metadata, Field{Label: strings.TrimSpace(m[1]), Value: strings.TrimSpace(m[2]), Line: n})
			}
		case stateSection:
			sec.Lines = append(sec.Lines, Line{N: n, Text: line})
		case stateNested:
			blk.Lines = append(blk.Lines, Line{N: n, Text: line})
		}
	}
	return p
}

// footerStart returns the index of the final "---" line, or len(lines).
func footerStart(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "---" {
			return i
		}
	}
	return len(lines)
}

// Section returns the section with the given heading, case-insensitively.
func (p *Page) Section(heading string) (*Section, bool) {
	s, ok := p.Sections[strings.ToLower(heading)]
	return s, ok
}

// ListItems returns the text of every "- " or "* " item of the section
// body, outside nested blocks.
func (s *Section) ListItems() []string {
	return listItems(s.Lines)
}

// Text returns the section body as trimmed free text.
func (s *Section) Text() string {
	return freeText(s.Lines)
}

func listItems(lines []Line) []string {
	var out []string
	for _, l := range lines {
		if item, ok := listItem(l.Text); ok {
			out = append(out, item)
		}
	}
	return out
}

func listItem(line string) (string, bool) {
	t := strings.TrimSpace(line)
	for _, bullet := range []string{"- ", "* "} {
		if strings.HasPrefix(t, bullet) {
			item := strings.TrimSpace(t[len(bullet):])
			return item, item != ""
		}
	}
	return "", false
}

// freeText joins lines into canonical free text; see model.CleanText.
func freeText(lines []Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return model.CleanText(strings.Join(texts, "\n"))
}
