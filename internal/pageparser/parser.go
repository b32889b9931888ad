package pageparser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/store"
)

// Record is the update one editable page asks for. A section missing from
// the page leaves its field untouched; a present section replaces it.
type Record struct {
	Family model.Family
	Key    string
	Fields store.Fields
	// Links holds the full replacement set of every relation whose section
	// is on the page. An empty slice clears the relation.
	Links map[store.Relation][]LinkTarget
	// OwnerSet is true when the page names its owner; OwnerID zero means
	// none.
	OwnerSet bool
	OwnerID  int64
	// HasScenes is true when a chapter page carries a Scenes section.
	HasScenes bool
	Scenes    []SceneBlock
	Warnings  []string
}

// LinkTarget is one resolved link with its qualifier columns.
type LinkTarget struct {
	ID    int64
	Extra []any
}

// SceneBlock is a scene nested in a chapter page.
type SceneBlock struct {
	ID          int64
	Name        string
	Description string
	Sources     []int64
}

func (r *Record) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Parser turns page text into Records.
type Parser struct {
	keys   *KeyCache
	logger *slog.Logger
}

// New returns a parser resolving references through keys. A nil logger
// discards output.
func New(keys *KeyCache, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{keys: keys, logger: logger}
}

// Keys returns the parser's key cache.
func (p *Parser) Keys() *KeyCache { return p.keys }

// Parse reads an editable page of family f. A page without an H1 title
// fails with apperr.ErrMissingKey; every other problem becomes a warning.
func (p *Parser) Parse(ctx context.Context, f model.Family, text string) (*Record, error) {
	if !f.Editable() {
		return nil, fmt.Errorf("pageparser: %s pages are read-only", f)
	}
	page := ParsePage(text)
	if page.Key == "" {
		return nil, apperr.ErrMissingKey
	}
	rec := &Record{
		Family: f,
		Key:    page.Key,
		Fields: store.Fields{},
		Links:  make(map[store.Relation][]LinkTarget),
	}
	rs := &resolver{ctx: ctx, p: p, rec: rec}

	var err error
	switch f {
	case model.FamilyChapter:
		err = parseChapter(rs, page)
	case model.FamilyCharacter:
		err = parseCharacter(rs, page)
	case model.FamilyScene:
		err = parseScene(rs, page)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// metadata applies the editable metadata lines through set. Labels in
// inferred are display-only and skipped.
func metadata(rec *Record, page *Page, inferred []string, set map[string]func(string) error) error {
	for _, fld := range page.Metadata {
		label := strings.ToLower(fld.Label)
		if apply, ok := set[label]; ok {
			if err := apply(fld.Value); err != nil {
				return err
			}
			continue
		}
		if !containsFold(inferred, label) {
			rec.warnf("line %d: unknown field %q ignored", fld.Line, fld.Label)
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// enumField maps a label through table into Fields[column]. Unknown labels
// leave the field unset.
func enumField(rec *Record, column string, table *model.LabelTable) func(string) error {
	return func(v string) error {
		tok, err := table.Token(v)
		if err != nil {
			rec.warnf("%v; %s left unchanged", err, column)
			return nil
		}
		rec.Fields[column] = tok
		return nil
	}
}

func textField(rec *Record, column string) func(string) error {
	return func(v string) error {
		rec.Fields[column] = v
		return nil
	}
}

func parseChapter(rs *resolver, page *Page) error {
	rec := rs.rec
	err := metadata(rec, page, []string{"arc"}, map[string]func(string) error{
		"number": func(v string) error {
			n, err := strconv.Atoi(strings.TrimSuffix(v, "."))
			if err != nil {
				rec.warnf("chapter number %q is not an integer; number left unchanged", v)
				return nil
			}
			rec.Fields["number"] = n
			return nil
		},
		"type":   enumField(rec, "type", model.ChapterTypes),
		"status": enumField(rec, "status", model.ChapterStatuses),
		"part":   textField(rec, "part"),
	})
	if err != nil {
		return err
	}

	if sec, ok := page.Section("Characters"); ok {
		if err := rs.flat(store.RelChapterCharacters, sec.ListItems()); err != nil {
			return err
		}
	}
	if sec, ok := page.Section("References"); ok {
		if err := rs.references(sec.ListItems()); err != nil {
			return err
		}
	}
	if sec, ok := page.Section("Scenes"); ok {
		rec.HasScenes = true
		if err := rs.scenes(sec.Blocks); err != nil {
			return err
		}
	}
	return nil
}

func parseCharacter(rs *resolver, page *Page) error {
	rec := rs.rec
	err := metadata(rec, page, []string{"arc"}, map[string]func(string) error{
		"role": textField(rec, "role"),
	})
	if err != nil {
		return err
	}
	if sec, ok := page.Section("Description"); ok {
		rec.Fields["description"] = sec.Text()
	}
	if sec, ok := page.Section("Based On"); ok {
		if err := rs.portrayals(sec.ListItems()); err != nil {
			return err
		}
	}
	return nil
}

func parseScene(rs *resolver, page *Page) error {
	rec := rs.rec
	err := metadata(rec, page, []string{"arc"}, map[string]func(string) error{
		"origin": enumField(rec, "origin", model.SceneOrigins),
		"chapter": func(v string) error {
			if v == "" {
				rec.OwnerSet, rec.OwnerID = true, 0
				return nil
			}
			id, ok, err := rs.resolve(model.FamilyChapter, v)
			if err != nil || !ok {
				return err
			}
			rec.OwnerSet, rec.OwnerID = true, id
			return nil
		},
	})
	if err != nil {
		return err
	}
	if sec, ok := page.Section("Description"); ok {
		rec.Fields["description"] = sec.Text()
	}
	if sec, ok := page.Section("Sources"); ok {
		if err := rs.flat(store.RelSceneSources, sec.ListItems()); err != nil {
			return err
		}
	}
	return nil
}

// resolver resolves the references of one page. Unresolved references are
// dropped with a debug log and a warning.
type resolver struct {
	ctx context.Context
	p   *Parser
	rec *Record
}

func (rs *resolver) resolve(f model.Family, text string) (int64, bool, error) {
	keys, err := rs.p.keys.GetOrBuild(rs.ctx, f)
	if err != nil {
		return 0, false, err
	}
	link, _ := splitRef(text)
	if link.Target == "" {
		return 0, false, nil
	}
	id, ok := keys.Resolve(link.Target, link.Alias)
	if !ok {
		rs.p.logger.Debug("pageparser: unresolved reference",
			slog.String("page", rs.rec.Key),
			slog.String("family", f.String()),
			slog.String("target", link.Display()),
		)
		rs.rec.warnf("unresolved %s reference %q dropped", f, link.Display())
	}
	return id, ok, nil
}

// add appends a target unless an identical one is already present.
func (rs *resolver) add(rel store.Relation, t LinkTarget) {
	for _, have := range rs.rec.Links[rel] {
		if have.ID == t.ID && fmt.Sprint(have.Extra) == fmt.Sprint(t.Extra) {
			return
		}
	}
	rs.rec.Links[rel] = append(rs.rec.Links[rel], t)
}

func (rs *resolver) flat(rel store.Relation, items []string) error {
	rs.rec.Links[rel] = []LinkTarget{}
	for _, item := range items {
		id, ok, err := rs.resolve(rel.Target(), item)
		if err != nil {
			return err
		}
		if ok {
			rs.add(rel, LinkTarget{ID: id})
		}
	}
	return nil
}

var qualifier = regexp.MustCompile(`\(([^()]*)\)\s*$`)

// portrayals reads "- [[Person]] (Contribution)" pairs.
func (rs *resolver) portrayals(items []string) error {
	rel := store.RelCharacterPeople
	rs.rec.Links[rel] = []LinkTarget{}
	for _, item := range items {
		contribution := "primary"
		if loc := qualifier.FindStringSubmatchIndex(item); loc != nil {
			label := strings.TrimSpace(item[loc[2]:loc[3]])
			item = strings.TrimSpace(item[:loc[0]])
			if label != "" {
				tok, err := model.Contributions.Token(label)
				if err != nil {
					rs.rec.warnf("%v; contribution defaults to primary", err)
				} else {
					contribution = tok
				}
			}
		}
		id, ok, err := rs.resolve(model.FamilyPerson, item)
		if err != nil {
			return err
		}
		if ok {
			rs.add(rel, LinkTarget{ID: id, Extra: []any{contribution}})
		}
	}
	return nil
}

// references reads "- [[date]] · Mode · "quote"" triples. Mode and quote
// are optional.
func (rs *resolver) references(items []string) error {
	rel := store.RelChapterReferences
	rs.rec.Links[rel] = []LinkTarget{}
	for _, item := range items {
		parts := strings.SplitN(item, "·", 3)
		mode := "direct"
		if len(parts) > 1 {
			if label := strings.TrimSpace(parts[1]); label != "" {
				tok, err := model.ReferenceModes.Token(label)
				if err != nil {
					rs.rec.warnf("%v; mode defaults to direct", err)
				} else {
					mode = tok
				}
			}
		}
		quote := ""
		if len(parts) > 2 {
			quote = unquote(parts[2])
		}
		id, ok, err := rs.resolve(model.FamilyEntry, parts[0])
		if err != nil {
			return err
		}
		if ok {
			rs.add(rel, LinkTarget{ID: id, Extra: []any{mode, quote}})
		}
	}
	return nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}

// sourceStart returns the index where the trailing run of source items of a
// scene block begins. Only list items made of a single link marker or a
// bare date count as sources; any other line, bullets included, belongs to
// the description.
func sourceStart(lines []Line) int {
	cut := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i].Text)
		if t == "" {
			continue
		}
		item, ok := listItem(t)
		if !ok || !isSourceItem(item) {
			break
		}
		cut = i
	}
	return cut
}

var bareDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// isSourceItem reports whether s is exactly one "[[...]]" marker or a bare
// entry date.
func isSourceItem(s string) bool {
	if bareDate.MatchString(s) {
		return true
	}
	loc := linkPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// scenes reads the "### Name" blocks of a chapter's Scenes section.
func (rs *resolver) scenes(blocks []Block) error {
	for _, b := range blocks {
		id, ok, err := rs.resolve(model.FamilyScene, b.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		sb := SceneBlock{ID: id, Name: b.Name, Sources: []int64{}}
		cut := sourceStart(b.Lines)
		text := b.Lines[:cut]
		for _, l := range b.Lines[cut:] {
			item, isItem := listItem(l.Text)
			if !isItem {
				continue
			}
			src, ok, err := rs.resolve(model.FamilyEntry, item)
			if err != nil {
				return err
			}
			if ok && !model.ContainsID(sb.Sources, src) {
				sb.Sources = append(sb.Sources, src)
			}
		}
		sb.Description = freeText(text)
		rs.rec.Scenes = append(rs.rec.Scenes, sb)
	}
	return nil
}
