package wikictx

import (
	"sort"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// SceneBlock is a scene nested in its chapter page.
type SceneBlock struct {
	Name        string
	Description string
	Sources     []Ref
}

// ReferenceLine is one chapter reference to a journal entry.
type ReferenceLine struct {
	Entry Ref
	Mode  string
	Quote string
}

type ChapterPage struct {
	Key         string
	Number      int
	Type        string
	Status      string
	Part        string
	Arc         Ref
	Characters  []Ref
	Scenes      []SceneBlock
	References  []ReferenceLine
	SourceCount int
	FirstSource Ref
	LastSource  Ref
}

// BuildChapter builds a chapter page. Its arc is inferred from the entries
// it draws on.
func (b *Builder) BuildChapter(c *model.Chapter) ChapterPage {
	p := ChapterPage{
		Key:        c.Title,
		Number:     c.Number,
		Type:       model.ChapterTypes.LabelOr(c.Type, c.Type),
		Status:     model.ChapterStatuses.LabelOr(c.Status, c.Status),
		Part:       c.Part,
		Characters: b.refs(model.FamilyCharacter, c.CharacterIDs),
	}

	ids := b.cache.ChapterEntries(c.ID)
	if arc := b.InferArc(ids); arc != nil {
		p.Arc = b.ref(model.FamilyArc, arc)
	}
	if sources := b.refs(model.FamilyEntry, ids); len(sources) > 0 {
		p.SourceCount = len(sources)
		p.FirstSource = sources[0]
		p.LastSource = sources[len(sources)-1]
	}

	for _, s := range b.g.ScenesOf(c.ID) {
		p.Scenes = append(p.Scenes, SceneBlock{
			Name:        s.Name,
			Description: model.CleanText(s.Description),
			Sources:     b.refs(model.FamilyEntry, s.SourceIDs),
		})
	}

	for _, r := range c.References {
		entry := b.refByID(model.FamilyEntry, r.EntryID)
		if entry.IsZero() {
			continue
		}
		p.References = append(p.References, ReferenceLine{
			Entry: entry,
			Mode:  model.ReferenceModes.LabelOr(r.Mode, r.Mode),
			Quote: model.SingleLine(r.Quote),
		})
	}
	sort.SliceStable(p.References, func(i, j int) bool {
		x, y := p.References[i], p.References[j]
		if x.Entry.Key != y.Entry.Key {
			return x.Entry.Key < y.Entry.Key
		}
		if x.Mode != y.Mode {
			return x.Mode < y.Mode
		}
		return x.Quote < y.Quote
	})
	return p
}

// PortrayalLine is one "based on" person of a character.
type PortrayalLine struct {
	Person       Ref
	Contribution string
}

type CharacterPage struct {
	Key         string
	Role        string
	Description string
	Arc         Ref
	BasedOn     []PortrayalLine
	Chapters    []Ref
}

func (b *Builder) BuildCharacter(c *model.Character) CharacterPage {
	p := CharacterPage{
		Key:         c.Name,
		Role:        c.Role,
		Description: model.CleanText(c.Description),
	}
	if arc := b.InferArc(b.cache.CharacterEntries(c.ID)); arc != nil {
		p.Arc = b.ref(model.FamilyArc, arc)
	}
	for _, bo := range c.BasedOn {
		person := b.refByID(model.FamilyPerson, bo.PersonID)
		if person.IsZero() {
			continue
		}
		p.BasedOn = append(p.BasedOn, PortrayalLine{
			Person:       person,
			Contribution: model.Contributions.LabelOr(bo.Contribution, bo.Contribution),
		})
	}
	sort.SliceStable(p.BasedOn, func(i, j int) bool {
		return strings.ToLower(p.BasedOn[i].Person.Key) < strings.ToLower(p.BasedOn[j].Person.Key)
	})

	chapters := b.g.ChaptersWith(c.ID)
	for _, ch := range chapters {
		p.Chapters = append(p.Chapters, b.ref(model.FamilyChapter, ch))
	}
	return p
}

type ScenePage struct {
	Key         string
	Origin      string
	Chapter     Ref
	Arc         Ref
	Description string
	Sources     []Ref
}

func (b *Builder) BuildScene(s *model.Scene) ScenePage {
	p := ScenePage{
		Key:         s.Name,
		Origin:      model.SceneOrigins.LabelOr(s.Origin, s.Origin),
		Description: model.CleanText(s.Description),
		Sources:     b.refs(model.FamilyEntry, s.SourceIDs),
	}
	if s.ChapterID != 0 {
		p.Chapter = b.refByID(model.FamilyChapter, s.ChapterID)
	}
	if arc := b.InferArc(s.SourceIDs); arc != nil {
		p.Arc = b.ref(model.FamilyArc, arc)
	}
	return p
}
