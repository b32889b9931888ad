package wikictx

import (
	"sort"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// PlaceRef is a location together with its city.
type PlaceRef struct {
	Location Ref
	City     Ref
}

type EntryPage struct {
	Key       string
	Date      string
	WordCount int
	Summary   string
	People    []Ref
	Locations []PlaceRef
	Tags      []Ref
	Themes    []Ref
	Arcs      []Ref
	Chapters  []Ref
	Scenes    []Ref
	Prev      Ref
	Next      Ref
}

// BuildEntry builds the page of one journal entry.
func (b *Builder) BuildEntry(e *model.Entry) EntryPage {
	p := EntryPage{
		Key:       e.Key(),
		Date:      e.Date.Format("Monday, January 2, 2006"),
		WordCount: e.WordCount,
		Summary:   model.CleanText(e.Summary),
		People:    b.refs(model.FamilyPerson, e.PersonIDs),
		Tags:      b.refs(model.FamilyTag, e.TagIDs),
		Themes:    b.refs(model.FamilyTheme, e.ThemeIDs),
		Arcs:      b.refs(model.FamilyArc, e.ArcIDs),
	}

	for _, loc := range b.refs(model.FamilyLocation, e.LocationIDs) {
		pr := PlaceRef{Location: loc}
		if l := b.locationByKey(loc.Key); l != nil {
			pr.City = b.refByID(model.FamilyCity, l.CityID)
		}
		p.Locations = append(p.Locations, pr)
	}

	var chapters []int64
	for _, c := range b.g.Chapters {
		for _, r := range c.References {
			if r.EntryID == e.ID {
				chapters = append(chapters, c.ID)
				break
			}
		}
	}
	p.Chapters = b.refs(model.FamilyChapter, chapters)

	var scenes []int64
	for _, s := range b.g.Scenes {
		if model.ContainsID(s.SourceIDs, e.ID) {
			scenes = append(scenes, s.ID)
		}
	}
	p.Scenes = b.refs(model.FamilyScene, scenes)

	for i, other := range b.g.Entries {
		if other.ID != e.ID {
			continue
		}
		if i > 0 {
			p.Prev = b.entryRef(b.g.Entries[i-1])
		}
		if i < len(b.g.Entries)-1 {
			p.Next = b.entryRef(b.g.Entries[i+1])
		}
		break
	}
	return p
}

func (b *Builder) locationByKey(key string) *model.Location {
	for _, l := range b.g.Locations {
		if strings.EqualFold(l.Name, key) {
			return l
		}
	}
	return nil
}

type PersonPage struct {
	Key        string
	FullName   string
	Relation   string
	Agg        Aggregates
	Characters []Ref
}

// BuildPerson builds the page of one person. The narrator's page carries no
// companion statistics about itself.
func (b *Builder) BuildPerson(p *model.Person) PersonPage {
	page := PersonPage{
		Key:      p.Name,
		FullName: p.FullName,
		Relation: model.Relations.LabelOr(p.Relation, p.Relation),
		Agg:      b.aggregate(model.FamilyPerson, p.ID, b.cache.EntriesOf(model.FamilyPerson, p.ID)),
	}
	var chars []int64
	for _, c := range b.g.Characters {
		for _, bo := range c.BasedOn {
			if bo.PersonID == p.ID {
				chars = append(chars, c.ID)
				break
			}
		}
	}
	page.Characters = b.refs(model.FamilyCharacter, chars)
	return page
}

type LocationPage struct {
	Key  string
	City Ref
	Agg  Aggregates
}

func (b *Builder) BuildLocation(l *model.Location) LocationPage {
	return LocationPage{
		Key:  l.Name,
		City: b.refByID(model.FamilyCity, l.CityID),
		Agg:  b.aggregate(model.FamilyLocation, l.ID, b.cache.EntriesOf(model.FamilyLocation, l.ID)),
	}
}

type CityPage struct {
	Key       string
	Country   string
	Locations []Count
	Agg       Aggregates
}

// BuildCity builds a city page; its locations are ranked by entry count.
func (b *Builder) BuildCity(c *model.City) CityPage {
	counts := make(map[int64]int)
	for _, l := range b.g.LocationsIn(c.ID) {
		counts[l.ID] = len(b.cache.EntriesOf(model.FamilyLocation, l.ID))
	}
	return CityPage{
		Key:       c.Name,
		Country:   c.Country,
		Locations: Ranked(counts, func(id int64) Ref { return b.refByID(model.FamilyLocation, id) }, 0),
		Agg:       b.aggregate(model.FamilyCity, c.ID, b.cache.EntriesOf(model.FamilyCity, c.ID)),
	}
}

// TermPage is the page of a tag or a theme.
type TermPage struct {
	Key  string
	Kind string
	Agg  Aggregates
}

func (b *Builder) BuildTag(t *model.Tag) TermPage {
	return TermPage{
		Key:  t.Name,
		Kind: "Tag",
		Agg:  b.aggregate(model.FamilyTag, t.ID, b.cache.EntriesOf(model.FamilyTag, t.ID)),
	}
}

func (b *Builder) BuildTheme(t *model.Theme) TermPage {
	return TermPage{
		Key:  t.Name,
		Kind: "Theme",
		Agg:  b.aggregate(model.FamilyTheme, t.ID, b.cache.EntriesOf(model.FamilyTheme, t.ID)),
	}
}

type ArcPage struct {
	Key         string
	Description string
	Agg         Aggregates
	Chapters    []Ref
	Characters  []Ref
	Scenes      []Ref
}

// BuildArc builds an arc page. Its manuscript members are the chapters,
// characters and scenes whose inferred arc is this one.
func (b *Builder) BuildArc(a *model.Arc) ArcPage {
	page := ArcPage{
		Key:         a.Name,
		Description: model.CleanText(a.Description),
		Agg:         b.aggregate(model.FamilyArc, a.ID, b.cache.EntriesOf(model.FamilyArc, a.ID)),
	}
	var chapters, characters, scenes []int64
	for _, c := range b.g.Chapters {
		if inferred := b.InferArc(b.cache.ChapterEntries(c.ID)); inferred != nil && inferred.ID == a.ID {
			chapters = append(chapters, c.ID)
		}
	}
	for _, c := range b.g.Characters {
		if inferred := b.InferArc(b.cache.CharacterEntries(c.ID)); inferred != nil && inferred.ID == a.ID {
			characters = append(characters, c.ID)
		}
	}
	for _, s := range b.g.Scenes {
		if inferred := b.InferArc(s.SourceIDs); inferred != nil && inferred.ID == a.ID {
			scenes = append(scenes, s.ID)
		}
	}
	page.Chapters = b.refs(model.FamilyChapter, chapters)
	page.Characters = b.refs(model.FamilyCharacter, characters)
	page.Scenes = b.refs(model.FamilyScene, scenes)
	return page
}

// Visible reports whether an entity gets a page. Journal vocabulary (tags,
// themes, locations, cities) needs at least one linked entry; everything else
// is always visible.
func (b *Builder) Visible(f model.Family, e model.Entity) bool {
	switch f {
	case model.FamilyTag, model.FamilyTheme, model.FamilyLocation, model.FamilyCity:
		return len(b.cache.EntriesOf(f, e.EntityID())) > 0
	}
	return true
}

// relationOrder sorts relation tokens in table order, unknown ones last.
func relationOrder(tokens []string) {
	rank := make(map[string]int)
	for i, t := range model.Relations.Tokens() {
		rank[t] = i + 1
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		ri, rj := rank[tokens[i]], rank[tokens[j]]
		if ri == 0 {
			ri = len(rank) + 1
		}
		if rj == 0 {
			rj = len(rank) + 1
		}
		if ri != rj {
			return ri < rj
		}
		return tokens[i] < tokens[j]
	})
}
