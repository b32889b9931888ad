// Package wikictx turns entity-graph nodes into flat value trees for the page
// templates. Every list it emits has an explicit sort order so that rendering
// unchanged data yields byte-identical pages.
package wikictx

import (
	"sort"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Builder builds page contexts for one generator run. It is not safe for
// concurrent use.
type Builder struct {
	g     *model.Graph
	lk    *Lookup
	cache *Cache
}

// NewBuilder returns a builder over g. The lookup may still be empty; it must
// be complete before the first Build call.
func NewBuilder(g *model.Graph, lk *Lookup) *Builder {
	return &Builder{g: g, lk: lk, cache: NewCache(g)}
}

// Graph returns the graph the builder reads.
func (b *Builder) Graph() *model.Graph { return b.g }

// Cache returns the per-run join cache.
func (b *Builder) Cache() *Cache { return b.cache }

// Cache memoizes the entry joins of one graph snapshot.
type Cache struct {
	g       *model.Graph
	linked  map[model.Family]map[int64][]*model.Entry
	chapter map[int64][]int64
}

func NewCache(g *model.Graph) *Cache {
	return &Cache{g: g}
}

func (c *Cache) build() {
	c.linked = map[model.Family]map[int64][]*model.Entry{
		model.FamilyPerson:   {},
		model.FamilyLocation: {},
		model.FamilyCity:     {},
		model.FamilyTag:      {},
		model.FamilyTheme:    {},
		model.FamilyArc:      {},
	}
	add := func(f model.Family, ids []int64, e *model.Entry) {
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			c.linked[f][id] = append(c.linked[f][id], e)
		}
	}
	for _, e := range c.g.Entries {
		add(model.FamilyPerson, e.PersonIDs, e)
		add(model.FamilyLocation, e.LocationIDs, e)
		add(model.FamilyTag, e.TagIDs, e)
		add(model.FamilyTheme, e.ThemeIDs, e)
		add(model.FamilyArc, e.ArcIDs, e)
		add(model.FamilyCity, c.citiesOf(e), e)
	}
}

func (c *Cache) citiesOf(e *model.Entry) []int64 {
	var out []int64
	for _, id := range e.LocationIDs {
		if l := c.g.Location(id); l != nil {
			out = append(out, l.CityID)
		}
	}
	return out
}

// EntriesOf returns the entries linked to an entity, in date order.
func (c *Cache) EntriesOf(f model.Family, id int64) []*model.Entry {
	if c.linked == nil {
		c.build()
	}
	return c.linked[f][id]
}

// ChapterEntries returns the ids of the entries a chapter draws on: its
// references plus the sources of its scenes, ascending.
func (c *Cache) ChapterEntries(chapterID int64) []int64 {
	if c.chapter == nil {
		c.chapter = make(map[int64][]int64)
	}
	if ids, ok := c.chapter[chapterID]; ok {
		return ids
	}
	set := make(map[int64]struct{})
	if ch := c.g.Chapter(chapterID); ch != nil {
		for _, r := range ch.References {
			set[r.EntryID] = struct{}{}
		}
	}
	for _, s := range c.g.ScenesOf(chapterID) {
		for _, id := range s.SourceIDs {
			set[id] = struct{}{}
		}
	}
	ids := sortedIDs(set)
	c.chapter[chapterID] = ids
	return ids
}

// CharacterEntries returns the union of the entry sets of every chapter the
// character appears in.
func (c *Cache) CharacterEntries(characterID int64) []int64 {
	set := make(map[int64]struct{})
	for _, ch := range c.g.ChaptersWith(characterID) {
		for _, id := range c.ChapterEntries(ch.ID) {
			set[id] = struct{}{}
		}
	}
	return sortedIDs(set)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InferArc returns the arc an item belongs to: the first arc, in name order,
// sharing at least one entry with ids.
func (b *Builder) InferArc(ids []int64) *model.Arc {
	arc, ok := InferGroup(b.g.Arcs, func(a *model.Arc) []int64 {
		return entryIDs(b.cache.EntriesOf(model.FamilyArc, a.ID))
	}, ids)
	if !ok {
		return nil
	}
	return arc
}

func entryIDs(entries []*model.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func (b *Builder) ref(f model.Family, e model.Entity) Ref {
	if e == nil {
		return Ref{}
	}
	return b.lk.Ref(f, e.Key())
}

func (b *Builder) entryRef(e *model.Entry) Ref {
	return b.ref(model.FamilyEntry, e)
}

// refByID resolves an id of family f; unknown ids yield a zero Ref.
func (b *Builder) refByID(f model.Family, id int64) Ref {
	var e model.Entity
	switch f {
	case model.FamilyEntry:
		if v := b.g.Entry(id); v != nil {
			e = v
		}
	case model.FamilyPerson:
		if v := b.g.Person(id); v != nil {
			e = v
		}
	case model.FamilyLocation:
		if v := b.g.Location(id); v != nil {
			e = v
		}
	case model.FamilyCity:
		if v := b.g.City(id); v != nil {
			e = v
		}
	case model.FamilyTag:
		if v := b.g.Tag(id); v != nil {
			e = v
		}
	case model.FamilyTheme:
		if v := b.g.Theme(id); v != nil {
			e = v
		}
	case model.FamilyArc:
		if v := b.g.Arc(id); v != nil {
			e = v
		}
	case model.FamilyChapter:
		if v := b.g.Chapter(id); v != nil {
			e = v
		}
	case model.FamilyCharacter:
		if v := b.g.Character(id); v != nil {
			e = v
		}
	case model.FamilyScene:
		if v := b.g.Scene(id); v != nil {
			e = v
		}
	}
	return b.ref(f, e)
}

// refs resolves ids and sorts them by key. Entries sort chronologically
// because their keys are ISO dates.
func (b *Builder) refs(f model.Family, ids []int64) []Ref {
	out := make([]Ref, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r := b.refByID(f, id); !r.IsZero() {
			out = append(out, r)
		}
	}
	sortRefs(out)
	return out
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool {
		ki, kj := strings.ToLower(refs[i].Key), strings.ToLower(refs[j].Key)
		if ki != kj {
			return ki < kj
		}
		return refs[i].Key < refs[j].Key
	})
}

// notSelf keeps every person except the narrator and skip.
func (b *Builder) notSelf(skip int64) func(int64) bool {
	return func(id int64) bool {
		p := b.g.Person(id)
		return p != nil && !p.IsSelf() && id != skip
	}
}

func notID(skip int64) func(int64) bool {
	return func(id int64) bool { return id != skip }
}

// Aggregates are the entry-derived statistics shared by journal pages.
type Aggregates struct {
	Tier      Tier
	Count     int
	First     Ref
	Last      Ref
	Entries   []Ref
	Listing   []YearGroup
	Timeline  []MonthCount
	People    []Count
	Tags      []Count
	Themes    []Count
	Locations []Count
}

// aggregate computes the tiered statistics of an entity of family f linked to
// entries (date order). The entity itself is excluded from its own family's
// companion list.
func (b *Builder) aggregate(f model.Family, id int64, entries []*model.Entry) Aggregates {
	a := Aggregates{Tier: TierFor(len(entries)), Count: len(entries)}
	if len(entries) == 0 {
		return a
	}
	a.First = b.entryRef(entries[0])
	a.Last = b.entryRef(entries[len(entries)-1])

	if a.Tier == TierFull {
		a.Listing = Listing(entries, b.entryRef)
	} else {
		a.Entries = make([]Ref, len(entries))
		for i, e := range entries {
			a.Entries[i] = b.entryRef(e)
		}
	}
	if a.Tier == TierMinimal {
		return a
	}

	a.Timeline = Timeline(entries)

	skip := func(fam model.Family) int64 {
		if fam == f {
			return id
		}
		return 0
	}
	people := Cooccurrence(entries, func(e *model.Entry) []int64 { return e.PersonIDs }, b.notSelf(skip(model.FamilyPerson)))
	a.People = Ranked(people, func(id int64) Ref { return b.refByID(model.FamilyPerson, id) }, 0)
	tags := Cooccurrence(entries, func(e *model.Entry) []int64 { return e.TagIDs }, notID(skip(model.FamilyTag)))
	a.Tags = Ranked(tags, func(id int64) Ref { return b.refByID(model.FamilyTag, id) }, 0)
	themes := Cooccurrence(entries, func(e *model.Entry) []int64 { return e.ThemeIDs }, notID(skip(model.FamilyTheme)))
	a.Themes = Ranked(themes, func(id int64) Ref { return b.refByID(model.FamilyTheme, id) }, 0)

	if a.Tier == TierFull {
		locs := CountCompanions(entries, func(e *model.Entry) []int64 { return e.LocationIDs }, notID(skip(model.FamilyLocation)))
		a.Locations = Ranked(locs, func(id int64) Ref { return b.refByID(model.FamilyLocation, id) }, TopLocations)
	}
	return a
}
