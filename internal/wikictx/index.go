package wikictx

import (
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Group is a titled list of counted references on an index page.
type Group struct {
	Title Ref
	Items []Count
}

type EntryIndexPage struct {
	Count   int
	Listing []YearGroup
}

// BuildEntryIndex lists every entry hierarchically.
func (b *Builder) BuildEntryIndex() EntryIndexPage {
	return EntryIndexPage{
		Count:   len(b.g.Entries),
		Listing: Listing(b.g.Entries, b.entryRef),
	}
}

type PeopleIndexPage struct {
	Count  int
	Groups []Group
}

// BuildPeopleIndex groups people by relation in table order; within a group
// people are ranked by entry count.
func (b *Builder) BuildPeopleIndex() PeopleIndexPage {
	byRelation := make(map[string]map[int64]int)
	for _, p := range b.g.People {
		if byRelation[p.Relation] == nil {
			byRelation[p.Relation] = make(map[int64]int)
		}
		byRelation[p.Relation][p.ID] = len(b.cache.EntriesOf(model.FamilyPerson, p.ID))
	}
	relations := make([]string, 0, len(byRelation))
	for r := range byRelation {
		relations = append(relations, r)
	}
	relationOrder(relations)

	page := PeopleIndexPage{Count: len(b.g.People)}
	for _, r := range relations {
		page.Groups = append(page.Groups, Group{
			Title: Ref{Key: model.Relations.LabelOr(r, r)},
			Items: Ranked(byRelation[r], func(id int64) Ref { return b.refByID(model.FamilyPerson, id) }, 0),
		})
	}
	return page
}

type LocationIndexPage struct {
	Count  int
	Groups []Group
}

// BuildLocationIndex groups visible locations under their city, cities in
// name order.
func (b *Builder) BuildLocationIndex() LocationIndexPage {
	page := LocationIndexPage{}
	for _, c := range b.g.Cities {
		counts := make(map[int64]int)
		for _, l := range b.g.LocationsIn(c.ID) {
			if n := len(b.cache.EntriesOf(model.FamilyLocation, l.ID)); n > 0 {
				counts[l.ID] = n
			}
		}
		if len(counts) == 0 {
			continue
		}
		page.Count += len(counts)
		page.Groups = append(page.Groups, Group{
			Title: b.ref(model.FamilyCity, c),
			Items: Ranked(counts, func(id int64) Ref { return b.refByID(model.FamilyLocation, id) }, 0),
		})
	}
	return page
}

// ChapterRow is one line of the chapter index.
type ChapterRow struct {
	Number int
	Ref    Ref
	Type   string
	Status string
	Part   string
}

type ChapterIndexPage struct {
	Chapters []ChapterRow
}

// BuildChapterIndex lists chapters in manuscript order.
func (b *Builder) BuildChapterIndex() ChapterIndexPage {
	page := ChapterIndexPage{}
	for _, c := range b.g.Chapters {
		page.Chapters = append(page.Chapters, ChapterRow{
			Number: c.Number,
			Ref:    b.ref(model.FamilyChapter, c),
			Type:   model.ChapterTypes.LabelOr(c.Type, c.Type),
			Status: model.ChapterStatuses.LabelOr(c.Status, c.Status),
			Part:   c.Part,
		})
	}
	return page
}
