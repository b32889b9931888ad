package wiki

import (
	"fmt"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/slug"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikictx"
)

// DefaultRegistry returns the registry of the built-in page layout.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(DefaultDescriptors()...)
}

// DefaultDescriptors describes the built-in page layout.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Family:   model.FamilyEntry,
			Template: "entry",
			Path: func(_ *model.Graph, e model.Entity) string {
				key := e.Key()
				return fmt.Sprintf("%s/%s/%s.md", model.FamilyEntry.Dir(), key[:4], key)
			},
			Build: func(b *wikictx.Builder, e model.Entity) any { return b.BuildEntry(e.(*model.Entry)) },
			Index: &IndexPage{
				Path:     "journal/entries.md",
				Template: "entries_index",
				Build:    func(b *wikictx.Builder) any { return b.BuildEntryIndex() },
			},
		},
		{
			Family:   model.FamilyPerson,
			Template: "person",
			Path:     slugPath(model.FamilyPerson),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildPerson(e.(*model.Person)) },
			Index: &IndexPage{
				Path:     "journal/people.md",
				Template: "people_index",
				Build:    func(b *wikictx.Builder) any { return b.BuildPeopleIndex() },
			},
		},
		{
			Family:   model.FamilyLocation,
			Template: "location",
			Path: func(g *model.Graph, e model.Entity) string {
				city := "unknown"
				if c := g.City(e.(*model.Location).CityID); c != nil {
					city = slugOf(model.FamilyCity, c)
				}
				return fmt.Sprintf("%s/%s/%s.md", model.FamilyLocation.Dir(), city, slugOf(model.FamilyLocation, e))
			},
			Build:   func(b *wikictx.Builder, e model.Entity) any { return b.BuildLocation(e.(*model.Location)) },
			Visible: visibleWithEntries(model.FamilyLocation),
			Index: &IndexPage{
				Path:     "journal/locations.md",
				Template: "locations_index",
				Build:    func(b *wikictx.Builder) any { return b.BuildLocationIndex() },
			},
		},
		{
			Family:   model.FamilyCity,
			Template: "city",
			Path:     slugPath(model.FamilyCity),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildCity(e.(*model.City)) },
			Visible:  visibleWithEntries(model.FamilyCity),
		},
		{
			Family:   model.FamilyTag,
			Template: "term",
			Path:     slugPath(model.FamilyTag),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildTag(e.(*model.Tag)) },
			Visible:  visibleWithEntries(model.FamilyTag),
		},
		{
			Family:   model.FamilyTheme,
			Template: "term",
			Path:     slugPath(model.FamilyTheme),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildTheme(e.(*model.Theme)) },
			Visible:  visibleWithEntries(model.FamilyTheme),
		},
		{
			Family:   model.FamilyArc,
			Template: "arc",
			Path:     slugPath(model.FamilyArc),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildArc(e.(*model.Arc)) },
		},
		{
			Family:   model.FamilyChapter,
			Template: "chapter",
			Path:     slugPath(model.FamilyChapter),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildChapter(e.(*model.Chapter)) },
			Index: &IndexPage{
				Path:     "manuscript/chapters.md",
				Template: "chapters_index",
				Build:    func(b *wikictx.Builder) any { return b.BuildChapterIndex() },
			},
		},
		{
			Family:   model.FamilyCharacter,
			Template: "character",
			Path:     slugPath(model.FamilyCharacter),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildCharacter(e.(*model.Character)) },
		},
		{
			Family:   model.FamilyScene,
			Template: "scene",
			Path:     slugPath(model.FamilyScene),
			Build:    func(b *wikictx.Builder, e model.Entity) any { return b.BuildScene(e.(*model.Scene)) },
		},
	}
}

func slugPath(f model.Family) func(*model.Graph, model.Entity) string {
	return func(_ *model.Graph, e model.Entity) string {
		return f.Dir() + "/" + slugOf(f, e) + ".md"
	}
}

// slugOf falls back to family and id when the key has no letters or digits.
func slugOf(f model.Family, e model.Entity) string {
	if s := slug.Make(e.Key()); s != "" {
		return s
	}
	return fmt.Sprintf("%s-%d", f, e.EntityID())
}

func visibleWithEntries(f model.Family) func(*wikictx.Builder, model.Entity) bool {
	return func(b *wikictx.Builder, e model.Entity) bool { return b.Visible(f, e) }
}
