// Package testutil provides shared test helpers for setting up wiki trees
// and seeded databases.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
	"github.com/soffiafdz/palimpsest-sub000/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "palimpsest-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWiki creates a temporary output root with a storage.Provider.
func TestWiki(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, files
}

// Fixture holds the ids of the seeded memoir.
type Fixture struct {
	Entries   []int64 // 2024-01-01, 2024-01-02, 2024-01-05, 2024-02-10
	Me        int64
	Maria     int64
	Lucia     int64
	Vienna    int64
	Cafe      int64 // linked to an entry
	Station   int64 // Westbahnhof, linked to nothing
	Rain      int64
	Unused    int64 // tag with no entries
	Departure int64
	Leaving   int64
	Chapter   int64 // "The Station"
	Clara     int64
	Platform  int64 // scene owned by Chapter
	LooseEnds int64 // scene without a chapter
}

// Paths of fixture pages that tests poke at.
const (
	ChapterPath   = "manuscript/chapters/the-station.md"
	CharacterPath = "manuscript/characters/clara.md"
	ScenePath     = "manuscript/scenes/platform.md"
	EntryPath     = "journal/entries/2024/2024-01-01.md"
)

// Seed fills db with a small memoir: four entries, three people, one city,
// one arc and a chapter with a character and two scenes.
func Seed(t *testing.T, db *store.DB) Fixture {
	t.Helper()
	ctx := context.Background()
	insert := func(f model.Family, fields store.Fields) int64 {
		t.Helper()
		id, err := db.Insert(ctx, f, fields)
		if err != nil {
			t.Fatalf("seed %s: %v", f, err)
		}
		return id
	}
	link := func(rel store.Relation, owner, target int64, extra ...any) {
		t.Helper()
		if err := db.Link(ctx, rel, owner, target, extra...); err != nil {
			t.Fatalf("seed %s: %v", rel, err)
		}
	}

	var fx Fixture
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-05", "2024-02-10"} {
		fx.Entries = append(fx.Entries, insert(model.FamilyEntry, store.Fields{
			"date": d, "word_count": 500, "summary": "Notes from " + d + ".",
		}))
	}
	fx.Me = insert(model.FamilyPerson, store.Fields{"name": "Me", "relation": "self"})
	fx.Maria = insert(model.FamilyPerson, store.Fields{"name": "Maria", "full_name": "Maria Weber", "relation": "friend"})
	fx.Lucia = insert(model.FamilyPerson, store.Fields{"name": "Lucia", "relation": "family"})
	fx.Vienna = insert(model.FamilyCity, store.Fields{"name": "Vienna", "country": "Austria"})
	fx.Cafe = insert(model.FamilyLocation, store.Fields{"name": "Café Central", "city_id": fx.Vienna})
	fx.Station = insert(model.FamilyLocation, store.Fields{"name": "Westbahnhof", "city_id": fx.Vienna})
	fx.Rain = insert(model.FamilyTag, store.Fields{"name": "rain"})
	fx.Unused = insert(model.FamilyTag, store.Fields{"name": "unused"})
	fx.Departure = insert(model.FamilyTheme, store.Fields{"name": "departure"})
	fx.Leaving = insert(model.FamilyArc, store.Fields{"name": "Leaving", "description": "The months before the move."})
	fx.Chapter = insert(model.FamilyChapter, store.Fields{"title": "The Station", "number": 1, "type": "prose", "status": "draft"})
	fx.Clara = insert(model.FamilyCharacter, store.Fields{"name": "Clara", "role": "protagonist", "description": "Restless.\n\n\n    She counts the trains."})
	fx.Platform = insert(model.FamilyScene, store.Fields{
		"name": "Platform", "chapter_id": fx.Chapter, "origin": "journaled", "description": "Rain on the rails.",
	})
	fx.LooseEnds = insert(model.FamilyScene, store.Fields{"name": "Loose Ends", "origin": "invented"})

	for _, e := range fx.Entries {
		link(store.RelEntryPeople, e, fx.Me)
	}
	link(store.RelEntryPeople, fx.Entries[0], fx.Maria)
	link(store.RelEntryPeople, fx.Entries[1], fx.Maria)
	link(store.RelEntryPeople, fx.Entries[3], fx.Lucia)
	link(store.RelEntryLocations, fx.Entries[0], fx.Cafe)
	link(store.RelEntryTags, fx.Entries[1], fx.Rain)
	link(store.RelEntryThemes, fx.Entries[2], fx.Departure)
	link(store.RelEntryArcs, fx.Entries[0], fx.Leaving)
	link(store.RelEntryArcs, fx.Entries[1], fx.Leaving)

	link(store.RelChapterCharacters, fx.Chapter, fx.Clara)
	link(store.RelChapterReferences, fx.Chapter, fx.Entries[0], "direct", "the last\ntrain")
	link(store.RelCharacterPeople, fx.Clara, fx.Maria, "primary")
	link(store.RelSceneSources, fx.Platform, fx.Entries[1])
	return fx
}
