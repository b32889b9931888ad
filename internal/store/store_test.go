package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "palimpsest-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustInsert(t *testing.T, db *DB, f model.Family, fields Fields) int64 {
	t.Helper()
	id, err := db.Insert(context.Background(), f, fields)
	if err != nil {
		t.Fatalf("Insert %s: %v", f, err)
	}
	return id
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"entries", "chapters", "scene_sources", "generated_files"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestLoadGraph(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	e1 := mustInsert(t, db, model.FamilyEntry, Fields{"date": "2024-03-05", "word_count": 800})
	e2 := mustInsert(t, db, model.FamilyEntry, Fields{"date": "2024-03-01"})
	p := mustInsert(t, db, model.FamilyPerson, Fields{"name": "Maria", "relation": "friend"})
	city := mustInsert(t, db, model.FamilyCity, Fields{"name": "Vienna"})
	loc := mustInsert(t, db, model.FamilyLocation, Fields{"name": "Café Central", "city_id": city})
	ch := mustInsert(t, db, model.FamilyChapter, Fields{"title": "Arrival", "number": 1})
	char := mustInsert(t, db, model.FamilyCharacter, Fields{"name": "Ana"})
	sc := mustInsert(t, db, model.FamilyScene, Fields{"name": "The Station", "chapter_id": ch})

	for _, l := range []struct {
		rel           Relation
		owner, target int64
		extra         []any
	}{
		{RelEntryPeople, e1, p, nil},
		{RelEntryLocations, e1, loc, nil},
		{RelChapterCharacters, ch, char, nil},
		{RelChapterReferences, ch, e1, []any{"direct", "we left"}},
		{RelCharacterPeople, char, p, []any{"primary"}},
		{RelSceneSources, sc, e2, nil},
	} {
		if err := db.Link(ctx, l.rel, l.owner, l.target, l.extra...); err != nil {
			t.Fatalf("Link %s: %v", l.rel, err)
		}
	}

	g, err := db.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(g.Entries) != 2 || g.Entries[0].ID != e2 {
		t.Fatalf("entries not loaded in date order: %+v", g.Entries)
	}
	if got := g.Entry(e1).PersonIDs; len(got) != 1 || got[0] != p {
		t.Errorf("entry people = %v", got)
	}
	if g.Location(loc).CityID != city {
		t.Errorf("location city not loaded")
	}
	chapter := g.Chapter(ch)
	if len(chapter.References) != 1 || chapter.References[0].Quote != "we left" {
		t.Errorf("references = %+v", chapter.References)
	}
	if chapter.Type != "prose" || chapter.Status != "draft" {
		t.Errorf("defaults not applied: %+v", chapter)
	}
	if bo := g.Character(char).BasedOn; len(bo) != 1 || bo[0].Contribution != "primary" {
		t.Errorf("based on = %+v", bo)
	}
	if s := g.Scene(sc); s.ChapterID != ch || len(s.SourceIDs) != 1 {
		t.Errorf("scene = %+v", s)
	}
}

func TestTx_UpdateAndLinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := mustInsert(t, db, model.FamilyChapter, Fields{"title": "Arrival"})
	a := mustInsert(t, db, model.FamilyCharacter, Fields{"name": "Ana"})
	b := mustInsert(t, db, model.FamilyCharacter, Fields{"name": "Bruno"})
	if err := db.Link(ctx, RelChapterCharacters, ch, a); err != nil {
		t.Fatal(err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id, err := tx.LookupID(ctx, model.FamilyChapter, "arrival")
	if err != nil || id != ch {
		t.Fatalf("LookupID = %d, %v", id, err)
	}
	if err := tx.UpdateFields(ctx, model.FamilyChapter, ch, Fields{"type": "vignette"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := tx.ClearLinks(ctx, RelChapterCharacters, ch); err != nil {
		t.Fatal(err)
	}
	if err := tx.AddLink(ctx, RelChapterCharacters, ch, b); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	g, err := db.LoadGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	c := g.Chapter(ch)
	if c.Type != "vignette" {
		t.Errorf("type = %q, want vignette", c.Type)
	}
	if len(c.CharacterIDs) != 1 || c.CharacterIDs[0] != b {
		t.Errorf("characters = %v, want [%d]", c.CharacterIDs, b)
	}
}

func TestTx_RejectsNonEditableColumn(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := mustInsert(t, db, model.FamilyChapter, Fields{"title": "Arrival"})
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := tx.UpdateFields(ctx, model.FamilyChapter, ch, Fields{"title": "Renamed"}); err == nil {
		t.Fatal("expected error updating the natural key")
	}
}

func TestTx_LookupNotFound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if _, err := tx.LookupID(ctx, model.FamilyPerson, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTx_SavepointRollback(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := mustInsert(t, db, model.FamilyChapter, Fields{"title": "Arrival"})

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Savepoint(ctx, "file_1"); err != nil {
		t.Fatal(err)
	}
	if err := tx.UpdateFields(ctx, model.FamilyChapter, ch, Fields{"status": "final"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.RollbackTo(ctx, "file_1"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Release(ctx, "file_1"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Savepoint(ctx, "bad name"); err == nil {
		t.Error("expected invalid savepoint name error")
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	g, _ := db.LoadGraph(ctx)
	if s := g.Chapter(ch).Status; s != "draft" {
		t.Errorf("status = %q, want draft after rollback to savepoint", s)
	}
}

func TestTx_Ownership(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ch := mustInsert(t, db, model.FamilyChapter, Fields{"title": "Arrival"})
	s1 := mustInsert(t, db, model.FamilyScene, Fields{"name": "One", "chapter_id": ch})
	s2 := mustInsert(t, db, model.FamilyScene, Fields{"name": "Two"})

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.ClearOwned(ctx, model.FamilyScene, ch); err != nil {
		t.Fatal(err)
	}
	if err := tx.SetOwner(ctx, model.FamilyScene, s2, ch); err != nil {
		t.Fatal(err)
	}
	if err := tx.SetOwner(ctx, model.FamilyPerson, 1, ch); err == nil {
		t.Error("expected error for family without owner")
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	g, _ := db.LoadGraph(ctx)
	if g.Scene(s1).ChapterID != 0 || g.Scene(s2).ChapterID != ch {
		t.Errorf("ownership not moved: %+v %+v", g.Scene(s1), g.Scene(s2))
	}
}

func TestManifest(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	rows := []ManifestRow{
		{Path: "manuscript/chapters/arrival.md", Family: "chapter", EntityID: 7, Checksum: "a"},
		{Path: "manuscript/chapters.md", Family: "chapter", Checksum: "b"},
	}
	if err := db.RecordGenerated(ctx, rows); err != nil {
		t.Fatalf("RecordGenerated: %v", err)
	}
	m, err := db.Manifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m["manuscript/chapters/arrival.md"].Checksum != "a" {
		t.Errorf("manifest = %+v", m)
	}
	addrs, err := db.Addresses(ctx, model.FamilyChapter)
	if err != nil {
		t.Fatal(err)
	}
	if addrs["manuscript/chapters/arrival"] != 7 || len(addrs) != 1 {
		t.Errorf("addresses = %v", addrs)
	}

	n, err := db.PruneManifest(ctx, map[string]struct{}{"manuscript/chapters.md": {}})
	if err != nil || n != 1 {
		t.Fatalf("PruneManifest = %d, %v", n, err)
	}
	cs, err := db.ManifestChecksum(ctx, "manuscript/chapters/arrival.md")
	if err != nil || cs != "" {
		t.Errorf("pruned checksum = %q, %v", cs, err)
	}
}

func TestKeys(t *testing.T) {
	db := testDB(t)
	id := mustInsert(t, db, model.FamilyTag, Fields{"name": "Grief"})
	keys, err := db.Keys(context.Background(), model.FamilyTag)
	if err != nil {
		t.Fatal(err)
	}
	if keys["grief"] != id {
		t.Errorf("keys = %v", keys)
	}
}

func TestWrite_CanonicalizesText(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	e := mustInsert(t, db, model.FamilyEntry, Fields{"date": "2024-03-01"})
	ch := mustInsert(t, db, model.FamilyChapter, Fields{"title": "Arrival"})
	char := mustInsert(t, db, model.FamilyCharacter, Fields{
		"name": "Ana", "description": "\n  First.  \n\n\n    Indented.\n",
	})
	if err := db.Link(ctx, RelChapterReferences, ch, e, "direct", "the last\n  train"); err != nil {
		t.Fatal(err)
	}

	sc := mustInsert(t, db, model.FamilyScene, Fields{"name": "Platform"})
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.UpdateFields(ctx, model.FamilyScene, sc, Fields{"description": "  Rain.\n\n\n  - umbrella\n"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	g, err := db.LoadGraph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.Character(char).Description; got != "First.\n\n  Indented." {
		t.Errorf("character description = %q", got)
	}
	if got := g.Scene(sc).Description; got != "Rain.\n\n- umbrella" {
		t.Errorf("scene description = %q", got)
	}
	if refs := g.Chapter(ch).References; len(refs) != 1 || refs[0].Quote != "the last train" {
		t.Errorf("references = %+v", refs)
	}
}
