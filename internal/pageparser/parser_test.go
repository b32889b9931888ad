package pageparser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/store"
)

type fakeKeys struct {
	keys  map[model.Family]map[string]int64
	addrs map[model.Family]map[string]int64
	loads int
}

func (f *fakeKeys) Keys(_ context.Context, fam model.Family) (map[string]int64, error) {
	f.loads++
	return f.keys[fam], nil
}

func (f *fakeKeys) Addresses(_ context.Context, fam model.Family) (map[string]int64, error) {
	return f.addrs[fam], nil
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{
		keys: map[model.Family]map[string]int64{
			model.FamilyEntry:     {"2024-01-01": 1, "2024-01-02": 2, "2024-01-05": 3},
			model.FamilyPerson:    {"maria": 10, "lucia": 11},
			model.FamilyChapter:   {"the station": 20},
			model.FamilyCharacter: {"clara": 30},
			model.FamilyScene:     {"platform": 40, "loose ends": 41},
		},
		addrs: map[model.Family]map[string]int64{
			model.FamilyEntry:   {"journal/entries/2024/2024-01-01": 1, "journal/entries/2024/2024-01-02": 2},
			model.FamilyChapter: {"manuscript/chapters/the-station": 20},
		},
	}
}

func newParser() (*Parser, *fakeKeys) {
	src := newFakeKeys()
	return New(NewKeyCache(src), nil), src
}

const chapterPage = `# The Station

- **Number:** 1
- **Type:** Vignette
- **Status:** Draft
- **Arc:** [[journal/arcs/leaving|Leaving]]

## Characters

- [[manuscript/characters/clara|Clara]]

## Scenes

### Platform

Rain on the rails.

Second paragraph.

- [[journal/entries/2024/2024-01-02|2024-01-02]]

## References

- [[journal/entries/2024/2024-01-01|2024-01-01]] · Direct · "the last train"
- [[2024-01-05]]

---

Draws on 2 entries, [[journal/entries/2024/2024-01-01|2024-01-01]] to [[journal/entries/2024/2024-01-02|2024-01-02]].
`

func TestParseChapter(t *testing.T) {
	p, _ := newParser()
	rec, err := p.Parse(context.Background(), model.FamilyChapter, chapterPage)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Key != "The Station" {
		t.Errorf("Key = %q", rec.Key)
	}
	wantFields := store.Fields{"number": 1, "type": "vignette", "status": "draft"}
	if diff := cmp.Diff(wantFields, rec.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	wantLinks := map[store.Relation][]LinkTarget{
		store.RelChapterCharacters: {{ID: 30}},
		store.RelChapterReferences: {
			{ID: 1, Extra: []any{"direct", "the last train"}},
			{ID: 3, Extra: []any{"direct", ""}},
		},
	}
	if diff := cmp.Diff(wantLinks, rec.Links); diff != "" {
		t.Errorf("links (-want +got):\n%s", diff)
	}
	if !rec.HasScenes {
		t.Fatal("HasScenes = false")
	}
	wantScenes := []SceneBlock{{
		ID:          40,
		Name:        "Platform",
		Description: "Rain on the rails.\n\nSecond paragraph.",
		Sources:     []int64{2},
	}}
	if diff := cmp.Diff(wantScenes, rec.Scenes); diff != "" {
		t.Errorf("scenes (-want +got):\n%s", diff)
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rec.Warnings)
	}
}

func TestParse_LabelsAreCaseInsensitive(t *testing.T) {
	p, _ := newParser()
	page := "# The Station\n\n- **TYPE:** poem\n- **status:** REVISED\n\n## characters\n\n- clara\n"
	rec, err := p.Parse(context.Background(), model.FamilyChapter, page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Fields["type"] != "poem" || rec.Fields["status"] != "revised" {
		t.Errorf("fields = %v", rec.Fields)
	}
	if got := rec.Links[store.RelChapterCharacters]; len(got) != 1 || got[0].ID != 30 {
		t.Errorf("characters = %v", got)
	}
}

func TestParse_UnknownLabelWarns(t *testing.T) {
	p, _ := newParser()
	page := "# The Station\n\n- **Type:** Sonnet\n- **Mood:** grim\n"
	rec, err := p.Parse(context.Background(), model.FamilyChapter, page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := rec.Fields["type"]; ok {
		t.Errorf("unknown type label set the field: %v", rec.Fields)
	}
	if len(rec.Warnings) != 2 {
		t.Fatalf("warnings = %v", rec.Warnings)
	}
	if !strings.Contains(rec.Warnings[0], "Sonnet") || !strings.Contains(rec.Warnings[1], "Mood") {
		t.Errorf("warnings = %v", rec.Warnings)
	}
}

func TestParse_MissingKey(t *testing.T) {
	p, _ := newParser()
	_, err := p.Parse(context.Background(), model.FamilyChapter, "- **Type:** Prose\n\n## Characters\n\n- Clara\n")
	if !errors.Is(err, apperr.ErrMissingKey) {
		t.Fatalf("got %v, want ErrMissingKey", err)
	}
}

func TestParse_ReadOnlyFamily(t *testing.T) {
	p, _ := newParser()
	if _, err := p.Parse(context.Background(), model.FamilyEntry, "# 2024-01-01\n"); err == nil {
		t.Fatal("expected an error for a read-only family")
	}
}

func TestParse_FooterIgnored(t *testing.T) {
	p, _ := newParser()
	page := "# Clara\n\n- **Role:** lead\n\n---\n\n## Based On\n\n- [[Maria]] (Composite)\n"
	rec, err := p.Parse(context.Background(), model.FamilyCharacter, page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := rec.Links[store.RelCharacterPeople]; ok {
		t.Errorf("footer content was parsed: %v", rec.Links)
	}
	if rec.Fields["role"] != "lead" {
		t.Errorf("role = %v", rec.Fields["role"])
	}
}

func TestParse_AbsentVersusEmptySection(t *testing.T) {
	p, _ := newParser()
	absent, err := p.Parse(context.Background(), model.FamilyScene, "# Platform\n")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := absent.Links[store.RelSceneSources]; ok {
		t.Error("absent Sources section produced a link set")
	}
	if _, ok := absent.Fields["description"]; ok {
		t.Error("absent Description section produced a field")
	}

	empty, err := p.Parse(context.Background(), model.FamilyScene, "# Platform\n\n## Sources\n\n## Description\n")
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := empty.Links[store.RelSceneSources]; !ok || len(got) != 0 {
		t.Errorf("empty Sources section = %v, %v; want empty replacement", got, ok)
	}
	if got, ok := empty.Fields["description"]; !ok || got != "" {
		t.Errorf("empty Description = %v, %v", got, ok)
	}
}

func TestParse_UnresolvedReferenceDropped(t *testing.T) {
	p, _ := newParser()
	page := "# Clara\n\n## Based On\n\n- [[Maria]] (Composite)\n- [[Nobody]] (Primary)\n- Lucia\n"
	rec, err := p.Parse(context.Background(), model.FamilyCharacter, page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []LinkTarget{
		{ID: 10, Extra: []any{"composite"}},
		{ID: 11, Extra: []any{"primary"}},
	}
	if diff := cmp.Diff(want, rec.Links[store.RelCharacterPeople]); diff != "" {
		t.Errorf("based on (-want +got):\n%s", diff)
	}
	if len(rec.Warnings) != 1 || !strings.Contains(rec.Warnings[0], "Nobody") {
		t.Errorf("warnings = %v", rec.Warnings)
	}
}

func TestParseScene_Owner(t *testing.T) {
	p, _ := newParser()
	rec, err := p.Parse(context.Background(), model.FamilyScene,
		"# Platform\n\n- **Origin:** invented\n- **Chapter:** [[manuscript/chapters/the-station|The Station]]\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !rec.OwnerSet || rec.OwnerID != 20 {
		t.Errorf("owner = %v, %d", rec.OwnerSet, rec.OwnerID)
	}
	if rec.Fields["origin"] != "invented" {
		t.Errorf("origin = %v", rec.Fields["origin"])
	}

	rec, err = p.Parse(context.Background(), model.FamilyScene, "# Platform\n\n- **Chapter:**\n")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.OwnerSet || rec.OwnerID != 0 {
		t.Errorf("empty chapter line: owner = %v, %d", rec.OwnerSet, rec.OwnerID)
	}
}

func TestParse_ReferenceQuotes(t *testing.T) {
	p, _ := newParser()
	page := "# The Station\n\n## References\n\n- [[2024-01-01]] · paraphrase · “curly”\n- [[2024-01-02]] · · \"quote · with dot\"\n- [[2024-01-01]] · Paraphrase · \"curly\"\n"
	rec, err := p.Parse(context.Background(), model.FamilyChapter, page)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []LinkTarget{
		{ID: 1, Extra: []any{"paraphrase", "curly"}},
		{ID: 2, Extra: []any{"direct", "quote · with dot"}},
	}
	if diff := cmp.Diff(want, rec.Links[store.RelChapterReferences]); diff != "" {
		t.Errorf("references (-want +got):\n%s", diff)
	}
}

func TestParse_UnresolvedSceneBlockDropped(t *testing.T) {
	p, _ := newParser()
	rec, err := p.Parse(context.Background(), model.FamilyChapter, "# The Station\n\n## Scenes\n\n### Nowhere\n\ntext\n")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.HasScenes || len(rec.Scenes) != 0 {
		t.Errorf("scenes = %v (present %v)", rec.Scenes, rec.HasScenes)
	}
}

func TestParse_SceneBlockBulletsStayDescription(t *testing.T) {
	p, _ := newParser()
	page := "# The Station\n\n## Scenes\n\n### Platform\n\nRain on the rails.\n\n- a shared umbrella\n" +
		"- [[Clara]] waits\n\n    an indented line\n\n- [[journal/entries/2024/2024-01-02|2024-01-02]]\n* 2024-01-05\n"
	rec, err := p.Parse(context.Background(), model.FamilyChapter, page)
	if err != nil {
		t.Fatal(err)
	}
	want := []SceneBlock{{
		ID:          40,
		Name:        "Platform",
		Description: "Rain on the rails.\n\n- a shared umbrella\n- [[Clara]] waits\n\n    an indented line",
		Sources:     []int64{2, 3},
	}}
	if diff := cmp.Diff(want, rec.Scenes); diff != "" {
		t.Errorf("scenes (-want +got):\n%s", diff)
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rec.Warnings)
	}
}

func TestKeyCache(t *testing.T) {
	src := newFakeKeys()
	c := NewKeyCache(src)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.GetOrBuild(ctx, model.FamilyPerson); err != nil {
			t.Fatal(err)
		}
	}
	if src.loads != 1 {
		t.Errorf("loads = %d, want 1", src.loads)
	}
	c.Invalidate()
	keys, err := c.GetOrBuild(ctx, model.FamilyPerson)
	if err != nil {
		t.Fatal(err)
	}
	if src.loads != 2 {
		t.Errorf("loads after Invalidate = %d, want 2", src.loads)
	}
	if id, ok := keys.Resolve("MARIA", ""); !ok || id != 10 {
		t.Errorf("Resolve(MARIA) = %d, %v", id, ok)
	}
}

func TestResolve_AddressFallsBackToAlias(t *testing.T) {
	k := &FamilyKeys{
		keys:      map[string]int64{"maria": 10},
		addresses: map[string]int64{"journal/people/maria": 10},
	}
	tests := []struct {
		target, alias string
		want          int64
		ok            bool
	}{
		{"journal/people/maria", "Maria", 10, true},
		{"journal/people/maria.md", "", 10, true},
		{"journal/people/stale", "Maria", 10, true},
		{"maria", "", 10, true},
		{"journal/people/stale", "", 0, false},
	}
	for _, tt := range tests {
		id, ok := k.Resolve(tt.target, tt.alias)
		if id != tt.want || ok != tt.ok {
			t.Errorf("Resolve(%q, %q) = %d, %v", tt.target, tt.alias, id, ok)
		}
	}
}

func TestParsePage_Zones(t *testing.T) {
	page := ParsePage("intro\n# Title\n# Second\n- **A:** 1\n\n## One\n\ntext\n### Nested\n- item\n## Two\n- x\n---\n## Footer\n")
	if page.Key != "Title" {
		t.Errorf("Key = %q", page.Key)
	}
	if len(page.Metadata) != 1 || page.Metadata[0].Label != "A" || page.Metadata[0].Line != 4 {
		t.Errorf("metadata = %+v", page.Metadata)
	}
	one, ok := page.Section("ONE")
	if !ok || one.Text() != "text" || len(one.Blocks) != 1 {
		t.Fatalf("section one = %+v", one)
	}
	if items := listItems(one.Blocks[0].Lines); len(items) != 1 || items[0] != "item" {
		t.Errorf("nested items = %v", items)
	}
	if _, ok := page.Section("Footer"); ok {
		t.Error("footer section parsed")
	}
}
