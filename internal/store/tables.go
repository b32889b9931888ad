package store

import (
	"fmt"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Fields maps column names to new values for UpdateFields and Insert.
type Fields map[string]any

type familyTable struct {
	table  string
	keyCol string
	// columns accepted by Insert; updatable is the subset UpdateFields accepts.
	columns   []string
	updatable []string
	// owner column for families owned by another family.
	ownerCol string
	// free-text columns, stored in canonical form.
	text []string
}

var tables = map[model.Family]familyTable{
	model.FamilyEntry:     {table: "entries", keyCol: "date", columns: []string{"date", "word_count", "summary"}, text: []string{"summary"}},
	model.FamilyPerson:    {table: "people", keyCol: "name", columns: []string{"name", "full_name", "relation"}},
	model.FamilyCity:      {table: "cities", keyCol: "name", columns: []string{"name", "country"}},
	model.FamilyLocation:  {table: "locations", keyCol: "name", columns: []string{"name", "city_id"}, ownerCol: "city_id"},
	model.FamilyTag:       {table: "tags", keyCol: "name", columns: []string{"name"}},
	model.FamilyTheme:     {table: "themes", keyCol: "name", columns: []string{"name"}},
	model.FamilyArc:       {table: "arcs", keyCol: "name", columns: []string{"name", "description"}, text: []string{"description"}},
	model.FamilyChapter: {
		table: "chapters", keyCol: "title",
		columns:   []string{"title", "number", "type", "status", "part"},
		updatable: []string{"number", "type", "status", "part"},
	},
	model.FamilyCharacter: {
		table: "characters", keyCol: "name",
		columns:   []string{"name", "role", "description"},
		updatable: []string{"role", "description"},
		text:      []string{"description"},
	},
	model.FamilyScene: {
		table: "scenes", keyCol: "name",
		columns:   []string{"name", "chapter_id", "origin", "description"},
		updatable: []string{"origin", "description"},
		ownerCol:  "chapter_id",
		text:      []string{"description"},
	},
}

func tableFor(f model.Family) (familyTable, error) {
	t, ok := tables[f]
	if !ok {
		return familyTable{}, fmt.Errorf("store: %w: %v", apperr.ErrUnknownFamily, f)
	}
	return t, nil
}

// value returns v as stored in column c: free text is canonicalized so that
// a rendered page parses back to the stored value.
func (ft familyTable) value(c string, v any) any {
	if s, ok := v.(string); ok && contains(ft.text, c) {
		return model.CleanText(s)
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Relation names one many-to-many link table.
type Relation int

const (
	RelEntryPeople Relation = iota + 1
	RelEntryLocations
	RelEntryTags
	RelEntryThemes
	RelEntryArcs
	RelChapterCharacters
	RelChapterReferences
	RelCharacterPeople
	RelSceneSources
)

type relationTable struct {
	name      string
	table     string
	ownerCol  string
	targetCol string
	owner     model.Family
	target    model.Family
	extra     []string
}

var relations = map[Relation]relationTable{
	RelEntryPeople:       {"entry people", "entry_people", "entry_id", "person_id", model.FamilyEntry, model.FamilyPerson, nil},
	RelEntryLocations:    {"entry locations", "entry_locations", "entry_id", "location_id", model.FamilyEntry, model.FamilyLocation, nil},
	RelEntryTags:         {"entry tags", "entry_tags", "entry_id", "tag_id", model.FamilyEntry, model.FamilyTag, nil},
	RelEntryThemes:       {"entry themes", "entry_themes", "entry_id", "theme_id", model.FamilyEntry, model.FamilyTheme, nil},
	RelEntryArcs:         {"entry arcs", "entry_arcs", "entry_id", "arc_id", model.FamilyEntry, model.FamilyArc, nil},
	RelChapterCharacters: {"chapter characters", "chapter_characters", "chapter_id", "character_id", model.FamilyChapter, model.FamilyCharacter, nil},
	RelChapterReferences: {"chapter references", "chapter_references", "chapter_id", "entry_id", model.FamilyChapter, model.FamilyEntry, []string{"mode", "quote"}},
	RelCharacterPeople:   {"character people", "character_people", "character_id", "person_id", model.FamilyCharacter, model.FamilyPerson, []string{"contribution"}},
	RelSceneSources:      {"scene sources", "scene_sources", "scene_id", "entry_id", model.FamilyScene, model.FamilyEntry, nil},
}

func (r Relation) String() string {
	if rt, ok := relations[r]; ok {
		return rt.name
	}
	return fmt.Sprintf("relation(%d)", int(r))
}

// Target returns the family on the far side of the relation.
func (r Relation) Target() model.Family { return relations[r].target }

// Owner returns the family whose pages carry the relation.
func (r Relation) Owner() model.Family { return relations[r].owner }

func relationFor(r Relation) (relationTable, error) {
	rt, ok := relations[r]
	if !ok {
		return relationTable{}, fmt.Errorf("store: unknown relation %d", int(r))
	}
	return rt, nil
}
