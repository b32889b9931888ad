// Package model defines the entity graph mirrored by the wiki.
package model

import (
	"fmt"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
)

// Family identifies one entity collection. The set is closed; every
// dispatch table keyed by Family is checked for completeness at startup.
type Family int

const (
	FamilyEntry Family = iota + 1
	FamilyPerson
	FamilyLocation
	FamilyCity
	FamilyTag
	FamilyTheme
	FamilyArc
	FamilyChapter
	FamilyCharacter
	FamilyScene
)

// Wiki sections.
const (
	SectionJournal    = "journal"
	SectionManuscript = "manuscript"
)

type familyInfo struct {
	name     string
	plural   string
	section  string
	editable bool
}

var families = map[Family]familyInfo{
	FamilyEntry:     {"entry", "entries", SectionJournal, false},
	FamilyPerson:    {"person", "people", SectionJournal, false},
	FamilyLocation:  {"location", "locations", SectionJournal, false},
	FamilyCity:      {"city", "cities", SectionJournal, false},
	FamilyTag:       {"tag", "tags", SectionJournal, false},
	FamilyTheme:     {"theme", "themes", SectionJournal, false},
	FamilyArc:       {"arc", "arcs", SectionJournal, false},
	FamilyChapter:   {"chapter", "chapters", SectionManuscript, true},
	FamilyCharacter: {"character", "characters", SectionManuscript, true},
	FamilyScene:     {"scene", "scenes", SectionManuscript, true},
}

// AllFamilies returns every family in declaration order.
func AllFamilies() []Family {
	return []Family{
		FamilyEntry, FamilyPerson, FamilyLocation, FamilyCity, FamilyTag,
		FamilyTheme, FamilyArc, FamilyChapter, FamilyCharacter, FamilyScene,
	}
}

func (f Family) String() string {
	if info, ok := families[f]; ok {
		return info.name
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Plural returns the collection name, also used as the output directory.
func (f Family) Plural() string {
	return families[f].plural
}

// Section returns the wiki section the family is rendered under.
func (f Family) Section() string {
	return families[f].section
}

// Dir returns the output directory of the family, relative to the wiki root.
func (f Family) Dir() string {
	info := families[f]
	return info.section + "/" + info.plural
}

// Editable reports whether pages of this family are parsed back on ingest.
func (f Family) Editable() bool {
	return families[f].editable
}

// Valid reports whether f is one of the declared families.
func (f Family) Valid() bool {
	_, ok := families[f]
	return ok
}

// ParseFamily resolves a family by singular or plural name.
func ParseFamily(s string) (Family, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, info := range families {
		if s == info.name || s == info.plural {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperr.ErrUnknownFamily, s)
}

// FamiliesInSection returns the families of a section in declaration order.
func FamiliesInSection(section string) ([]Family, error) {
	var out []Family
	for _, f := range AllFamilies() {
		if f.Section() == section {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: unknown section %q", apperr.ErrUnknownFamily, section)
	}
	return out, nil
}
