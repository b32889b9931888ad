package wiki

import (
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Scope selects the families a run touches. The zero value is the full
// tree.
type Scope struct {
	section string
	family  model.Family
}

// All selects every family.
func All() Scope { return Scope{} }

// Section selects the families of one wiki section.
func Section(name string) (Scope, error) {
	if _, err := model.FamiliesInSection(name); err != nil {
		return Scope{}, err
	}
	return Scope{section: name}, nil
}

// Family selects a single family.
func Family(f model.Family) Scope { return Scope{family: f} }

// ParseScope accepts "", "all", a section name or a family name.
func ParseScope(s string) (Scope, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "all":
		return All(), nil
	case model.SectionJournal, model.SectionManuscript:
		return Section(s)
	}
	f, err := model.ParseFamily(s)
	if err != nil {
		return Scope{}, err
	}
	return Family(f), nil
}

// Full reports whether the scope covers the whole tree. Only full runs
// delete orphans.
func (s Scope) Full() bool { return s.section == "" && s.family == 0 }

// Includes reports whether f is in scope.
func (s Scope) Includes(f model.Family) bool {
	switch {
	case s.family != 0:
		return f == s.family
	case s.section != "":
		return f.Section() == s.section
	}
	return true
}

// Families returns the families in scope in declaration order.
func (s Scope) Families() []model.Family {
	var out []model.Family
	for _, f := range model.AllFamilies() {
		if s.Includes(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s Scope) String() string {
	switch {
	case s.family != 0:
		return s.family.String()
	case s.section != "":
		return s.section
	}
	return "all"
}
