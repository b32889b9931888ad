// Package wiki renders the entity graph into the output tree. Every family
// is dispatched through a Descriptor held in a Registry.
package wiki

import (
	"errors"
	"fmt"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikictx"
)

// Descriptor tells the generator how to produce the pages of one family.
type Descriptor struct {
	Family   model.Family
	Template string
	// Path returns the output path of an entity, relative to the wiki root.
	Path func(g *model.Graph, e model.Entity) string
	// Build returns the template data of an entity.
	Build func(b *wikictx.Builder, e model.Entity) any
	// Visible reports whether an entity gets a page. Nil means always.
	Visible func(b *wikictx.Builder, e model.Entity) bool
	// Index is the optional listing page of the family.
	Index *IndexPage
}

// IndexPage is a singleton page summarizing a family.
type IndexPage struct {
	Path     string
	Template string
	Build    func(b *wikictx.Builder) any
}

// Editable reports whether the family's pages are ingested on sync.
func (d Descriptor) Editable() bool { return d.Family.Editable() }

func (d Descriptor) validate() error {
	switch {
	case !d.Family.Valid():
		return fmt.Errorf("%w: %d", apperr.ErrUnknownFamily, int(d.Family))
	case d.Template == "":
		return fmt.Errorf("wiki: %s descriptor has no template", d.Family)
	case d.Path == nil || d.Build == nil:
		return fmt.Errorf("wiki: %s descriptor lacks a path or build func", d.Family)
	case d.Index != nil && (d.Index.Path == "" || d.Index.Template == "" || d.Index.Build == nil):
		return fmt.Errorf("wiki: %s index page is incomplete", d.Family)
	}
	return nil
}

// Registry holds exactly one descriptor per family.
type Registry struct {
	byFamily map[model.Family]Descriptor
}

// NewRegistry validates descs: every family must be described exactly once.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byFamily: make(map[model.Family]Descriptor, len(descs))}
	var errs []error
	for _, d := range descs {
		if err := d.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byFamily[d.Family]; dup {
			errs = append(errs, fmt.Errorf("wiki: duplicate descriptor for %s", d.Family))
			continue
		}
		r.byFamily[d.Family] = d
	}
	for _, f := range model.AllFamilies() {
		if _, ok := r.byFamily[f]; !ok {
			errs = append(errs, fmt.Errorf("wiki: no descriptor for %s", f))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the descriptor of f.
func (r *Registry) Get(f model.Family) (Descriptor, bool) {
	d, ok := r.byFamily[f]
	return d, ok
}

// Descriptors returns every descriptor in family declaration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byFamily))
	for _, f := range model.AllFamilies() {
		out = append(out, r.byFamily[f])
	}
	return out
}
