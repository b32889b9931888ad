package wikictx

import (
	"sort"
	"strings"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Ref is a rendered cross-reference to another page.
type Ref struct {
	Key     string
	Address string // canonical address; empty when the target has no page
}

// String renders the reference as a wiki link, or as plain text when the
// target has no page.
func (r Ref) String() string {
	if r.Address == "" {
		return r.Key
	}
	return "[[" + r.Address + "|" + r.Key + "]]"
}

// IsZero reports whether r is empty.
func (r Ref) IsZero() bool { return r.Key == "" }

// Address returns the canonical address of an output path.
func Address(path string) string {
	return strings.TrimSuffix(path, ".md")
}

type familyKey struct {
	family model.Family
	key    string
}

// Lookup maps natural keys to output paths across every family. It is built
// once per generator run, before any page is rendered.
type Lookup struct {
	paths     map[familyKey]string
	keys      map[string]struct{}
	addresses map[string]struct{}
}

func NewLookup() *Lookup {
	return &Lookup{
		paths:     make(map[familyKey]string),
		keys:      make(map[string]struct{}),
		addresses: make(map[string]struct{}),
	}
}

// Add registers the page of one entity.
func (l *Lookup) Add(f model.Family, key, path string) {
	l.paths[familyKey{f, strings.ToLower(key)}] = path
	l.keys[strings.ToLower(key)] = struct{}{}
	l.addresses[strings.ToLower(Address(path))] = struct{}{}
}

// AddPage registers a page that has an address but no natural key.
func (l *Lookup) AddPage(path string) {
	l.addresses[strings.ToLower(Address(path))] = struct{}{}
}

// Path returns the output path of an entity by natural key.
func (l *Lookup) Path(f model.Family, key string) (string, bool) {
	p, ok := l.paths[familyKey{f, strings.ToLower(key)}]
	return p, ok
}

// Ref builds the reference to an entity of family f.
func (l *Lookup) Ref(f model.Family, key string) Ref {
	r := Ref{Key: key}
	if p, ok := l.Path(f, key); ok {
		r.Address = Address(p)
	}
	return r
}

// Resolves reports whether a link target names a natural key or a canonical
// address. Matching ignores case; a trailing .md is accepted.
func (l *Lookup) Resolves(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	if _, ok := l.keys[t]; ok {
		return true
	}
	_, ok := l.addresses[strings.TrimSuffix(t, ".md")]
	return ok
}

// Addresses returns every registered address in sorted order.
func (l *Lookup) Addresses() []string {
	out := make([]string, 0, len(l.addresses))
	for a := range l.addresses {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entity pages registered.
func (l *Lookup) Len() int { return len(l.paths) }
