package pageparser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// KeySource supplies natural keys and canonical page addresses per family.
type KeySource interface {
	Keys(ctx context.Context, f model.Family) (map[string]int64, error)
	Addresses(ctx context.Context, f model.Family) (map[string]int64, error)
}

// FamilyKeys resolves the references of one family.
type FamilyKeys struct {
	keys      map[string]int64 // lowercase natural key
	addresses map[string]int64 // lowercase path without .md
}

// Resolve returns the id a link points at. Targets containing a slash are
// looked up as canonical addresses first; the alias, then the target, are
// tried as natural keys.
func (k *FamilyKeys) Resolve(target, alias string) (int64, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	if strings.Contains(t, "/") {
		if id, ok := k.addresses[strings.TrimSuffix(t, ".md")]; ok {
			return id, true
		}
	}
	for _, key := range []string{alias, target} {
		if key == "" {
			continue
		}
		if id, ok := k.keys[strings.ToLower(strings.TrimSpace(key))]; ok {
			return id, true
		}
	}
	return 0, false
}

// KeyCache memoizes FamilyKeys per family until Invalidate is called. It is
// safe for concurrent use.
type KeyCache struct {
	src KeySource

	mu       sync.Mutex
	families map[model.Family]*FamilyKeys
}

func NewKeyCache(src KeySource) *KeyCache {
	return &KeyCache{src: src, families: make(map[model.Family]*FamilyKeys)}
}

// GetOrBuild returns the keys of f, loading them on first use.
func (c *KeyCache) GetOrBuild(ctx context.Context, f model.Family) (*FamilyKeys, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.families[f]; ok {
		return k, nil
	}
	keys, err := c.src.Keys(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("pageparser: load %s keys: %w", f, err)
	}
	addrs, err := c.src.Addresses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("pageparser: load %s addresses: %w", f, err)
	}
	k := &FamilyKeys{keys: keys, addresses: addrs}
	c.families[f] = k
	return k, nil
}

// Invalidate drops every cached family. Call it after the store changes.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	c.families = make(map[model.Family]*FamilyKeys)
	c.mu.Unlock()
}

var linkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]*))?\]\]`)

// Link is a parsed "[[target|alias]]" marker.
type Link struct {
	Target string
	Alias  string
}

// Display returns the alias when present, the target otherwise.
func (l Link) Display() string {
	if l.Alias != "" {
		return l.Alias
	}
	return l.Target
}

// FindLinks returns every link marker in s, in order.
func FindLinks(s string) []Link {
	var out []Link
	for _, m := range linkPattern.FindAllStringSubmatch(s, -1) {
		out = append(out, Link{Target: strings.TrimSpace(m[1]), Alias: strings.TrimSpace(m[2])})
	}
	return out
}

// splitRef returns the first link of s and the text after it. Text without a
// link is read as a bare natural key.
func splitRef(s string) (Link, string) {
	loc := linkPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return Link{Target: strings.TrimSpace(s)}, ""
	}
	m := linkPattern.FindStringSubmatch(s)
	return Link{Target: strings.TrimSpace(m[1]), Alias: strings.TrimSpace(m[2])}, s[loc[1]:]
}
