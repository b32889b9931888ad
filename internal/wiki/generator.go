package wiki

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/checksum"
	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
	"github.com/soffiafdz/palimpsest-sub000/internal/store"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikictx"
)

// Renderer turns template data into page text.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// GraphStore is the part of the persistence layer the generator needs.
type GraphStore interface {
	LoadGraph(ctx context.Context) (*model.Graph, error)
	RecordGenerated(ctx context.Context, rows []store.ManifestRow) error
	PruneManifest(ctx context.Context, keep map[string]struct{}) (int, error)
}

// Stats summarizes one generator run.
type Stats struct {
	Scope     string
	Generated map[model.Family]int // pages rendered
	Changed   map[model.Family]int // pages whose bytes differed and were written
	Deleted   []string
	Pruned    int // manifest rows removed
}

func newStats(scope Scope) *Stats {
	return &Stats{
		Scope:     scope.String(),
		Generated: make(map[model.Family]int),
		Changed:   make(map[model.Family]int),
	}
}

// TotalGenerated sums Generated over every family.
func (s *Stats) TotalGenerated() int { return sum(s.Generated) }

// TotalChanged sums Changed over every family.
func (s *Stats) TotalChanged() int { return sum(s.Changed) }

func sum(m map[model.Family]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Generator renders the entity graph into the output tree.
type Generator struct {
	store    GraphStore
	files    storage.Provider
	renderer Renderer
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewGenerator wires a generator. A nil logger discards output.
func NewGenerator(st GraphStore, files storage.Provider, r Renderer, reg *Registry, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		store:    st,
		files:    files,
		renderer: r,
		registry: reg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Files returns the output tree the generator writes to.
func (g *Generator) Files() storage.Provider { return g.files }

// Registry returns the descriptor registry.
func (g *Generator) Registry() *Registry { return g.registry }

// Page is one planned output file.
type Page struct {
	Family   model.Family
	EntityID int64 // zero for index pages
	Path     string
	template string
	build    func() any
}

// Plan is the page layout of one graph snapshot: every visible entity and
// index page with its output path, and the lookup that resolves links.
type Plan struct {
	Graph   *model.Graph
	Lookup  *wikictx.Lookup
	Builder *wikictx.Builder
	Pages   []Page
}

// Plan loads the graph and lays out every page. The lookup always spans the
// whole tree so that scoped runs still link across sections.
func (g *Generator) Plan(ctx context.Context) (*Plan, error) {
	graph, err := g.store.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("wiki: load graph: %w", err)
	}
	return g.plan(graph), nil
}

func (g *Generator) plan(graph *model.Graph) *Plan {
	lk := wikictx.NewLookup()
	b := wikictx.NewBuilder(graph, lk)
	p := &Plan{Graph: graph, Lookup: lk, Builder: b}
	taken := make(map[string]struct{})

	for _, d := range g.registry.Descriptors() {
		for _, e := range graph.Entities(d.Family) {
			if d.Visible != nil && !d.Visible(b, e) {
				continue
			}
			path := d.Path(graph, e)
			if _, clash := taken[path]; clash {
				alt := fmt.Sprintf("%s-%d.md", path[:len(path)-len(".md")], e.EntityID())
				g.logger.Warn("wiki: path collision", slog.String("path", path), slog.String("using", alt))
				path = alt
			}
			taken[path] = struct{}{}
			lk.Add(d.Family, e.Key(), path)

			p.Pages = append(p.Pages, Page{
				Family:   d.Family,
				EntityID: e.EntityID(),
				Path:     path,
				template: d.Template,
				build:    func() any { return d.Build(b, e) },
			})
		}
		if d.Index != nil {
			idx := d.Index
			lk.AddPage(idx.Path)
			taken[idx.Path] = struct{}{}
			p.Pages = append(p.Pages, Page{
				Family:   d.Family,
				Path:     idx.Path,
				template: idx.Template,
				build:    func() any { return idx.Build(b) },
			})
		}
	}
	return p
}

type rendered struct {
	page    Page
	content []byte
	sum     string
	changed bool
}

// Generate renders every page in scope and writes the ones whose bytes
// differ from disk. A full-scope run also deletes files it did not produce
// and prunes their manifest rows. Nothing is written while a pending-edit
// marker is present.
func (g *Generator) Generate(ctx context.Context, scope Scope) (*Stats, error) {
	if err := marker.Guard(g.files); err != nil {
		return nil, err
	}
	plan, err := g.Plan(ctx)
	if err != nil {
		return nil, err
	}

	stats := newStats(scope)
	var out []rendered
	for _, p := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !scope.Includes(p.Family) {
			continue
		}
		r, err := g.render(p)
		if err != nil {
			return nil, err
		}
		stats.Generated[p.Family]++
		out = append(out, r)
	}

	// Manifest rows go in before the files so a watcher sees the new
	// checksum when the write event arrives.
	now := g.now()
	rows := make([]store.ManifestRow, len(out))
	for i, r := range out {
		rows[i] = store.ManifestRow{
			Path:        r.page.Path,
			Family:      r.page.Family.String(),
			EntityID:    r.page.EntityID,
			Checksum:    r.sum,
			GeneratedAt: now,
		}
	}
	if err := g.store.RecordGenerated(ctx, rows); err != nil {
		return nil, fmt.Errorf("wiki: record manifest: %w", err)
	}

	for _, r := range out {
		if !r.changed {
			continue
		}
		if err := g.files.Write(r.page.Path, r.content); err != nil {
			return nil, fmt.Errorf("wiki: write %s: %w", r.page.Path, err)
		}
		stats.Changed[r.page.Family]++
		g.logger.Debug("wiki: wrote page", slog.String("path", r.page.Path))
	}

	if scope.Full() {
		if err := g.reconcile(ctx, plan, stats); err != nil {
			return nil, err
		}
	}

	g.logger.Info("wiki: generated",
		slog.String("scope", stats.Scope),
		slog.Int("pages", stats.TotalGenerated()),
		slog.Int("changed", stats.TotalChanged()),
		slog.Int("deleted", len(stats.Deleted)),
	)
	return stats, nil
}

func (g *Generator) render(p Page) (rendered, error) {
	text, err := g.renderer.Render(p.template, p.build())
	if err != nil {
		return rendered{}, fmt.Errorf("wiki: render %s: %w", p.Path, err)
	}
	r := rendered{page: p, content: []byte(text), sum: checksum.String(text)}

	existing, err := g.files.Read(p.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.changed = true
	case err != nil:
		return rendered{}, fmt.Errorf("wiki: read %s: %w", p.Path, err)
	default:
		r.changed = checksum.Sum(existing) != r.sum
	}
	return r, nil
}

// reconcile deletes every file in the tree that the plan does not produce,
// pages or not. Hidden files and directories are left alone.
func (g *Generator) reconcile(ctx context.Context, plan *Plan, stats *Stats) error {
	keep := make(map[string]struct{}, len(plan.Pages))
	for _, p := range plan.Pages {
		keep[p.Path] = struct{}{}
	}
	files, err := g.files.Files("")
	if err != nil {
		return fmt.Errorf("wiki: list tree: %w", err)
	}
	for _, path := range files {
		if _, ok := keep[path]; ok || path == marker.FileName {
			continue
		}
		if err := g.files.Delete(path); err != nil {
			return fmt.Errorf("wiki: delete orphan %s: %w", path, err)
		}
		stats.Deleted = append(stats.Deleted, path)
		g.logger.Debug("wiki: removed orphan", slog.String("path", path))
	}
	n, err := g.store.PruneManifest(ctx, keep)
	if err != nil {
		return fmt.Errorf("wiki: prune manifest: %w", err)
	}
	stats.Pruned = n
	return nil
}
