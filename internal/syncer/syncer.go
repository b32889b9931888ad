// Package syncer sequences a sync run: validate edited pages, ingest them in
// one transaction, then regenerate the tree.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/soffiafdz/palimpsest-sub000/internal/lint"
	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/pageparser"
	"github.com/soffiafdz/palimpsest-sub000/internal/store"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
)

// Options configure one run.
type Options struct {
	Mode  Mode
	Scope wiki.Scope
	// Force ingests every editable page, not only those edited since they
	// were generated.
	Force bool
}

// Syncer runs sync passes. Callers serialize runs; a Syncer holds no lock.
type Syncer struct {
	store  store.Store
	gen    *wiki.Generator
	parser *pageparser.Parser
	logger *slog.Logger
	now    func() time.Time
}

// New wires a syncer. A nil logger discards output.
func New(st store.Store, gen *wiki.Generator, parser *pageparser.Parser, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{
		store:  st,
		gen:    gen,
		parser: parser,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// page is one editable page queued for ingestion.
type page struct {
	path   string
	family model.Family
	text   string
	rec    *pageparser.Record
}

// Run executes one pass. Page-level problems land in the Result; the error
// is reserved for run-level failures: storage errors, a failed commit, or a
// pending-edit marker blocking regeneration.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Result, error) {
	res := newResult(uuid.NewString(), opts, s.now())
	log := s.logger.With(slog.String("run", res.RunID), slog.String("mode", res.Mode), slog.String("scope", res.Scope))
	defer func() { res.FinishedAt = s.now() }()

	if opts.Mode.ingests() {
		pages, err := s.collect(ctx, opts, res)
		if err != nil {
			return res, err
		}
		if err := s.validate(ctx, pages, res); err != nil {
			return res, err
		}
		if res.Failed() {
			log.Warn("sync: validation failed", slog.Int("errors", len(res.Errors)))
			return res, nil
		}
		if err := s.ingest(ctx, pages, res, log); err != nil {
			return res, err
		}
	}

	if opts.Mode.regenerates() {
		stats, err := s.gen.Generate(ctx, opts.Scope)
		if err != nil {
			return res, err
		}
		res.Generated = stats.TotalGenerated()
		res.Changed = stats.TotalChanged()
		res.Deleted = len(stats.Deleted)
	}

	log.Info("sync: done",
		slog.Int("validated", res.Validated),
		slog.Int("ingested", res.Ingested),
		slog.Int("generated", res.Generated),
		slog.Int("changed", res.Changed),
		slog.Int("errors", len(res.Errors)),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// collect reads the editable pages in scope, in family then path order.
// Unless opts.Force is set, pages whose bytes match the manifest checksum
// are skipped: they carry nothing the store does not already hold.
func (s *Syncer) collect(ctx context.Context, opts Options, res *Result) ([]page, error) {
	manifest, err := s.store.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncer: manifest: %w", err)
	}
	files := s.gen.Files()
	var out []page
	for _, f := range opts.Scope.Families() {
		if !f.Editable() {
			continue
		}
		infos, err := files.List(f.Dir())
		if err != nil {
			return nil, fmt.Errorf("syncer: list %s: %w", f.Dir(), err)
		}
		for _, fi := range infos {
			if row, ok := manifest[fi.Path]; ok && row.Checksum == fi.Checksum && !opts.Force {
				res.Skipped++
				continue
			}
			data, err := files.Read(fi.Path)
			if err != nil {
				return nil, fmt.Errorf("syncer: %w", err)
			}
			out = append(out, page{path: fi.Path, family: f, text: string(data)})
		}
	}
	return out, nil
}

// validate lints every queued page against the current addressable set.
// Errors stop the run before anything is written; warnings are reported.
func (s *Syncer) validate(ctx context.Context, pages []page, res *Result) error {
	if len(pages) == 0 {
		return nil
	}
	plan, err := s.gen.Plan(ctx)
	if err != nil {
		return err
	}
	v := lint.New(plan.Lookup)
	for _, p := range pages {
		ds, err := v.Validate(ctx, p.path, p.text)
		if err != nil {
			return err
		}
		res.Validated++
		res.Diagnostics = append(res.Diagnostics, ds...)
		for _, d := range ds {
			msg := fmt.Sprintf("%d:%d %s: %s", d.Line, d.Column, d.Code, d.Message)
			if d.Severity == lint.SeverityError {
				res.fail(p.path, "%s", msg)
			} else {
				res.warn(p.path, msg)
			}
		}
	}
	return nil
}

// ingest parses and applies pages in one transaction. Each page runs under
// its own savepoint so a failing page is rolled back alone.
func (s *Syncer) ingest(ctx context.Context, pages []page, res *Result, log *slog.Logger) error {
	ready := pages[:0]
	for _, p := range pages {
		rec, err := s.parser.Parse(ctx, p.family, p.text)
		if err != nil {
			res.fail(p.path, "parse: %v", err)
			continue
		}
		for _, w := range rec.Warnings {
			res.warn(p.path, w)
		}
		p.rec = rec
		ready = append(ready, p)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("syncer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for i, p := range ready {
		sp := fmt.Sprintf("page_%d", i)
		if err := tx.Savepoint(ctx, sp); err != nil {
			return fmt.Errorf("syncer: %w", err)
		}
		n, err := apply(ctx, tx, p.rec)
		if err != nil {
			if rbErr := tx.RollbackTo(ctx, sp); rbErr != nil {
				return fmt.Errorf("syncer: %w", errors.Join(err, rbErr))
			}
			res.fail(p.path, "ingest: %v", err)
			log.Warn("sync: page failed", slog.String("path", p.path), slog.String("error", err.Error()))
		} else {
			res.Ingested++
			for f, count := range n {
				res.Updates[f.String()] += count
			}
			log.Debug("sync: ingested", slog.String("path", p.path))
		}
		if err := tx.Release(ctx, sp); err != nil {
			return fmt.Errorf("syncer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("syncer: commit: %w", err)
	}
	if err := marker.Clear(s.gen.Files()); err != nil {
		return fmt.Errorf("syncer: %w", err)
	}
	s.parser.Keys().Invalidate()
	return nil
}

// apply writes one record and returns the number of entities it updated
// per family.
func apply(ctx context.Context, tx store.Tx, rec *pageparser.Record) (map[model.Family]int, error) {
	id, err := tx.LookupID(ctx, rec.Family, rec.Key)
	if err != nil {
		return nil, err
	}
	if len(rec.Fields) > 0 {
		if err := tx.UpdateFields(ctx, rec.Family, id, rec.Fields); err != nil {
			return nil, err
		}
	}

	rels := make([]store.Relation, 0, len(rec.Links))
	for rel := range rec.Links {
		rels = append(rels, rel)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i] < rels[j] })
	for _, rel := range rels {
		if err := replaceLinks(ctx, tx, rel, id, rec.Links[rel]); err != nil {
			return nil, err
		}
	}

	if rec.OwnerSet {
		if err := tx.SetOwner(ctx, rec.Family, id, rec.OwnerID); err != nil {
			return nil, err
		}
	}

	updated := map[model.Family]int{rec.Family: 1}
	if rec.HasScenes {
		if err := tx.ClearOwned(ctx, model.FamilyScene, id); err != nil {
			return nil, err
		}
		for _, sb := range rec.Scenes {
			if err := tx.SetOwner(ctx, model.FamilyScene, sb.ID, id); err != nil {
				return nil, err
			}
			if err := tx.UpdateFields(ctx, model.FamilyScene, sb.ID, store.Fields{"description": sb.Description}); err != nil {
				return nil, err
			}
			targets := make([]pageparser.LinkTarget, len(sb.Sources))
			for i, src := range sb.Sources {
				targets[i] = pageparser.LinkTarget{ID: src}
			}
			if err := replaceLinks(ctx, tx, store.RelSceneSources, sb.ID, targets); err != nil {
				return nil, err
			}
			updated[model.FamilyScene]++
		}
	}
	return updated, nil
}

func replaceLinks(ctx context.Context, tx store.Tx, rel store.Relation, owner int64, targets []pageparser.LinkTarget) error {
	if err := tx.ClearLinks(ctx, rel, owner); err != nil {
		return err
	}
	for _, t := range targets {
		if err := tx.AddLink(ctx, rel, owner, t.ID, t.Extra...); err != nil {
			return err
		}
	}
	return nil
}
