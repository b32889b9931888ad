// Package wikiservice is the facade the HTTP and MCP surfaces share. It
// serializes every run that writes to the store or the output tree.
package wikiservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/checksum"
	"github.com/soffiafdz/palimpsest-sub000/internal/lint"
	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/metrics"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/sse"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/watch"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
)

// Publisher receives service events. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishPageEvent(kind, path string)
}

// PageDetail is one page of the output tree.
type PageDetail struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`
	Editable bool   `json:"editable"`
	// Modified is true when the bytes differ from what was last generated.
	Modified bool `json:"modified"`
}

// Service coordinates the generator, the syncer and the output tree.
type Service struct {
	mu       sync.Mutex
	manifest watch.Manifest
	gen      *wiki.Generator
	syncer   *syncer.Syncer
	files    storage.Provider
	events   Publisher
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes run and page events to p.
func WithEvents(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics records runs on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service.
func New(manifest watch.Manifest, gen *wiki.Generator, sy *syncer.Syncer, opts ...Option) *Service {
	s := &Service{
		manifest: manifest,
		gen:      gen,
		syncer:   sy,
		files:    gen.Files(),
		events:   nopPublisher{},
		metrics:  (*metrics.Prometheus)(nil),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sync runs one sync pass.
func (s *Service) Sync(ctx context.Context, opts syncer.Options) (*syncer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.syncer.Run(ctx, opts)
	failed := err != nil || (res != nil && res.Failed())
	s.metrics.ObserveRun(opts.Mode.String(), time.Since(start), failed)
	if res != nil {
		s.metrics.AddIngested(res.Ingested)
		s.metrics.AddPageErrors(len(res.Errors))
		s.metrics.AddPages(res.Generated, res.Changed, res.Deleted)
	}
	s.refreshPending()

	if err != nil {
		s.logger.Error("sync failed", slog.String("mode", opts.Mode.String()), slog.String("error", err.Error()))
		s.events.Publish(sse.Event{Type: sse.TypeSyncFailed, Data: map[string]string{
			"mode":  opts.Mode.String(),
			"error": err.Error(),
		}})
		return res, err
	}
	s.events.Publish(sse.Event{ID: res.RunID, Type: sse.TypeSyncCompleted, Data: res})
	return res, nil
}

// Generate regenerates scope.
func (s *Service) Generate(ctx context.Context, scope wiki.Scope) (*wiki.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	stats, err := s.gen.Generate(ctx, scope)
	s.metrics.ObserveRun("generate", time.Since(start), err != nil)
	if err != nil {
		return nil, err
	}
	s.metrics.AddPages(stats.TotalGenerated(), stats.TotalChanged(), len(stats.Deleted))
	for _, p := range stats.Deleted {
		s.events.PublishPageEvent("deleted", p)
	}
	s.events.Publish(sse.Event{Type: sse.TypeGenerated, Data: map[string]any{
		"scope":     stats.Scope,
		"generated": stats.TotalGenerated(),
		"changed":   stats.TotalChanged(),
		"deleted":   len(stats.Deleted),
	}})
	return stats, nil
}

// Lint validates the given pages, or every editable page when paths is
// empty.
func (s *Service) Lint(ctx context.Context, paths ...string) (*lint.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(paths) == 0 {
		for _, f := range model.AllFamilies() {
			if !f.Editable() {
				continue
			}
			infos, err := s.files.List(f.Dir())
			if err != nil {
				return nil, err
			}
			for _, fi := range infos {
				paths = append(paths, fi.Path)
			}
		}
	}
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	res, err := v.ValidateTree(ctx, s.files, paths)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	return res, err
}

// LintText validates page text that has not been written yet.
func (s *Service) LintText(ctx context.Context, path, text string) (*lint.Result, error) {
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := v.Validate(ctx, path, text)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		ds = []lint.Diagnostic{}
	}
	return &lint.Result{Diagnostics: ds, FilesTotal: 1}, nil
}

func (s *Service) validator(ctx context.Context) (*lint.Validator, error) {
	plan, err := s.gen.Plan(ctx)
	if err != nil {
		return nil, err
	}
	return lint.New(plan.Lookup), nil
}

// Pending returns the pending-edit marker, or nil.
func (s *Service) Pending(_ context.Context) (*marker.Marker, error) {
	return marker.Read(s.files)
}

// ReadPage returns one page of the output tree.
func (s *Service) ReadPage(ctx context.Context, path string) (*PageDetail, error) {
	path = strings.TrimPrefix(path, "/")
	if !strings.HasSuffix(path, ".md") {
		path += ".md"
	}
	data, err := s.files.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	sum := checksum.Sum(data)
	recorded, err := s.manifest.ManifestChecksum(ctx, path)
	if err != nil {
		return nil, err
	}
	return &PageDetail{
		Path:     path,
		Content:  string(data),
		Checksum: sum,
		Editable: watch.Editable(path),
		Modified: recorded != sum,
	}, nil
}

// PagesEdited is the watcher callback: it republishes the marker's files as
// page events.
func (s *Service) PagesEdited(m *marker.Marker) {
	s.metrics.SetPending(len(m.Files))
	for _, p := range m.Files {
		s.events.PublishPageEvent("edited", p)
	}
}

func (s *Service) refreshPending() {
	m, err := marker.Read(s.files)
	if err != nil {
		s.logger.Warn("read marker failed", slog.String("error", err.Error()))
		return
	}
	if m == nil {
		s.metrics.SetPending(0)
		return
	}
	s.metrics.SetPending(len(m.Files))
}

type nopPublisher struct{}

func (nopPublisher) Publish(sse.Event)               {}
func (nopPublisher) PublishPageEvent(string, string) {}
