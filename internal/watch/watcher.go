// Package watch detects hand edits to generated pages and announces them
// through the pending-edit marker, so a regeneration cannot overwrite work
// that has not been ingested yet.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/soffiafdz/palimpsest-sub000/internal/checksum"
	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
)

// DefaultDebounce is the quiet period before a burst of events is checked.
const DefaultDebounce = 300 * time.Millisecond

// Manifest answers what the generator last wrote to a path.
type Manifest interface {
	ManifestChecksum(ctx context.Context, path string) (string, error)
}

// EditCallback is called with the updated marker after new edits were
// recorded.
type EditCallback func(m *marker.Marker)

// Options configure a Watcher.
type Options struct {
	Origin   string // written into the marker; defaults to the host name
	Debounce time.Duration
	Logger   *slog.Logger
	OnEdit   EditCallback
}

// Watcher records edits to editable pages whose bytes no longer match the
// manifest. Pages the generator writes match their manifest row and are
// ignored.
type Watcher struct {
	files    storage.Provider
	manifest Manifest
	origin   string
	debounce time.Duration
	logger   *slog.Logger
	onEdit   EditCallback
	now      func() time.Time
}

func New(files storage.Provider, manifest Manifest, opts Options) *Watcher {
	if opts.Origin == "" {
		opts.Origin, _ = os.Hostname()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		files:    files,
		manifest: manifest,
		origin:   opts.Origin,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		onEdit:   opts.OnEdit,
		now:      time.Now,
	}
}

// Editable reports whether path is a page of an editable family.
func Editable(path string) bool {
	if !strings.HasSuffix(path, ".md") {
		return false
	}
	for _, f := range model.AllFamilies() {
		if f.Editable() && strings.HasPrefix(path, f.Dir()+"/") {
			return true
		}
	}
	return false
}

// Check compares the given pages with the manifest and adds the edited ones
// to the marker. It returns the marker when it was extended, nil otherwise.
func (w *Watcher) Check(ctx context.Context, paths ...string) (*marker.Marker, error) {
	var edited []string
	for _, p := range paths {
		if !Editable(p) {
			continue
		}
		data, err := w.files.Read(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		recorded, err := w.manifest.ManifestChecksum(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		if checksum.Matches(data, recorded) {
			continue
		}
		edited = append(edited, p)
	}
	if len(edited) == 0 {
		return nil, nil
	}
	m, err := marker.Add(w.files, w.origin, w.now(), edited...)
	if err != nil {
		return nil, err
	}
	w.logger.Info("watch: pending edits recorded",
		slog.Int("files", len(edited)),
		slog.String("origin", w.origin))
	if w.onEdit != nil {
		w.onEdit(m)
	}
	return m, nil
}

// Scan checks every editable page. It catches edits made while no watcher
// was running.
func (w *Watcher) Scan(ctx context.Context) (*marker.Marker, error) {
	var paths []string
	for _, f := range model.AllFamilies() {
		if !f.Editable() {
			continue
		}
		infos, err := w.files.List(f.Dir())
		if err != nil {
			return nil, fmt.Errorf("watch: list %s: %w", f.Dir(), err)
		}
		for _, fi := range infos {
			paths = append(paths, fi.Path)
		}
	}
	return w.Check(ctx, paths...)
}

// Run scans once, then processes file events until ctx is cancelled.
// Events are collected and checked after a quiet period of the debounce
// interval.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.Scan(ctx); err != nil {
		w.logger.Warn("watch: initial scan failed", slog.String("error", err.Error()))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	root := w.files.Root()
	if err := addDirsRecursive(fw, root); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	w.logger.Info("watch: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
			return
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watch: stopped")
			return nil

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			if _, err := w.Check(ctx, paths...); err != nil {
				w.logger.Warn("watch: check failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !Editable(rel) {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.Hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
