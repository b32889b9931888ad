package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soffiafdz/palimpsest-sub000/internal/store"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/testutil"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
)

func seededConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Wiki.Path = filepath.Join(dir, "wiki")
	cfg.Wiki.Origin = "test"
	cfg.SQLite.Path = filepath.Join(dir, "palimpsest.db")

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.Seed(t, db)
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func quiet(cfg *Config) []Option {
	return []Option{WithConfig(cfg), WithLogger(slog.New(slog.DiscardHandler))}
}

func TestCommands_GenerateEditSync(t *testing.T) {
	ctx := context.Background()
	cfg := seededConfig(t)

	stats, err := Generate(ctx, wiki.All(), quiet(cfg)...)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	total := 0
	for _, n := range stats.Generated {
		total += n
	}
	if total == 0 {
		t.Fatal("nothing generated")
	}

	page := filepath.Join(cfg.Wiki.Path, filepath.FromSlash(testutil.ChapterPath))
	data, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "- **Type:** Prose", "- **Type:** Vignette", 1)
	if err := os.WriteFile(page, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	lr, err := Lint(ctx, nil, quiet(cfg)...)
	if err != nil {
		t.Fatalf("Lint: %v", err)
	}
	if lr.HasErrors() {
		t.Fatalf("lint errors: %+v", lr.Errors())
	}

	res, err := Sync(ctx, syncer.Options{Mode: syncer.ModeFull, Scope: wiki.All()}, quiet(cfg)...)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Failed() {
		t.Fatalf("sync failed: %+v", res.Errors)
	}
	if res.Updates["chapter"] != 1 {
		t.Errorf("chapter updates = %d, want 1", res.Updates["chapter"])
	}

	index, err := os.ReadFile(filepath.Join(cfg.Wiki.Path, "manuscript", "chapters.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "· Vignette ·") {
		t.Error("chapter index not regenerated")
	}
}

func TestCommands_RequireConfig(t *testing.T) {
	if _, err := Generate(context.Background(), wiki.All()); err == nil {
		t.Fatal("expected error without config")
	}
}
