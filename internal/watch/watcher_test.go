package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/render"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
	"github.com/soffiafdz/palimpsest-sub000/internal/testutil"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
)

// generated returns a wiki root holding a freshly generated tree.
func generated(t *testing.T) (string, *storage.FS, Manifest) {
	t.Helper()
	db := testutil.TestDB(t)
	testutil.Seed(t, db)
	dir, files := testutil.TestWiki(t)
	r, err := render.New("")
	if err != nil {
		t.Fatal(err)
	}
	reg, err := wiki.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wiki.NewGenerator(db, files, r, reg, nil).Generate(context.Background(), wiki.All()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return dir, files, db
}

func appendLine(t *testing.T, files storage.Provider, path, line string) {
	t.Helper()
	data, err := files.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := files.Write(path, append(data, []byte(line+"\n")...)); err != nil {
		t.Fatal(err)
	}
}

func TestEditable(t *testing.T) {
	for _, tc := range []struct {
		path string
		want bool
	}{
		{testutil.ChapterPath, true},
		{testutil.ScenePath, true},
		{testutil.CharacterPath, true},
		{testutil.EntryPath, false},
		{"manuscript/chapters.md", false},
		{"manuscript/chapters/notes.txt", false},
		{marker.FileName, false},
		{"manuscript/chapters-old/the-station.md", false},
	} {
		if got := Editable(tc.path); got != tc.want {
			t.Errorf("Editable(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestCheck(t *testing.T) {
	_, files, manifest := generated(t)
	ctx := context.Background()

	var seen []*marker.Marker
	w := New(files, manifest, Options{Origin: "laptop", OnEdit: func(m *marker.Marker) { seen = append(seen, m) }})

	m, err := w.Check(ctx, testutil.ChapterPath, testutil.ScenePath, testutil.EntryPath)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if m != nil {
		t.Fatalf("pristine pages recorded as edits: %+v", m)
	}

	appendLine(t, files, testutil.ScenePath, "A stray note.")
	appendLine(t, files, testutil.EntryPath, "Journal pages are read-only.")
	m, err = w.Check(ctx, testutil.ChapterPath, testutil.ScenePath, testutil.EntryPath)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if m == nil {
		t.Fatal("edit not recorded")
	}
	if m.Origin != "laptop" {
		t.Errorf("origin = %q", m.Origin)
	}
	if len(m.Files) != 1 || m.Files[0] != testutil.ScenePath {
		t.Errorf("files = %v, want [%s]", m.Files, testutil.ScenePath)
	}
	if len(seen) != 1 {
		t.Errorf("callback calls = %d, want 1", len(seen))
	}

	onDisk, err := marker.Read(files)
	if err != nil || onDisk == nil {
		t.Fatalf("marker.Read = %v, %v", onDisk, err)
	}
}

func TestCheck_NewPageCountsAsEdit(t *testing.T) {
	_, files, manifest := generated(t)
	if err := files.Write("manuscript/scenes/draft.md", []byte("# Draft\n")); err != nil {
		t.Fatal(err)
	}
	m, err := New(files, manifest, Options{Origin: "laptop"}).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if m == nil || len(m.Files) != 1 || m.Files[0] != "manuscript/scenes/draft.md" {
		t.Fatalf("marker = %+v", m)
	}
}

func TestCheck_MergesWithExistingMarker(t *testing.T) {
	_, files, manifest := generated(t)
	if _, err := marker.Add(files, "desktop", time.Now(), testutil.ChapterPath); err != nil {
		t.Fatal(err)
	}
	appendLine(t, files, testutil.CharacterPath, "More.")

	m, err := New(files, manifest, Options{Origin: "laptop"}).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{testutil.ChapterPath, testutil.CharacterPath}
	if strings.Join(m.Files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", m.Files, want)
	}
	if m.Origin != "desktop" {
		t.Errorf("origin = %q, want the first writer", m.Origin)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestRun_RecordsEditsFromEvents(t *testing.T) {
	dir, files, manifest := generated(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	w := New(files, manifest, Options{
		Origin:   "laptop",
		Debounce: 50 * time.Millisecond,
		OnEdit: func(*marker.Marker) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Rewriting identical bytes is what the generator does; no edit.
	same, err := files.Read(testutil.ChapterPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := files.Write(testutil.ChapterPath, same); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, filepath.FromSlash(testutil.CharacterPath))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(data, "Edited.\n"...), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		m, _ := marker.Read(files)
		return m != nil && len(m.Files) == 1 && m.Files[0] == testutil.CharacterPath
	}, "edit not recorded by watcher")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("callback never called")
	}
}
