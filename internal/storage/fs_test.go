package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soffiafdz/palimpsest-sub000/internal/checksum"
)

func newFS(t *testing.T, files ...string) *FS {
	t.Helper()
	p, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	for _, f := range files {
		if err := p.Write(f, []byte(f)); err != nil {
			t.Fatalf("Write(%s): %v", f, err)
		}
	}
	return p
}

func paths(infos []FileInfo) string {
	out := make([]string, len(infos))
	for i, fi := range infos {
		out[i] = fi.Path
	}
	return strings.Join(out, " ")
}

func TestWriteReadOverwrite(t *testing.T) {
	s := newFS(t)
	const page = "manuscript/chapters/arrival.md"
	for _, body := range []string{"# Arrival\n\n- **Type:** Prose\n", "# Arrival\n\n- **Type:** Poem\n"} {
		if err := s.Write(page, []byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := s.Read(page)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(got) != body {
			t.Errorf("Read = %q, want %q", got, body)
		}
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "manuscript", "chapters"))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}

func TestRead_MissingWrapsNotExist(t *testing.T) {
	_, err := newFS(t).Read("nope.md")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestList(t *testing.T) {
	s := newFS(t,
		"b.md",
		"a/x.md",
		"a-b.md",
		".pending-edits.json",
		"notes.txt",
		".git/README.md",
		".obsidian/snippets/x.md",
	)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := paths(items); got != "a-b.md a/x.md b.md" {
		t.Errorf("List = %q", got)
	}
	if items[2].Checksum != checksum.Sum([]byte("b.md")) {
		t.Errorf("checksum mismatch")
	}

	sub, err := s.List("a")
	if err != nil || paths(sub) != "a/x.md" {
		t.Errorf("List(a) = %q, %v", paths(sub), err)
	}
	missing, err := s.List("does/not/exist")
	if err != nil || len(missing) != 0 {
		t.Errorf("List(missing) = %v, %v", missing, err)
	}
}

func TestFiles_IncludesNonPages(t *testing.T) {
	s := newFS(t,
		"b.md",
		"a/notes.txt",
		".pending-edits.json",
		".DS_Store",
		".git/HEAD",
	)
	got, err := s.Files("")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if strings.Join(got, " ") != "a/notes.txt b.md" {
		t.Errorf("Files = %q", got)
	}
}

func TestWalk_StopsOnError(t *testing.T) {
	s := newFS(t, "a.md", "b.md")
	stop := errors.New("stop")
	var seen int
	err := s.Walk("", func(string, fs.DirEntry) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Errorf("err = %v, seen = %d", err, seen)
	}
}

func TestDelete_PrunesEmptyDirs(t *testing.T) {
	s := newFS(t, "journal/entries/2024/2024-03-05.md", "journal/entries.md")
	if err := s.Delete("journal/entries/2024/2024-03-05.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "journal", "entries")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("empty entries dir should be removed, stat err = %v", err)
	}
	if ok, _ := s.Exists("journal/entries.md"); !ok {
		t.Error("sibling file must survive")
	}
	if err := s.Delete("journal/entries.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Root()); err != nil {
		t.Errorf("root must survive pruning: %v", err)
	}
}

func TestExists(t *testing.T) {
	s := newFS(t, "a.md", "dir/b.md")
	tests := []struct {
		path string
		want bool
	}{
		{"a.md", true},
		{"b.md", false},
		{"dir", false},
	}
	for _, tt := range tests {
		got, err := s.Exists(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("Exists(%q) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}
}

func TestOutsideRootRejected(t *testing.T) {
	s := newFS(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow", "a/../../b.md"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("Read(%q): expected error", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q): expected error", p)
		}
		if err := s.Delete(p); err == nil {
			t.Errorf("Delete(%q): expected error", p)
		}
	}
	if err := s.Write("", []byte("x")); err == nil {
		t.Error("writing the root itself should fail")
	}
}

func TestNewFS(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(file); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestHidden(t *testing.T) {
	for name, want := range map[string]bool{".git": true, ".obsidian": true, ".": false, "journal": false} {
		if got := Hidden(name); got != want {
			t.Errorf("Hidden(%q) = %v", name, got)
		}
	}
}
