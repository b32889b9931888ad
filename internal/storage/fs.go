package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/soffiafdz/palimpsest-sub000/internal/checksum"
)

// PageExt is the extension of every page file.
const PageExt = ".md"

// FS implements Provider on a local directory.
type FS struct {
	root string
}

var _ Provider = (*FS)(nil)

// NewFS returns a provider rooted at an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Root() string { return f.root }

// resolve maps a slash-separated relative path to an absolute one. Paths
// that are absolute or climb out of the root are rejected.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: path outside output root: %s", rel)
	}
	return filepath.Join(f.root, local), nil
}

// Hidden reports whether a directory name is skipped when walking: VCS and
// editor directories such as .git or .obsidian.
func Hidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// Walk calls fn with the slash-separated relative path of every page file
// under dir, in directory order. Hidden directories are skipped and a missing
// dir walks nothing.
func (f *FS) Walk(dir string, fn func(rel string, d fs.DirEntry) error) error {
	return f.walk(dir, true, fn)
}

func (f *FS) walk(dir string, pagesOnly bool, fn func(rel string, d fs.DirEntry) error) error {
	base, err := f.resolve(dir)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		switch {
		case errors.Is(err, fs.ErrNotExist) && p == base:
			return fs.SkipAll
		case err != nil:
			return err
		case d.IsDir():
			if p != base && Hidden(d.Name()) {
				return fs.SkipDir
			}
			return nil
		case pagesOnly && filepath.Ext(d.Name()) != PageExt:
			return nil
		case !pagesOnly && Hidden(d.Name()):
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), d)
	})
	if err != nil {
		return fmt.Errorf("storage: walk %s: %w", dir, err)
	}
	return nil
}

// Files returns the path of every non-hidden file under dir, pages or not,
// sorted.
func (f *FS) Files(dir string) ([]string, error) {
	var out []string
	err := f.walk(dir, false, func(rel string, _ fs.DirEntry) error {
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// List returns the checksum and modification time of every page under dir.
func (f *FS) List(dir string) ([]FileInfo, error) {
	var out []FileInfo
	err := f.Walk(dir, func(rel string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := f.digest(rel)
		if err != nil {
			return err
		}
		out = append(out, FileInfo{Path: rel, Checksum: sum, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FS) digest(rel string) (string, error) {
	fh, err := os.Open(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	defer fh.Close()
	return checksum.Reader(fh)
}

func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces path through a temp file and rename, so the watcher and
// editors never see a half-written page.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: write to output root")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, err)
	}
	if err := atomic.WriteFile(abs, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// Delete removes path, then every parent directory it leaves empty below
// the root.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: delete output root")
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	// Remove fails on the first non-empty directory, which ends the climb.
	for dir := filepath.Dir(abs); dir != f.root; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
