// Package storage defines the wiki output-tree file-system abstraction.
package storage

import "time"

// FileInfo describes one page file under the output root.
type FileInfo struct {
	Path     string // slash-separated, relative to the root
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for output-tree file operations. All paths are
// relative to the root.
type Provider interface {
	// Root returns the absolute path of the output root.
	Root() string
	// List returns every page under dir, sorted by path, skipping hidden
	// directories. A missing dir yields an empty list.
	List(dir string) ([]FileInfo, error)
	// Files returns every non-hidden file under dir, pages or not, sorted.
	Files(dir string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path and any parent directories it leaves empty.
	Delete(path string) error
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
}
