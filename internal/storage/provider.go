// Package storage abstracts the folder the session is bound to. Providers
// expose directory enumeration, byte-stream access, and atomic replacement
// writes; the engine never touches the host filesystem directly, which
// keeps every component testable against an in-memory filesystem.
package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Entry describes one child of a directory.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Provider is the storage collaborator the engine consumes. All paths are
// slash-separated and relative to the provider root.
type Provider interface {
	// List enumerates the children of a directory.
	List(dir string) ([]Entry, error)

	// Open opens a file for reading.
	Open(name string) (io.ReadSeekCloser, error)

	// Stat returns file metadata.
	Stat(name string) (fs.FileInfo, error)

	// WriteFileAtomic replaces the content of a file so that readers
	// observe either the old or the new content, never a mix. Any write
	// lock is released on all exit paths.
	WriteFileAtomic(name string, data []byte) error

	// Remove deletes a file. Missing files are not an error.
	Remove(name string) error

	// Root returns the absolute root this provider is bound to, or ""
	// when the backing filesystem has no host path (in-memory).
	Root() string
}

// folderProvider implements Provider on top of an afero filesystem.
type folderProvider struct {
	fs   afero.Fs
	root string
}

// NewFolderProvider binds a provider to an OS directory.
func NewFolderProvider(root string) (Provider, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open session root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("session root %s is not a directory", root)
	}
	return &folderProvider{
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		root: root,
	}, nil
}

// NewMemProvider returns a provider over the given afero filesystem.
// Intended for tests.
func NewMemProvider(fsys afero.Fs) Provider {
	return &folderProvider{fs: fsys}
}

// Fs exposes the underlying afero filesystem for components that walk the
// whole tree (the catalog builder).
func Fs(p Provider) (afero.Fs, bool) {
	fp, ok := p.(*folderProvider)
	if !ok {
		return nil, false
	}
	return fp.fs, true
}

func (p *folderProvider) List(dir string) ([]Entry, error) {
	infos, err := afero.ReadDir(p.fs, clean(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
			Size:  info.Size(),
		})
	}
	return entries, nil
}

func (p *folderProvider) Open(name string) (io.ReadSeekCloser, error) {
	f, err := p.fs.Open(clean(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

func (p *folderProvider) Stat(name string) (fs.FileInfo, error) {
	return p.fs.Stat(clean(name))
}

// WriteFileAtomic writes to a sibling temp file and renames it over the
// target. The temp file is removed on every failure path.
func (p *folderProvider) WriteFileAtomic(name string, data []byte) error {
	name = clean(name)
	if dir := path.Dir(name); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp := name + ".tmp"
	f, err := p.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		p.fs.Remove(tmp)
		return fmt.Errorf("failed to write temp file for %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		p.fs.Remove(tmp)
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}

	if err := p.fs.Rename(tmp, name); err != nil {
		p.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (p *folderProvider) Remove(name string) error {
	err := p.fs.Remove(clean(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

func (p *folderProvider) Root() string {
	return p.root
}

// HostPath resolves a relative path to an absolute host path when the
// provider is OS-backed. The transcoding engine needs real paths to hand
// to external processes.
func HostPath(p Provider, name string) (string, bool) {
	root := p.Root()
	if root == "" {
		return "", false
	}
	return path.Join(root, clean(name)), true
}

func clean(name string) string {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if name == "/" {
		return "."
	}
	return strings.TrimPrefix(name, "/")
}
