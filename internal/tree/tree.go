// Package tree lists the entries of a directory tree by relative position.
package tree

import (
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
)

// Kind classifies a directory entry
type Kind int

const (
	// Other covers symlinks, devices, sockets and pipes, which are not synchronized
	Other Kind = iota
	File
	Dir
)

// String returns the word used for the kind in log messages
func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Dir:
		return "directory"
	default:
		return "other"
	}
}

// KindOf classifies a file mode
func KindOf(mode os.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return File
	case mode.IsDir():
		return Dir
	default:
		return Other
	}
}

// Entry is a named child of a directory
type Entry struct {
	Name    string
	Path    string // relative position, slash separated
	Kind    Kind
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
}

// Root is the relative position of a tree root
const Root = ""

// Join returns the relative position of name inside dir
func Join(dir, name string) string {
	if dir == Root {
		return name
	}
	return path.Join(dir, name)
}

// List reads the entries of dir, sorted by name
func List(fs billy.Dir, dir string) ([]Entry, error) {
	infos, err := fs.ReadDir(fsPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		entries = append(entries, FromInfo(dir, info))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// FromInfo builds the entry for info found inside dir
func FromInfo(dir string, info os.FileInfo) Entry {
	return Entry{
		Name:    info.Name(),
		Path:    Join(dir, info.Name()),
		Kind:    KindOf(info.Mode()),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
}

// Index maps entries by name
func Index(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}

// fsPath converts a relative position into a path billy accepts for the root
func fsPath(rel string) string {
	if rel == Root {
		return "."
	}
	return rel
}
