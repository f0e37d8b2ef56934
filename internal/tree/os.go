package tree

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// OSFS is an on-disk filesystem rooted at a directory that can also carry
// file mode and modification time over to copies.
type OSFS struct {
	billy.Filesystem
	root string
}

// NewOS returns a filesystem rooted at root
func NewOS(root string) *OSFS {
	return &OSFS{
		Filesystem: osfs.New(root),
		root:       root,
	}
}

// Chmod changes the mode of the named file
func (fs *OSFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.abs(name), mode)
}

// Chtimes changes the access and modification times of the named file
func (fs *OSFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(fs.abs(name), atime, mtime)
}

func (fs *OSFS) abs(name string) string {
	return filepath.Join(fs.root, filepath.FromSlash(name))
}
