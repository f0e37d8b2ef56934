// Package testutil builds and inspects directory trees in tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// DirMarker is the snapshot value recorded for a directory
const DirMarker = "<dir>"

// WriteTree creates the given entries below root. Keys are slash-separated
// relative positions; a key ending in "/" creates a directory, any other
// key creates a file holding the value.
func WriteTree(t testing.TB, root string, entries map[string]string) {
	t.Helper()

	for rel, content := range entries {
		path := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(rel, "/")))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("failed to create directory %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

// Snapshot returns every entry below root keyed by relative position.
// Files map to their content, directories to DirMarker.
func Snapshot(t testing.TB, root string) map[string]string {
	t.Helper()

	snap := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			snap[rel] = DirMarker
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snap[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to snapshot %s: %v", root, err)
	}
	return snap
}

// Expand turns WriteTree input into the Snapshot it produces, adding the
// implicit parent directories.
func Expand(entries map[string]string) map[string]string {
	snap := make(map[string]string)
	for rel, content := range entries {
		if strings.HasSuffix(rel, "/") {
			rel = strings.TrimSuffix(rel, "/")
			content = DirMarker
		}
		snap[rel] = content
		for dir := parentOf(rel); dir != ""; dir = parentOf(dir) {
			snap[dir] = DirMarker
		}
	}
	return snap
}

func parentOf(rel string) string {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return ""
	}
	return rel[:i]
}
