package fingerprint

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestFile(t *testing.T) {
	tmpDir := t.TempDir()
	fs := osfs.New(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), []byte("test content"), 0644); err != nil {
		t.Fatal(err)
	}

	sum1, err := File(fs, "test.txt")
	if err != nil {
		t.Fatal(err)
	}
	if sum1 == (Sum{}) {
		t.Fatal("expected non-zero fingerprint")
	}

	sum2, err := File(fs, "test.txt")
	if err != nil {
		t.Fatal(err)
	}
	if sum1 != sum2 {
		t.Errorf("fingerprint mismatch: %s != %s", sum1, sum2)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), []byte("test contenT"), 0644); err != nil {
		t.Fatal(err)
	}
	sum3, err := File(fs, "test.txt")
	if err != nil {
		t.Fatal(err)
	}
	if sum1 == sum3 {
		t.Error("fingerprint should change when a single byte changes")
	}
}

func TestFile_KnownDigest(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, "abc", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := File(fs, "abc")
	if err != nil {
		t.Fatal(err)
	}

	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if sum.String() != want {
		t.Errorf("expected %s, got %s", want, sum.String())
	}
}

func TestFile_IgnoresMetadata(t *testing.T) {
	tmpDir := t.TempDir()
	fs := osfs.New(tmpDir)

	a := filepath.Join(tmpDir, "a.txt")
	b := filepath.Join(tmpDir, "b.txt")
	if err := os.WriteFile(a, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same"), 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := os.Chtimes(b, old, old); err != nil {
		t.Fatal(err)
	}

	sumA, err := File(fs, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	sumB, err := File(fs, "b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if sumA != sumB {
		t.Error("files with equal content but different metadata should be equal")
	}
}

func TestFile_LargerThanChunk(t *testing.T) {
	fs := memfs.New()

	content := bytes.Repeat([]byte("0123456789"), ChunkSize)
	if err := util.WriteFile(fs, "big.bin", content, 0644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := File(fs, "big.bin")
	if err != nil {
		t.Fatal(err)
	}
	fromReader, err := Reader(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if fromFile != fromReader {
		t.Errorf("streamed fingerprint %s differs from in-memory %s", fromFile, fromReader)
	}
}

func TestFile_Missing(t *testing.T) {
	fs := memfs.New()

	_, err := File(fs, "missing.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing.txt") {
		t.Errorf("expected error to name the file, got %v", err)
	}
}

func TestFile_DifferentContent(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, "a", []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := util.WriteFile(fs, "b", []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}

	sumA, err := File(fs, "a")
	if err != nil {
		t.Fatal(err)
	}
	sumB, err := File(fs, "b")
	if err != nil {
		t.Fatal(err)
	}
	if sumA == sumB {
		t.Errorf("expected different content to fingerprint differently, both %s", sumA)
	}
}
