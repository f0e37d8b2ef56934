// Package fingerprint computes content fingerprints used to decide whether
// two files hold the same bytes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
)

// ChunkSize is the number of bytes read from a file per hashing step.
const ChunkSize = 4096

// Sum is the SHA256 digest of a file's content.
type Sum [sha256.Size]byte

// String returns the lowercase hex form of the digest.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// File computes the fingerprint of the file at path within fs.
// Only content bytes are hashed; name, timestamps and permissions are not.
func File(fs billy.Basic, path string) (Sum, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Sum{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sum, err := Reader(f)
	if err != nil {
		return Sum{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sum, nil
}

// Reader computes the fingerprint of everything readable from r.
func Reader(r io.Reader) (Sum, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	// Hide any WriterTo so reads stay ChunkSize bytes at a time.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{r}, buf); err != nil {
		return Sum{}, err
	}

	var sum Sum
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
