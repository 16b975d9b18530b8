package assets

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of an asset's final on-disk bytes.
type Digest [32]byte

// String renders the digest in the lowercase hex form manifests carry.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes the hex form used in manifests and lockfiles.
func ParseDigest(raw string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return Digest{}, fmt.Errorf("assets: invalid digest %q: %w", raw, err)
	}
	if len(decoded) != len(digest) {
		return Digest{}, fmt.Errorf("assets: invalid digest length %d, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// DigestReader consumes r and returns its digest and byte count.
func DigestReader(r io.Reader) (Digest, int64, error) {
	hasher := blake3.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return Digest{}, n, err
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, n, nil
}

// DigestFile returns the digest of the file at path.
func DigestFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	digest, _, err := DigestReader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("assets: digest %s: %w", path, err)
	}
	return digest, nil
}
