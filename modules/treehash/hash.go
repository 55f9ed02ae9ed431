// Package treehash computes content-addressed digests over filesystem
// trees. The digest function is BLAKE3; the digest shape (32-byte array,
// lowercase hex string form) mirrors the object-id convention used
// throughout content-addressed stores built on this hash.
package treehash

import (
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

const (
	// DigestSize is the length in bytes of a Hash.
	DigestSize = 32
	// HexSize is the length of a Hash's hex string encoding.
	HexSize = DigestSize * 2

	// Algorithm names the digest function. Persisted in store config so a
	// store can refuse to reinterpret existing objects under a different
	// algorithm.
	Algorithm = "BLAKE3"
)

// Hash is an opaque treesum: the content digest of a normalized directory
// tree, or of a single file's bytes.
type Hash [DigestSize]byte

// ZeroHash is the Hash value with all bytes zero. It never occurs as the
// treesum of real content and is used as a sentinel "no hash yet" value.
var ZeroHash Hash

// New parses a hex-encoded hash. Malformed input decodes to a zero-padded
// Hash rather than failing; callers that need to validate input should call
// Valid first.
func New(s string) Hash {
	b, _ := hex.DecodeString(s)
	var h Hash
	copy(h[:], b)
	return h
}

// Valid reports whether s is a syntactically well-formed hash: exactly
// HexSize hex digits.
func Valid(s string) bool {
	if len(s) != HexSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	s := string(text)
	if !Valid(s) {
		return fmt.Errorf("treehash: %q is not a valid hash", s)
	}
	*h = New(s)
	return nil
}

// HashSlice attaches sort.Interface to []Hash, ordering by byte value.
type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return string(p[i][:]) < string(p[j][:]) }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Sort sorts hashes in increasing byte order.
func Sort(hs []Hash) { sort.Sort(HashSlice(hs)) }

// Hasher wraps the underlying streaming hash implementation. Callers write
// normalized tree content into it and call Sum to obtain the final Hash.
type Hasher struct {
	hash.Hash
}

// NewHasher returns a Hasher ready to accept writes.
func NewHasher() Hasher {
	return Hasher{Hash: blake3.New()}
}

// Sum returns the Hash of everything written so far, without resetting the
// underlying state.
func (h Hasher) Sum() (out Hash) {
	copy(out[:], h.Hash.Sum(nil))
	return
}
