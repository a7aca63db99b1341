package classfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// ---------------------------------------------------------------------------
// Content digests
// ---------------------------------------------------------------------------

// Digest is a SHA-256 content hash.
type Digest [32]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters of the digest.
func (d Digest) Short() string {
	return d.String()[:12]
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// HashBytes hashes raw content such as an image file or template source.
func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// HashClass computes the digest of a single class from its image encoding.
// Two classes with equal structure and bodies have equal digests.
func HashClass(c *ClassNode) (Digest, error) {
	data, err := EncodeImage([]*ClassNode{c}, ImageFlagNone)
	if err != nil {
		return Digest{}, err
	}
	return sha256.Sum256(data), nil
}

// HashClasses computes an order-independent digest of a class set. The
// result covers the sorted per-class digests.
func HashClasses(classes []*ClassNode) (Digest, error) {
	sums := make([]Digest, 0, len(classes))
	for _, c := range classes {
		d, err := HashClass(c)
		if err != nil {
			return Digest{}, err
		}
		sums = append(sums, d)
	}
	sort.Slice(sums, func(i, j int) bool {
		return bytes.Compare(sums[i][:], sums[j][:]) < 0
	})

	// Tag byte for class set hash format
	buf := []byte{0x01}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sums)))
	buf = append(buf, lenBuf[:]...)
	for _, d := range sums {
		buf = append(buf, d[:]...)
	}
	return sha256.Sum256(buf), nil
}
