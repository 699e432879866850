// Package hashid implements spec §4.1: content-addressed blob identity
// and the deterministic band-value hash used by the LSH bander. No
// randomness other than the seeded MinHash parameter matrices enters any
// identifier the engine produces.
package hashid

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"

	"github.com/standardbeagle/sourcesim/internal/types"
)

// BlobID returns the lowercase-hex SHA1 of raw file bytes.
func BlobID(content []byte) types.BlobID {
	sum := sha1.Sum(content)
	return types.BlobID(hex.EncodeToString(sum[:]))
}

// BandPair is one (k*, t*) coordinate of a sketch, spec §3.
type BandPair struct {
	K int64
	T int64
}

// BandValue hashes one band's R sketch pairs into a single opaque value,
// serializing each pair as two fixed-width big-endian int64s before
// hashing, per spec §4.1.
func BandValue(pairs []BandPair) string {
	buf := make([]byte, 16*len(pairs))
	for i, p := range pairs {
		binary.BigEndian.PutUint64(buf[i*16:], uint64(p.K))
		binary.BigEndian.PutUint64(buf[i*16+8:], uint64(p.T))
	}
	sum := sha1.Sum(buf)
	return hex.EncodeToString(sum[:])
}
