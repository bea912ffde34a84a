// Package xhash provides the seeded 64-bit key hash shared by both backends
// and the workload DNA analyzer. A given seed always produces the same
// digest for the same key bytes, so table layout is reproducible across
// runs and pinnable in tests.
package xhash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hash64 is the hashing capability both backends and the DNA analyzer
// depend on. Hasher is the production implementation; tests substitute
// fakes (e.g. a hasher that sends every key to the same bucket) to exercise
// collision-heavy code paths deterministically.
type Hash64 interface {
	Sum64(key string) uint64
}

// Hasher computes seeded 64-bit hashes of string keys. The zero value is not
// usable; construct with New.
type Hasher struct {
	seedBytes [8]byte
}

// New returns a Hasher that mixes seed into every digest it produces.
func New(seed uint64) Hasher {
	var h Hasher
	binary.LittleEndian.PutUint64(h.seedBytes[:], seed)
	return h
}

// Sum64 returns the seeded 64-bit hash of key.
func (h Hasher) Sum64(key string) uint64 {
	d := xxhash.New()
	// Write never returns an error for xxhash's Digest.
	_, _ = d.Write(h.seedBytes[:])
	_, _ = d.WriteString(key)
	return d.Sum64()
}

// Sum64Bytes is the []byte variant of Sum64, producing the same digest for
// the same bytes without an intermediate string allocation.
func (h Hasher) Sum64Bytes(key []byte) uint64 {
	d := xxhash.New()
	_, _ = d.Write(h.seedBytes[:])
	_, _ = d.Write(key)
	return d.Sum64()
}

// TopHash derives the Go-runtime-map-style "high bits" tag used by the
// chaining backend to short-circuit full key comparisons within a bucket.
// The low bits already select the bucket, so this takes bits 56-63 and
// shifts values below 8 up by 8, mirroring the Go runtime map's reserved
// low tag range; the chaining package itself reserves no tag values.
func TopHash(hash uint64) uint8 {
	top := uint8(hash >> 56)
	if top < 8 {
		top += 8
	}
	return top
}

// Spread folds a 64-bit hash down to n buckets, n required to be a power of
// two, by masking the low bits. Growth-by-doubling then only ever reassigns
// a key to one of two buckets (its old index or old+oldN), matching the Go
// runtime map's own bucket selection discipline.
func Spread(hash uint64, n int) int {
	if n <= 1 {
		return 0
	}
	return int(hash & uint64(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of two, the invariant
// every bucket-count argument to Spread must satisfy.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
