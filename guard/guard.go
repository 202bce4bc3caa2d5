// Package guard provides the primitives used to detect memory corruption: the
// canary (guard word) constant, checksum functions over byte ranges, and a
// registry of poisoned pointer values.
package guard

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// Canary is written adjacent to every guarded region. Any other value found in
// its place signals an out-of-bounds write.
const Canary uint64 = 0x9DEADBEEFBADF00D

// CanarySize is the width, in bytes, of a guard word.
const CanarySize = 8

// ChecksumSize is the width, in bytes, of a stored checksum.
const ChecksumSize = 8

// prime is the multiplier of the polynomial hash.
const prime = 353

// Hash returns the polynomial hash of b: the sum of b[i]*353^i, truncated to 64
// bits. It detects corruption; it is not a cryptographic hash.
func Hash(b []byte) uint64 {
	var sum uint64
	mul := uint64(1)
	for _, x := range b {
		sum += uint64(x) * mul
		mul *= prime
	}
	return sum
}

// A Hasher computes a checksum over a byte range.
type Hasher interface {
	Sum64([]byte) uint64
}

// A HasherFunc converts a function into a Hasher.
type HasherFunc func([]byte) uint64

// Sum64 returns f(b).
func (f HasherFunc) Sum64(b []byte) uint64 { return f(b) }

var (
	// Polynomial is the default Hasher, backed by Hash().
	Polynomial Hasher = HasherFunc(Hash)
	// Keccak returns the first 8 bytes, big-endian, of the Keccak-256 hash.
	// It is markedly slower than Polynomial but spreads single-bit flips
	// across the whole checksum.
	Keccak Hasher = HasherFunc(func(b []byte) uint64 {
		return binary.BigEndian.Uint64(crypto.Keccak256(b)[:8])
	})
)
