// Package types defines types shared by the guardstack package and its
// supporting packages, kept separate to avoid import cycles between them.
package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// A Level is a protection level. Levels are cumulative: each one performs all
// of the checks, and stores all of the fields, of the levels below it.
type Level int

const (
	// Release performs no automatic checks and stores only size, capacity and
	// the buffer pointer.
	Release Level = iota
	// Dump adds creation-site provenance, pre/post validation of every
	// operation, and diagnostic rendering on failure.
	Dump
	// Canary adds guard words around the control block and the buffer.
	Canary
	// Hash adds checksums of the control block and of the buffer contents.
	Hash
)

var levelNames = [...]string{"release", "dump", "canary", "hash"}

// String returns the lower-case name of the level.
func (l Level) String() string {
	if l < Release || l > Hash {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel is the inverse of Level.String().
func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if n == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown protection level %q; want one of %q", s, levelNames)
}

// An Elem is a type that can be stored in a guarded buffer. Elements are held
// in raw memory that the garbage collector doesn't scan for pointers, so every
// member of the type set is fixed-size and pointer-free.
type Elem interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~complex64 | ~complex128 |
		uint256.Int | common.Hash | common.Address
}

// Render returns the human-readable representation of v used by stack dumps.
func Render[T Elem](v T) string {
	switch v := any(v).(type) {
	case uint256.Int:
		return v.Dec()
	case common.Hash:
		return v.Hex()
	case common.Address:
		return v.Hex()
	default:
		return fmt.Sprint(v)
	}
}
