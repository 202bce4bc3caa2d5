package guard

import (
	"fmt"
	"unsafe"
)

// A Sentinel identifies a poisoned pointer value. The zero value is returned
// for pointers that aren't poisoned, including nil.
type Sentinel int

const (
	NotPoisoned Sentinel = iota
	// Destructed marks a buffer pointer that was released by Destruct().
	Destructed

	numSentinels
)

var sentinelNames = [numSentinels]string{
	NotPoisoned: "Correct pointer",
	Destructed:  "Destructed by Destruct()",
}

// String returns a human-readable description of the Sentinel.
func (s Sentinel) String() string {
	if s < NotPoisoned || s >= numSentinels {
		return fmt.Sprintf("Sentinel(%d)", int(s))
	}
	return sentinelNames[s]
}

// poisonPage reserves one address per Sentinel. As a package-level variable it
// is never nil and can't alias any other allocation.
var poisonPage [numSentinels - 1]byte

// Poison returns the reserved pointer value for the Sentinel. It panics if s
// is NotPoisoned or unknown.
func Poison(s Sentinel) unsafe.Pointer {
	if s <= NotPoisoned || s >= numSentinels {
		panic(fmt.Sprintf("BUG: no poison value for %v", s))
	}
	return unsafe.Pointer(&poisonPage[s-1])
}

// PoisonID returns the Sentinel that p was poisoned with, or NotPoisoned.
func PoisonID(p unsafe.Pointer) Sentinel {
	for i := range poisonPage {
		if p == unsafe.Pointer(&poisonPage[i]) {
			return Sentinel(i + 1)
		}
	}
	return NotPoisoned
}

// PoisonByte fills memory that has been released so that stale contents are
// recognisable in dumps.
const PoisonByte = 0xDE

// Scrub fills b with PoisonByte.
func Scrub(b []byte) {
	for i := range b {
		b[i] = PoisonByte
	}
}
