// Package layout manages the memory of a guarded buffer. A buffer is a single
// allocation holding, in order:
//
//	| leading canary | checksum | slot[0] | slot[1] | … | trailing canary |
//	|       8B       |    8B    |  size   |  size   |   |       8B        |
//	                             ^ data
//
// Each section other than the slots is present only at the protection level
// that introduces it. Callers only ever hold the data pointer, which points at
// slot 0 regardless of level; the Layout knows how to find everything else
// relative to it.
package layout

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/types"
)

// A Region is a named section of a guarded buffer.
type Region int

const (
	LeadingCanary Region = iota
	Checksum
	Slots
	TrailingCanary
)

func (r Region) String() string {
	switch r {
	case LeadingCanary:
		return "leading canary"
	case Checksum:
		return "checksum"
	case Slots:
		return "slots"
	case TrailingCanary:
		return "trailing canary"
	default:
		return fmt.Sprintf("Region(%d)", int(r))
	}
}

// A span is a Region along with its size. Slots are the only Region with a
// size that depends on capacity, which is signalled by perSlot.
type span struct {
	region  Region
	size    uintptr
	perSlot bool
}

// A Layout describes the ordered regions of a buffer at a specific protection
// level and element size. It is immutable once constructed by For().
type Layout struct {
	level    types.Level
	elemSize uintptr
	hasher   guard.Hasher
	spans    []span
	header   uintptr // bytes before slot 0
}

// For returns the Layout of a buffer holding elements of elemSize bytes at the
// specified protection level. If hasher is nil, guard.Polynomial is used.
func For(level types.Level, elemSize uintptr, hasher guard.Hasher) *Layout {
	if hasher == nil {
		hasher = guard.Polynomial
	}
	l := &Layout{
		level:    level,
		elemSize: elemSize,
		hasher:   hasher,
	}

	if level >= types.Canary {
		l.spans = append(l.spans, span{region: LeadingCanary, size: guard.CanarySize})
	}
	if level >= types.Hash {
		l.spans = append(l.spans, span{region: Checksum, size: guard.ChecksumSize})
	}
	l.spans = append(l.spans, span{region: Slots, size: elemSize, perSlot: true})
	if level >= types.Canary {
		l.spans = append(l.spans, span{region: TrailingCanary, size: guard.CanarySize})
	}

	for _, s := range l.spans {
		if s.region == Slots {
			break
		}
		l.header += s.size
	}
	return l
}

// Level returns the protection level that the Layout was constructed for.
func (l *Layout) Level() types.Level { return l.level }

// ElemSize returns the size, in bytes, of a single slot.
func (l *Layout) ElemSize() uintptr { return l.elemSize }

// Has reports whether the Region exists at the Layout's protection level.
func (l *Layout) Has(r Region) bool {
	for _, s := range l.spans {
		if s.region == r {
			return true
		}
	}
	return false
}

// Header returns the number of bytes between the start of the allocation and
// slot 0.
func (l *Layout) Header() uintptr { return l.header }

// Size returns the size of the Region in a buffer of the specified capacity, or
// 0 if the Region doesn't exist.
func (l *Layout) Size(r Region, capacity int64) uintptr {
	for _, s := range l.spans {
		if s.region == r {
			return s.bytes(capacity)
		}
	}
	return 0
}

func (s span) bytes(capacity int64) uintptr {
	if s.perSlot {
		return s.size * uintptr(capacity)
	}
	return s.size
}

// Offset returns the offset of the Region from the start of the allocation. It
// panics if the Region doesn't exist at the Layout's level.
func (l *Layout) Offset(r Region, capacity int64) uintptr {
	var off uintptr
	for _, s := range l.spans {
		if s.region == r {
			return off
		}
		off += s.bytes(capacity)
	}
	panic(fmt.Sprintf("BUG: %v not present at %v level", r, l.level))
}

// Reserve returns the total number of bytes allocated for a buffer of the
// specified capacity.
func (l *Layout) Reserve(capacity int64) uintptr {
	var n uintptr
	for _, s := range l.spans {
		n += s.bytes(capacity)
	}
	return n
}

// Grow returns the capacity to which a full buffer of the specified capacity is
// grown: ceil((capacity+1) * 1.5).
func Grow(capacity int64) int64 {
	return (3*(capacity+1) + 1) / 2
}

// alloc returns a pointer to n zeroed bytes. The memory is backed by a []uint64
// so it is always 8-byte aligned, which in turn aligns slot 0 for every
// types.Elem.
func alloc(n uintptr) unsafe.Pointer {
	words := make([]uint64, max(1, (n+7)/8))
	return unsafe.Pointer(&words[0])
}

// AllocationStart returns the start of the allocation that data points into.
// It is the inverse of the adjustment made by Allocate() and Reallocate().
func (l *Layout) AllocationStart(data unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(data, -int(l.header))
}

// Memory returns the entire allocation, including canaries and checksum, of
// the buffer at data. The returned slice aliases the buffer.
func (l *Layout) Memory(data unsafe.Pointer, capacity int64) []byte {
	return unsafe.Slice((*byte)(l.AllocationStart(data)), l.Reserve(capacity))
}

// Region returns the bytes of the specified Region, aliasing the buffer. It
// panics if the Region doesn't exist.
func (l *Layout) Region(data unsafe.Pointer, capacity int64, r Region) []byte {
	off := l.Offset(r, capacity)
	return l.Memory(data, capacity)[off : off+l.Size(r, capacity)]
}

// Allocate returns the data pointer of a new, zeroed buffer of the specified
// capacity with canaries and checksum already in place.
func (l *Layout) Allocate(capacity int64) unsafe.Pointer {
	start := alloc(l.Reserve(capacity))
	data := unsafe.Add(start, l.header)

	if l.Has(LeadingCanary) {
		l.putWord(data, capacity, LeadingCanary, guard.Canary)
		l.putWord(data, capacity, TrailingCanary, guard.Canary)
	}
	l.RefreshChecksum(data, capacity)
	return data
}

// Reallocate resizes the buffer at data from oldCap to newCap slots, returning
// the new data pointer; data MUST NOT be used after Reallocate returns. If data
// is nil, Reallocate is equivalent to Allocate(newCap).
//
// The header (leading canary and checksum) is carried over verbatim, as are
// the slots that fit in newCap. Any new slots are zeroed, the trailing canary
// is written at the new end, and the checksum is recomputed.
func (l *Layout) Reallocate(data unsafe.Pointer, oldCap, newCap int64) unsafe.Pointer {
	if data == nil {
		return l.Allocate(newCap)
	}

	old := l.Memory(data, oldCap)
	start := alloc(l.Reserve(newCap))
	next := unsafe.Slice((*byte)(start), l.Reserve(newCap))

	// Deliberately excludes the old trailing canary, which would otherwise
	// land in the middle of the new slots.
	keep := l.header + l.elemSize*uintptr(min(oldCap, newCap))
	copy(next, old[:keep])
	guard.Scrub(old)

	data = unsafe.Add(start, l.header)
	if l.Has(TrailingCanary) {
		l.putWord(data, newCap, TrailingCanary, guard.Canary)
	}
	l.RefreshChecksum(data, newCap)
	return data
}

// Release scrubs the buffer at data, after which it MUST NOT be used. The
// memory itself is reclaimed by the garbage collector.
func (l *Layout) Release(data unsafe.Pointer, capacity int64) {
	guard.Scrub(l.Memory(data, capacity))
}

func (l *Layout) word(data unsafe.Pointer, capacity int64, r Region) uint64 {
	return binary.LittleEndian.Uint64(l.Region(data, capacity, r))
}

func (l *Layout) putWord(data unsafe.Pointer, capacity int64, r Region, v uint64) {
	binary.LittleEndian.PutUint64(l.Region(data, capacity, r), v)
}

// LeadingCanary returns the guard word before the header.
func (l *Layout) LeadingCanary(data unsafe.Pointer) uint64 {
	return l.word(data, 0, LeadingCanary)
}

// TrailingCanary returns the guard word after the last slot.
func (l *Layout) TrailingCanary(data unsafe.Pointer, capacity int64) uint64 {
	return l.word(data, capacity, TrailingCanary)
}

// StoredChecksum returns the checksum held in the buffer's header.
func (l *Layout) StoredChecksum(data unsafe.Pointer) uint64 {
	return l.word(data, 0, Checksum)
}

// ComputeChecksum returns a fresh checksum over all capacity slots, occupied or
// not.
func (l *Layout) ComputeChecksum(data unsafe.Pointer, capacity int64) uint64 {
	return l.hasher.Sum64(l.Region(data, capacity, Slots))
}

// RefreshChecksum stores ComputeChecksum() in the header. It is a no-op below
// the Hash level.
func (l *Layout) RefreshChecksum(data unsafe.Pointer, capacity int64) {
	if !l.Has(Checksum) {
		return
	}
	l.putWord(data, capacity, Checksum, l.ComputeChecksum(data, capacity))
}
