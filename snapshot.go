package guardstack

import (
	"fmt"

	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/layout"
	"github.com/solidifylabs/guardstack/types"
)

// A Snapshot is a copy of a Stack's control block and, if it can be safely
// read, its buffer. Fields that don't exist at Level are zero.
type Snapshot[T types.Elem] struct {
	Type  string
	Level types.Level
	Code  types.Code
	Addr  string // of the control block
	Site  Site

	CanaryLow, CanaryHigh uint64
	Size, Capacity        int64
	Data                  string // buffer pointer, formatted with %p
	Allocated             bool   // Data is not nil
	Poison                guard.Sentinel
	Hash                  uint64

	// Buffer is nil if the stack has no buffer, or if the size, capacity or
	// pointer are too damaged to locate it.
	Buffer *BufferSnapshot[T]
}

// A BufferSnapshot is a copy of a guarded buffer.
type BufferSnapshot[T types.Elem] struct {
	CanaryLow, CanaryHigh uint64
	Checksum              uint64 // as stored
	FreshChecksum         uint64 // as recomputed
	Slots                 []T    // all capacity slots, occupied or not
}

// Snapshot copies the Stack's state without performing any automatic checks.
func (s *Stack[T]) Snapshot() Snapshot[T] {
	if s == nil {
		return Snapshot[T]{Type: fmt.Sprintf("%T", s), Code: types.NilStack}
	}
	code := s.Validate()
	snap := Snapshot[T]{
		Type:       fmt.Sprintf("%T", s),
		Level:      s.level,
		Code:       code,
		Addr:       fmt.Sprintf("%p", s),
		Site:       s.site,
		CanaryLow:  s.canaryLow,
		CanaryHigh: s.canaryHigh,
		Size:       s.size,
		Capacity:   s.capacity,
		Data:       fmt.Sprintf("%p", s.data),
		Allocated:  s.data != nil,
		Poison:     guard.PoisonID(s.data),
		Hash:       s.hash,
	}
	if !s.bufferReadable() {
		return snap
	}

	buf := &BufferSnapshot[T]{
		Slots: make([]T, s.capacity),
	}
	for i := range buf.Slots {
		buf.Slots[i] = *s.slot(int64(i))
	}
	if s.level >= types.Canary {
		buf.CanaryLow = s.layout.LeadingCanary(s.data)
		buf.CanaryHigh = s.layout.TrailingCanary(s.data, s.capacity)
	}
	if s.level >= types.Hash {
		buf.Checksum = s.layout.StoredChecksum(s.data)
		buf.FreshChecksum = s.layout.ComputeChecksum(s.data, s.capacity)
	}
	snap.Buffer = buf
	return snap
}

// bufferReadable reports whether the buffer can be read using the control
// block's size, capacity and pointer. This is independent of Validate(): a
// stack whose block checksum or canaries failed still has its buffer listed as
// long as reading it stays within the live allocation.
func (s *Stack[T]) bufferReadable() bool {
	return s.data != nil &&
		s.data == s.live.data &&
		0 <= s.size && s.size <= s.capacity &&
		s.capacity <= s.live.capacity
}

// A Field is a tamperable field of the control block.
type Field int

const (
	FieldCanaryLow Field = iota
	FieldSize
	FieldCapacity
	FieldHash
	FieldCanaryHigh
)

// TamperBlock XORs mask into a field of the control block. It exists to
// demonstrate and test the integrity checks and MUST NOT be used otherwise.
func (s *Stack[T]) TamperBlock(f Field, mask uint64) error {
	switch f {
	case FieldCanaryLow:
		s.canaryLow ^= mask
	case FieldSize:
		s.size ^= int64(mask)
	case FieldCapacity:
		s.capacity ^= int64(mask)
	case FieldHash:
		s.hash ^= mask
	case FieldCanaryHigh:
		s.canaryHigh ^= mask
	default:
		return fmt.Errorf("unknown %T(%d)", f, f)
	}
	return nil
}

// TamperBuffer XORs mask into the byte at offset within a region of the
// buffer. Like TamperBlock(), it exists only to exercise the integrity checks.
func (s *Stack[T]) TamperBuffer(r layout.Region, offset int, mask byte) error {
	if !s.bufferReadable() {
		return fmt.Errorf("%T.TamperBuffer(): buffer not readable (%v)", s, s.Validate())
	}
	if !s.layout.Has(r) {
		return fmt.Errorf("%T.TamperBuffer(): no %v at %v level", s, r, s.level)
	}
	region := s.layout.Region(s.data, s.capacity, r)
	if offset < 0 || offset >= len(region) {
		return fmt.Errorf("%T.TamperBuffer(): offset %d out of range for %d-byte %v", s, offset, len(region), r)
	}
	region[offset] ^= mask
	return nil
}
