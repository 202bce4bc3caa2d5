package guardstack

import (
	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/types"
)

// Validate returns the first failing integrity check, or types.OK. The checks
// run in a fixed order and later ones assume that earlier ones passed; in
// particular the buffer is only inspected once the block's fields are known to
// be sane.
//
// Validate is available at every level, but below types.Canary it only checks
// the relationship between size, capacity and the buffer pointer. Operations
// only call it automatically at types.Dump and above.
func (s *Stack[T]) Validate() types.Code {
	if s == nil {
		return types.NilStack
	}

	if s.level >= types.Canary {
		if s.canaryLow != guard.Canary {
			return types.BlockCanaryLow
		}
		if s.canaryHigh != guard.Canary {
			return types.BlockCanaryHigh
		}
	}
	if s.level >= types.Hash && s.blockChecksum() != s.hash {
		return types.BlockChecksum
	}

	switch {
	case s.size < 0:
		return types.NegativeSize
	case s.capacity < 0:
		return types.NegativeCapacity
	case s.size > s.capacity:
		return types.SizeExceedsCapacity
	case guard.PoisonID(s.data) != guard.NotPoisoned:
		return types.PoisonedPointer
	case s.data == nil:
		return types.OK // valid empty stack
	}

	if s.level >= types.Canary {
		if s.layout.LeadingCanary(s.data) != guard.Canary {
			return types.BufferCanaryLow
		}
		// A capacity beyond the live allocation puts the trailing canary out
		// of reach, which is indistinguishable from it having been overwritten.
		if s.capacity > s.live.capacity {
			return types.BufferCanaryHigh
		}
		if s.layout.TrailingCanary(s.data, s.capacity) != guard.Canary {
			return types.BufferCanaryHigh
		}
	}
	if s.level >= types.Hash && s.layout.ComputeChecksum(s.data, s.capacity) != s.layout.StoredChecksum(s.data) {
		return types.BufferChecksum
	}
	return types.OK
}

// OK is equivalent to Validate() == types.OK.
func (s *Stack[T]) OK() bool {
	return s.Validate() == types.OK
}
