// Package guardstack implements a self-defending, growable stack. Depending on
// its protection level, a Stack wraps both its buffer and its own control block
// in canaries and checksums so that overwrites, use after Destruct(), and heap
// corruption are detected by the next operation instead of silently spreading.
//
// Protection levels are cumulative (see types.Level):
//
//	Release  size, capacity and buffer pointer only; no automatic checks
//	Dump     + creation site, validation before and after every operation,
//	           and a dump to the diag.Sink on failure
//	Canary   + guard words around the control block and the buffer
//	Hash     + checksums of the control block and the buffer contents
//
// Detection is terminal: a failed check at types.Dump or above dumps the stack
// and panics with an *IntegrityError. There is no recovery path because the
// extent of the corruption is unknown. Popping an empty stack panics with
// ErrEmptyPop at every level.
//
// A Stack is owned by a single goroutine; it provides no synchronisation.
package guardstack

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/solidifylabs/guardstack/diag"
	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/layout"
	"github.com/solidifylabs/guardstack/stackopts"
	"github.com/solidifylabs/guardstack/types"
)

// A Stack is a LIFO container of T values held in a guarded buffer.
//
// The fields from canaryLow to canaryHigh form the control block; canaries
// bracket it and the checksum covers everything between them. The remaining
// fields are configuration, fixed by New(), and bookkeeping of the live
// allocation.
type Stack[T types.Elem] struct {
	canaryLow uint64
	size      int64
	capacity  int64
	// Slot 0 of the buffer; nil iff capacity is 0, or a guard.Poison() value
	// after Destruct().
	data       unsafe.Pointer
	site       Site
	hash       uint64
	canaryHigh uint64

	level  types.Level
	layout *layout.Layout
	hasher guard.Hasher
	sink   *diag.Sink
	log    zerolog.Logger

	// live records the allocation actually in use. It is never validated, only
	// used to bound reads of a buffer whose control block may be corrupt.
	live allocation
}

type allocation struct {
	data     unsafe.Pointer
	capacity int64
}

// New constructs and initialises a Stack, allocating the buffer up front unless
// the configured capacity is 0. At types.Dump and above, the file, function and
// line of the caller are recorded alongside the stackopts.Label(); helpers that
// wrap New() can attribute the Stack to their own caller with
// stackopts.CallerSkip().
func New[T types.Elem](opts ...stackopts.Option) (*Stack[T], error) {
	cfg, err := stackopts.New(opts...)
	if err != nil {
		return nil, err
	}

	var zero T
	s := &Stack[T]{
		level:  cfg.Level,
		layout: layout.For(cfg.Level, unsafe.Sizeof(zero), cfg.Hasher),
		hasher: cfg.Hasher,
		sink:   cfg.Sink,
		log:    cfg.Logger,
	}
	if s.level >= types.Dump {
		s.site = callerSite(cfg.Label, cfg.CallerSkip)
	}
	s.init(cfg.Capacity)
	return s, nil
}

// callerSite returns the Site of the function that called New(), or of one of
// its callers if skip > 0.
func callerSite(label string, skip int) Site {
	site := Site{Label: label}
	pc, file, line, ok := runtime.Caller(2 + skip)
	if !ok {
		return site
	}
	site.File = file
	site.Line = line
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.Func = fn.Name()
	}
	return site
}

func (s *Stack[T]) init(capacity int64) {
	if s.level >= types.Canary {
		s.canaryLow = guard.Canary
		s.canaryHigh = guard.Canary
	}
	s.size = 0
	s.capacity = capacity
	if capacity != 0 {
		s.data = s.layout.Allocate(capacity)
	} else {
		s.data = nil
	}
	s.live = allocation{s.data, capacity}
	s.rehashBlock()
}

// Level returns the Stack's protection level.
func (s *Stack[T]) Level() types.Level { return s.level }

// Site returns where the Stack was created; it is empty below types.Dump.
func (s *Stack[T]) Site() Site { return s.site }

// Push appends v to the top of the stack. If the buffer is full it is grown to
// layout.Grow(capacity) slots, which may move it.
func (s *Stack[T]) Push(v T) {
	s.check("Push", before)

	if s.size == s.capacity {
		grown := layout.Grow(s.capacity)
		s.data = s.layout.Reallocate(s.data, s.capacity, grown)
		s.capacity = grown
		s.live = allocation{s.data, grown}
	}
	*s.slot(s.size) = v
	s.size++

	if s.level >= types.Hash {
		// Order matters: the buffer checksum is refreshed first, but only the
		// pointer to it (not its bytes) feeds into the block checksum.
		s.layout.RefreshChecksum(s.data, s.capacity)
		s.hash = s.blockChecksum()
	}

	s.check("Push", after)
}

// Pop removes and returns the value at the top of the stack. It panics with
// ErrEmptyPop if the stack is empty.
//
// Pop never shrinks the buffer, so the buffer checksum remains valid without
// being refreshed. Any change to shrink on Pop MUST refresh it too.
func (s *Stack[T]) Pop() T {
	s.check("Pop", before)

	if s.size == 0 {
		s.sink.Println("Trying to pop from empty stack.")
		s.log.Error().Str("op", "Pop").Str("label", s.site.Label).Msg(ErrEmptyPop.Error())
		panic(ErrEmptyPop)
	}
	s.size--
	v := *s.slot(s.size)
	s.rehashBlock()

	s.check("Pop", after)
	return v
}

// Size returns the number of values held by the stack.
func (s *Stack[T]) Size() int {
	s.check("Size", before)
	return int(s.size)
}

// Cap returns the number of slots in the buffer.
func (s *Stack[T]) Cap() int {
	s.check("Cap", before)
	return int(s.capacity)
}

// Destruct releases the buffer and leaves the Stack permanently invalid: any
// later operation fails validation at types.Dump and above.
func (s *Stack[T]) Destruct() {
	s.check("Destruct", before)

	if s.live.data != nil {
		s.layout.Release(s.live.data, s.live.capacity)
	}
	s.size = -1
	s.capacity = -1
	s.data = guard.Poison(guard.Destructed)
	s.live = allocation{}
	// Without this, Validate() would report a checksum mismatch instead of the
	// destructed signature.
	s.rehashBlock()
}

// slot returns a pointer to the i'th slot of the buffer.
func (s *Stack[T]) slot(i int64) *T {
	return (*T)(unsafe.Add(s.data, uintptr(i)*s.layout.ElemSize()))
}

// rehashBlock stores a fresh block checksum; it is a no-op below types.Hash.
func (s *Stack[T]) rehashBlock() {
	if s.level >= types.Hash {
		s.hash = s.blockChecksum()
	}
}

// blockChecksum hashes every control-block field between the canaries, in
// declaration order, with the hash field itself taken as zero.
func (s *Stack[T]) blockChecksum() uint64 {
	le := binary.LittleEndian
	buf := make([]byte, 0, 64+len(s.site.Label)+len(s.site.File)+len(s.site.Func))

	buf = le.AppendUint64(buf, uint64(s.size))
	buf = le.AppendUint64(buf, uint64(s.capacity))
	buf = le.AppendUint64(buf, uint64(uintptr(s.data)))
	for _, str := range []string{s.site.Label, s.site.File, s.site.Func} {
		buf = le.AppendUint64(buf, uint64(len(str)))
		buf = append(buf, str...)
	}
	buf = le.AppendUint64(buf, uint64(s.site.Line))
	buf = le.AppendUint64(buf, 0)

	return s.hasher.Sum64(buf)
}

type stage string

const (
	before stage = "before"
	after  stage = "after"
)

// check validates the Stack at types.Dump and above, dumping it and panicking
// with an *IntegrityError on failure. A nil Stack is fatal at every level.
func (s *Stack[T]) check(op string, st stage) {
	if s == nil {
		panic(&IntegrityError{Op: op, Stage: string(st), Code: types.NilStack})
	}
	if s.level < types.Dump {
		return
	}
	code := s.Validate()
	if code == types.OK {
		return
	}

	s.Dump()
	err := &IntegrityError{
		Op:    op,
		Stage: string(st),
		Code:  code,
		Site:  s.site,
	}
	s.log.Error().
		Str("op", op).
		Str("stage", string(st)).
		Uint8("code", uint8(code)).
		Str("class", code.Class().String()).
		Str("label", s.site.Label).
		Str("sink", s.sink.Name()).
		Msg(code.String())
	panic(err)
}

// String returns a one-line summary of the Stack, without validating it.
func (s *Stack[T]) String() string {
	if s == nil {
		return fmt.Sprintf("%T(nil)", s)
	}
	return fmt.Sprintf("%T{level: %v, size: %d, capacity: %d}", s, s.level, s.size, s.capacity)
}
