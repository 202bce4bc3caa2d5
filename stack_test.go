package guardstack

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/solidifylabs/guardstack/diag"
	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/layout"
	"github.com/solidifylabs/guardstack/stackopts"
	"github.com/solidifylabs/guardstack/types"
)

var allLevels = []types.Level{types.Release, types.Dump, types.Canary, types.Hash}

// newStack calls New[T](), failing the test on error. The level and a
// discarding logger are always set, and the Stack's Site is that of the
// calling test; opts are applied afterwards.
func newStack[T types.Elem](t *testing.T, level types.Level, opts ...stackopts.Option) *Stack[T] {
	t.Helper()
	opts = append([]stackopts.Option{
		stackopts.Level(level),
		stackopts.Logger(zerolog.Nop()),
		stackopts.CallerSkip(1),
	}, opts...)
	s, err := New[T](opts...)
	if err != nil {
		t.Fatalf("New[%T](...) error %v", *new(T), err)
	}
	return s
}

// recovered calls fn and returns whatever it panicked with, or nil.
func recovered(fn func()) (r any) {
	defer func() { r = recover() }()
	fn()
	return nil
}

// wantIntegrityPanic asserts that fn panics with an *IntegrityError carrying
// the Code.
func wantIntegrityPanic(t *testing.T, fn func(), want types.Code) *IntegrityError {
	t.Helper()
	r := recovered(fn)
	err, ok := r.(*IntegrityError)
	if !ok {
		t.Fatalf("recover() got %T(%v); want %T", r, r, err)
	}
	if err.Code != want {
		t.Errorf("%T.Code got %d (%v); want %d (%v)", err, err.Code, err.Code, want, want)
	}
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("errors.Is(%v, ErrIntegrity) got false", err)
	}
	return err
}

func TestInit(t *testing.T) {
	for _, level := range allLevels {
		for _, capacity := range []int64{0, 1, 2, 100} {
			t.Run(fmt.Sprintf("%v/capacity=%d", level, capacity), func(t *testing.T) {
				s := newStack[int64](t, level, stackopts.Capacity(capacity))
				if got := s.Size(); got != 0 {
					t.Errorf("Size() got %d; want 0", got)
				}
				if got := s.Cap(); int64(got) != capacity {
					t.Errorf("Cap() got %d; want %d", got, capacity)
				}
				if got := s.Validate(); got != types.OK {
					t.Errorf("Validate() got %v; want %v", got, types.OK)
				}
				if got := s.data == nil; got != (capacity == 0) {
					t.Errorf("buffer pointer nil = %t with capacity %d", got, capacity)
				}
			})
		}
	}
}

func TestDefaultCapacity(t *testing.T) {
	s := newStack[int32](t, types.Hash)
	if got, want := s.Cap(), stackopts.DefaultCapacity; got != want {
		t.Errorf("Cap() got %d; want %d", got, want)
	}
}

func TestLIFO(t *testing.T) {
	var group errgroup.Group
	for _, level := range allLevels {
		level := level
		for seed := int64(0); seed < 5; seed++ {
			seed := seed
			// Every Stack is owned by exactly one goroutine.
			group.Go(func() error {
				return lifoProperty(level, seed)
			})
		}
	}
	if err := group.Wait(); err != nil {
		t.Error(err)
	}
}

// lifoProperty runs a random sequence of pushes and pops (never popping an
// empty stack) against both a Stack and a reference slice.
func lifoProperty(level types.Level, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	s, err := New[int](stackopts.Level(level), stackopts.Capacity(rng.Int63n(4)), stackopts.Logger(zerolog.Nop()))
	if err != nil {
		return err
	}

	var ref []int
	pushes, pops := 0, 0
	for i := 0; i < 500; i++ {
		if len(ref) == 0 || rng.Intn(3) > 0 {
			v := rng.Int()
			s.Push(v)
			ref = append(ref, v)
			pushes++
			continue
		}
		got := s.Pop()
		want := ref[len(ref)-1]
		ref = ref[:len(ref)-1]
		pops++
		if got != want {
			return fmt.Errorf("level %v seed %d: Pop() got %d; want %d", level, seed, got, want)
		}
	}

	if got, want := s.Size(), pushes-pops; got != want {
		return fmt.Errorf("level %v seed %d: Size() got %d; want pushes - pops = %d", level, seed, got, want)
	}
	if code := s.Validate(); code != types.OK {
		return fmt.Errorf("level %v seed %d: Validate() got %v", level, seed, code)
	}
	return nil
}

func TestGrowthLaw(t *testing.T) {
	for _, level := range allLevels {
		t.Run(level.String(), func(t *testing.T) {
			s := newStack[uint16](t, level, stackopts.Capacity(0))

			var got, want []int
			wantCap := int64(0)
			for i := 0; i < 40; i++ {
				if int64(i) == wantCap {
					wantCap = layout.Grow(wantCap)
				}
				s.Push(uint16(i))
				got = append(got, s.Cap())
				want = append(want, int(wantCap))
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Cap() after each Push() diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNoReallocationWhenPushFits(t *testing.T) {
	s := newStack[int64](t, types.Hash, stackopts.Capacity(4))
	data := s.data
	for i := 0; i < 4; i++ {
		s.Push(int64(i))
		if s.data != data {
			t.Fatalf("Push() #%d reallocated with spare capacity", i)
		}
	}
	s.Push(4)
	if s.data == data {
		t.Errorf("Push() into full buffer didn't reallocate")
	}
	if got, want := s.Cap(), 8; got != want {
		t.Errorf("Cap() after growth got %d; want %d", got, want)
	}
}

func TestEndToEnd(t *testing.T) {
	for _, level := range allLevels {
		t.Run(level.String(), func(t *testing.T) {
			var sink bytes.Buffer
			s := newStack[int](t, level, stackopts.Capacity(2), stackopts.Sink(diag.NewSink(&sink)))

			for _, v := range []int{10, 20, 30} {
				s.Push(v)
			}
			if got, want := s.Cap(), 5; got != want {
				t.Errorf("Cap() after 3 pushes into capacity 2 got %d; want %d", got, want)
			}

			if got, want := s.Pop(), 30; got != want {
				t.Errorf("Pop() got %d; want %d", got, want)
			}
			if got, want := s.Size(), 2; got != want {
				t.Errorf("Size() got %d; want %d", got, want)
			}
			if got, want := s.Pop(), 20; got != want {
				t.Errorf("Pop() got %d; want %d", got, want)
			}
			if got, want := s.Pop(), 10; got != want {
				t.Errorf("Pop() got %d; want %d", got, want)
			}

			if got := recovered(func() { s.Pop() }); got != ErrEmptyPop {
				t.Errorf("Pop() on empty stack; recover() got %v; want %v", got, ErrEmptyPop)
			}
			if got, want := sink.String(), "Trying to pop from empty stack.\n"; got != want {
				t.Errorf("sink after empty Pop() got %q; want %q", got, want)
			}
		})
	}
}

func TestDestruct(t *testing.T) {
	for _, level := range allLevels {
		for _, capacity := range []int64{0, 3} {
			t.Run(fmt.Sprintf("%v/capacity=%d", level, capacity), func(t *testing.T) {
				s := newStack[float64](t, level, stackopts.Capacity(capacity))
				if capacity > 0 {
					s.Push(1.5)
				}
				s.Destruct()

				if got, want := s.Validate(), types.NegativeSize; got != want {
					t.Errorf("Validate() after Destruct() got %v; want %v", got, want)
				}
				if got, want := guard.PoisonID(s.data), guard.Destructed; got != want {
					t.Errorf("PoisonID(data) after Destruct() got %v; want %v", got, want)
				}

				if level < types.Dump {
					// Idempotent at Release as there are no checks, and the
					// poisoned pointer is never released.
					s.Destruct()
					return
				}
				for name, op := range map[string]func(){
					"Push":     func() { s.Push(2) },
					"Pop":      func() { s.Pop() },
					"Size":     func() { s.Size() },
					"Destruct": s.Destruct,
				} {
					err := wantIntegrityPanic(t, op, types.NegativeSize)
					if err.Op != name || err.Stage != "before" {
						t.Errorf("%s() after Destruct() panicked with %q", name, err)
					}
				}
			})
		}
	}
}

func TestDestructReleasesBuffer(t *testing.T) {
	s := newStack[uint32](t, types.Hash, stackopts.Capacity(2))
	mem := s.layout.Memory(s.data, s.capacity)
	s.Destruct()
	for i, b := range mem {
		if b != guard.PoisonByte {
			t.Fatalf("buffer byte %d = %#x after Destruct(); want scrubbed", i, b)
		}
	}
}

func TestValidateNil(t *testing.T) {
	var s *Stack[int]
	if got, want := s.Validate(), types.NilStack; got != want {
		t.Errorf("nil Validate() got %v; want %v", got, want)
	}
	// A nil Stack has no level so the check is unconditional.
	wantIntegrityPanic(t, func() { s.Push(1) }, types.NilStack)
	wantIntegrityPanic(t, func() { s.Size() }, types.NilStack)
}

// corrupt flips the low bit of the byte at offset from the start of the
// buffer's allocation.
func corrupt[T types.Elem](s *Stack[T], offset int) {
	s.layout.Memory(s.data, s.capacity)[offset] ^= 1
}

func TestBufferCorruption(t *testing.T) {
	type codes struct {
		canary, hash types.Code
	}
	tests := []struct {
		name string
		// offset relative to slot 0
		offset func(capacity int) int
		want   codes
	}{
		{
			name:   "byte before slot 0",
			offset: func(int) int { return -1 },
			// At Hash, the byte before slot 0 is part of the checksum.
			want: codes{canary: types.BufferCanaryLow, hash: types.BufferChecksum},
		},
		{
			name:   "first byte of allocation",
			offset: nil,
			want:   codes{canary: types.BufferCanaryLow, hash: types.BufferCanaryLow},
		},
		{
			name:   "byte after last slot",
			offset: func(c int) int { return 8 * c },
			want:   codes{canary: types.BufferCanaryHigh, hash: types.BufferCanaryHigh},
		},
		{
			name:   "occupied slot",
			offset: func(int) int { return 3 },
			want:   codes{canary: types.OK, hash: types.BufferChecksum},
		},
		{
			name:   "reserved slot",
			offset: func(c int) int { return 8*c - 1 },
			want:   codes{canary: types.OK, hash: types.BufferChecksum},
		},
	}

	for _, tt := range tests {
		for _, level := range []types.Level{types.Canary, types.Hash} {
			t.Run(fmt.Sprintf("%s/%v", tt.name, level), func(t *testing.T) {
				const capacity = 4
				s := newStack[int64](t, level, stackopts.Capacity(capacity))
				s.Push(42)

				off := 0
				if tt.offset != nil {
					off = int(s.layout.Header()) + tt.offset(capacity)
				}
				corrupt(s, off)

				want := tt.want.canary
				if level == types.Hash {
					want = tt.want.hash
				}
				if got := s.Validate(); got != want {
					t.Errorf("Validate() got %d (%v); want %d (%v)", got, got, want, want)
				}
			})
		}
	}
}

func TestBlockCorruption(t *testing.T) {
	tests := []struct {
		field Field
		mask  uint64
		level types.Level
		want  types.Code
	}{
		{FieldCanaryLow, 1, types.Canary, types.BlockCanaryLow},
		{FieldCanaryHigh, 1 << 63, types.Canary, types.BlockCanaryHigh},
		{FieldCanaryLow, 1, types.Hash, types.BlockCanaryLow},
		{FieldCanaryHigh, 1, types.Hash, types.BlockCanaryHigh},
		{FieldHash, 1, types.Hash, types.BlockChecksum},
		{FieldSize, 1, types.Hash, types.BlockChecksum},
		{FieldSize, 1 << 8, types.Canary, types.SizeExceedsCapacity},
		{FieldSize, 1 << 63, types.Canary, types.NegativeSize},
		{FieldSize, 1 << 63, types.Release, types.NegativeSize},
		{FieldCapacity, 1 << 63, types.Canary, types.NegativeCapacity},
		{FieldCapacity, 1 << 63, types.Release, types.NegativeCapacity},
		{FieldCapacity, 1 << 3, types.Canary, types.SizeExceedsCapacity}, // 8 -> 0
		{FieldCapacity, 1, types.Hash, types.BlockChecksum},
		// Beyond the allocation, so the trailing canary can't be where
		// capacity says it is.
		{FieldCapacity, 1 << 4, types.Canary, types.BufferCanaryHigh},
		// Undetectable without a checksum.
		{FieldSize, 1, types.Canary, types.OK},
		{FieldCanaryLow, 1, types.Dump, types.OK},
		{FieldCapacity, 1, types.Release, types.OK},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/field=%d/mask=%#x", tt.level, tt.field, tt.mask), func(t *testing.T) {
			s := newStack[int8](t, tt.level, stackopts.Capacity(8))
			s.Push(1)
			s.Push(2)
			if err := s.TamperBlock(tt.field, tt.mask); err != nil {
				t.Fatalf("TamperBlock() error %v", err)
			}
			if got := s.Validate(); got != tt.want {
				t.Errorf("Validate() got %v; want %v", got, tt.want)
			}
		})
	}
}

func TestPoisonedPointer(t *testing.T) {
	for _, level := range allLevels {
		t.Run(level.String(), func(t *testing.T) {
			s := newStack[int](t, level, stackopts.Capacity(0))
			s.data = guard.Poison(guard.Destructed)
			s.rehashBlock() // isolate the pointer check from the block checksum

			if got, want := s.Validate(), types.PoisonedPointer; got != want {
				t.Errorf("Validate() got %d (%v); want %d (%v)", got, got, want, want)
			}
			if level >= types.Dump {
				wantIntegrityPanic(t, func() { s.Push(1) }, types.PoisonedPointer)
			}
		})
	}
}

func TestTamperBuffer(t *testing.T) {
	s := newStack[int32](t, types.Hash, stackopts.Capacity(2))
	if err := s.TamperBuffer(layout.TrailingCanary, 7, 0x80); err != nil {
		t.Fatalf("TamperBuffer() error %v", err)
	}
	if got, want := s.Validate(), types.BufferCanaryHigh; got != want {
		t.Errorf("Validate() got %v; want %v", got, want)
	}

	if err := s.TamperBuffer(layout.Slots, 8, 1); err == nil {
		t.Errorf("TamperBuffer() beyond last slot got nil error")
	}

	c := newStack[int32](t, types.Canary, stackopts.Capacity(2))
	if err := c.TamperBuffer(layout.Checksum, 0, 1); err == nil {
		t.Errorf("TamperBuffer(%v) at %v level got nil error", layout.Checksum, types.Canary)
	}
	empty := newStack[int32](t, types.Canary, stackopts.Capacity(0))
	if err := empty.TamperBuffer(layout.Slots, 0, 1); err == nil {
		t.Errorf("TamperBuffer() without a buffer got nil error")
	}
}

func TestHaltOnCorruption(t *testing.T) {
	for _, level := range allLevels {
		t.Run(level.String(), func(t *testing.T) {
			var sink, logs bytes.Buffer
			s := newStack[int](t, level,
				stackopts.Capacity(2),
				stackopts.Label("victim"),
				stackopts.Sink(diag.NewSink(&sink)),
				stackopts.Logger(zerolog.New(&logs)),
			)
			s.Push(7)
			s.size = 3 // size > capacity, undetected by the canaries

			if level == types.Release {
				s.size = 1 // restore, as the next op would write out of bounds
				s.Push(8)
				if sink.Len() > 0 || logs.Len() > 0 {
					t.Errorf("Release level wrote diagnostics")
				}
				return
			}

			want := types.SizeExceedsCapacity
			if level == types.Hash {
				want = types.BlockChecksum
			}
			err := wantIntegrityPanic(t, func() { s.Push(8) }, want)
			if got, want := err.Site.Label, "victim"; got != want {
				t.Errorf("%T.Site.Label got %q; want %q", err, got, want)
			}
			if !strings.Contains(err.Site.File, "stack_test.go") {
				t.Errorf("%T.Site.File got %q; want containing stack_test.go", err, err.Site.File)
			}
			if !strings.Contains(err.Error(), "before Push()") {
				t.Errorf("%T.Error() got %q; want containing %q", err, err.Error(), "before Push()")
			}

			dump := sink.String()
			for _, substr := range []string{
				want.String(),
				`"victim"`,
				"size = 3",
				"capacity = 2",
			} {
				if !strings.Contains(dump, substr) {
					t.Errorf("dump missing %q:\n%s", substr, dump)
				}
			}
			if !strings.Contains(logs.String(), `"op":"Push"`) {
				t.Errorf("log missing op field: %s", logs.String())
			}
		})
	}
}

func TestPostConditionFailure(t *testing.T) {
	// A Hasher that tampers with the control block while Push() refreshes the
	// buffer checksum, i.e. between the pre- and post-condition checks.
	var s *Stack[int16]
	armed := false
	hasher := guard.HasherFunc(func(b []byte) uint64 {
		if armed && len(b) > 0 && s.size == 1 {
			armed = false
			s.canaryHigh ^= 1
		}
		return guard.Hash(b)
	})
	s = newStack[int16](t, types.Hash, stackopts.Capacity(2), stackopts.Hasher(hasher))

	armed = true
	err := wantIntegrityPanic(t, func() { s.Push(1) }, types.BlockCanaryHigh)
	if err.Stage != "after" {
		t.Errorf("%T.Stage got %q; want %q", err, err.Stage, "after")
	}
}

func TestDumpFormat(t *testing.T) {
	var sink bytes.Buffer
	s := newStack[int](t, types.Hash, stackopts.Capacity(3), stackopts.Label("ops"), stackopts.Sink(diag.NewSink(&sink)))
	s.Push(10)
	s.Push(20)
	s.Dump()

	lines := strings.Split(strings.TrimSpace(sink.String()), "\n")
	if !strings.HasPrefix(lines[0], "*guardstack.Stack[int] (0: ok) [0x") {
		t.Errorf("dump header got %q", lines[0])
	}

	canary := fmt.Sprintf("%x (standard = %x)", guard.Canary, guard.Canary)
	want := []string{
		"    canary_low = " + canary,
		"    size = 2",
		"    capacity = 3",
		"    data = " + fmt.Sprintf("%p", s.data) + " (Correct pointer)",
		fmt.Sprintf("    hash = %d", s.hash),
		"    canary_high = " + canary,
		"    data:",
		"        canary_low = " + canary,
		fmt.Sprintf("        hash = %d (fresh = %d)", s.layout.StoredChecksum(s.data), s.layout.StoredChecksum(s.data)),
		"       *[0] = 10",
		"       *[1] = 20",
		"        [2] = 0",
		"        canary_high = " + canary,
		"}",
	}
	if diff := cmp.Diff(want, lines[1:]); diff != "" {
		t.Errorf("dump diff (-want +got):\n%s", diff)
	}
}

func TestDumpListsBufferOfCorruptBlock(t *testing.T) {
	var sink bytes.Buffer
	s := newStack[int](t, types.Hash, stackopts.Capacity(3), stackopts.Sink(diag.NewSink(&sink)))
	s.Push(10)
	s.Push(20)
	if err := s.TamperBlock(FieldSize, 1); err != nil { // 2 -> 3
		t.Fatalf("TamperBlock() error %v", err)
	}
	wantIntegrityPanic(t, func() { s.Push(30) }, types.BlockChecksum)

	dump := sink.String()
	for _, substr := range []string{
		fmt.Sprintf("(%d: %v)", types.BlockChecksum, types.BlockChecksum),
		"size = 3",
		"    data:\n",
		"       *[0] = 10\n",
		"       *[1] = 20\n",
		"       *[2] = 0\n",
	} {
		if !strings.Contains(dump, substr) {
			t.Errorf("dump missing %q:\n%s", substr, dump)
		}
	}
	if strings.Contains(dump, "buffer not readable") {
		t.Errorf("dump of live buffer reported it as not readable:\n%s", dump)
	}
}

func TestDumpOmitsBufferBeyondAllocation(t *testing.T) {
	var sink bytes.Buffer
	s := newStack[int](t, types.Canary, stackopts.Capacity(2), stackopts.Sink(diag.NewSink(&sink)))
	s.Push(10)
	if err := s.TamperBlock(FieldCapacity, 1<<10); err != nil {
		t.Fatalf("TamperBlock() error %v", err)
	}
	wantIntegrityPanic(t, func() { s.Pop() }, types.BufferCanaryHigh)

	for _, substr := range []string{"capacity = 1026", "buffer not readable"} {
		if !strings.Contains(sink.String(), substr) {
			t.Errorf("dump missing %q:\n%s", substr, sink.String())
		}
	}
}

func TestSiteRecordsCaller(t *testing.T) {
	s := newStack[int](t, types.Dump)
	if got, want := s.Site().Func, "TestSiteRecordsCaller"; !strings.HasSuffix(got, want) {
		t.Errorf("Site().Func with CallerSkip(1) in helper got %q; want suffix %q", got, want)
	}

	direct, err := New[int](stackopts.Level(types.Dump))
	if err != nil {
		t.Fatalf("New() error %v", err)
	}
	if got, want := direct.Site().Func, "TestSiteRecordsCaller"; !strings.HasSuffix(got, want) {
		t.Errorf("Site().Func of direct New() call got %q; want suffix %q", got, want)
	}

	helper := newStack[int](t, types.Dump, stackopts.CallerSkip(0))
	if got, want := helper.Site().Func, "newStack"; !strings.Contains(got, want) {
		t.Errorf("Site().Func with CallerSkip(0) got %q; want containing %q", got, want)
	}

	if got := newStack[int](t, types.Release).Site(); got != (Site{}) {
		t.Errorf("Site() at %v level got %+v; want zero", types.Release, got)
	}
}

func TestDumpBelowDumpLevelIsNoOp(t *testing.T) {
	var sink bytes.Buffer
	s := newStack[int](t, types.Release, stackopts.Sink(diag.NewSink(&sink)))
	s.Dump()
	if sink.Len() != 0 {
		t.Errorf("Dump() at %v level wrote %q", types.Release, sink.String())
	}
}

func TestDumpDestructed(t *testing.T) {
	var sink bytes.Buffer
	s := newStack[int](t, types.Dump, stackopts.Sink(diag.NewSink(&sink)))
	s.Destruct()
	s.Dump()
	for _, substr := range []string{"size = -1", guard.Destructed.String(), "buffer not readable"} {
		if !strings.Contains(sink.String(), substr) {
			t.Errorf("dump missing %q:\n%s", substr, sink.String())
		}
	}
}

func TestElementTypes(t *testing.T) {
	t.Run("uint256", func(t *testing.T) {
		s := newStack[uint256.Int](t, types.Hash, stackopts.Capacity(1))
		want := []uint256.Int{*uint256.NewInt(1), *new(uint256.Int).Lsh(uint256.NewInt(1), 255), *uint256.NewInt(0)}
		for _, v := range want {
			s.Push(v)
		}
		for i := len(want) - 1; i >= 0; i-- {
			if got := s.Pop(); !got.Eq(&want[i]) {
				t.Errorf("Pop() got %v; want %v", got.Dec(), want[i].Dec())
			}
		}
	})

	t.Run("common.Hash", func(t *testing.T) {
		s := newStack[common.Hash](t, types.Hash, stackopts.Hasher(guard.Keccak))
		h := crypto.Keccak256Hash([]byte("guardstack"))
		s.Push(h)
		if got := s.Pop(); got != h {
			t.Errorf("Pop() got %v; want %v", got, h)
		}
	})

	t.Run("common.Address", func(t *testing.T) {
		// 20-byte elements leave the trailing canary unaligned.
		s := newStack[common.Address](t, types.Hash, stackopts.Capacity(3))
		addrs := []common.Address{{1}, {2}, {19: 3}, {4}}
		for _, a := range addrs {
			s.Push(a)
		}
		if code := s.Validate(); code != types.OK {
			t.Fatalf("Validate() got %v", code)
		}
		for i := len(addrs) - 1; i >= 0; i-- {
			if got := s.Pop(); got != addrs[i] {
				t.Errorf("Pop() got %v; want %v", got, addrs[i])
			}
		}
	})

	t.Run("float32", func(t *testing.T) {
		s := newStack[float32](t, types.Canary, stackopts.Capacity(0))
		s.Push(3.25)
		if got := s.Pop(); got != 3.25 {
			t.Errorf("Pop() got %v; want 3.25", got)
		}
	})
}

func TestSnapshot(t *testing.T) {
	s := newStack[int](t, types.Hash, stackopts.Capacity(2))
	s.Push(5)
	snap := s.Snapshot()

	if snap.Code != types.OK || snap.Size != 1 || snap.Capacity != 2 {
		t.Errorf("Snapshot() got {Code: %v, Size: %d, Capacity: %d}; want {ok, 1, 2}", snap.Code, snap.Size, snap.Capacity)
	}
	if snap.Buffer == nil {
		t.Fatalf("Snapshot().Buffer is nil")
	}
	if diff := cmp.Diff([]int{5, 0}, snap.Buffer.Slots); diff != "" {
		t.Errorf("Snapshot().Buffer.Slots diff (-want +got):\n%s", diff)
	}
	if snap.Buffer.Checksum != snap.Buffer.FreshChecksum {
		t.Errorf("Snapshot().Buffer checksums differ: stored %d, fresh %d", snap.Buffer.Checksum, snap.Buffer.FreshChecksum)
	}

	var nilStack *Stack[int]
	if got := nilStack.Snapshot().Code; got != types.NilStack {
		t.Errorf("nil Snapshot().Code got %v; want %v", got, types.NilStack)
	}
}
