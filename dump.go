package guardstack

import (
	"fmt"
	"io"

	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/types"
)

// Dump writes a human-readable rendering of the Stack to its diag.Sink. It is a
// no-op below types.Dump or if the Sink isn't open. Occupied slots are marked
// with a '*'.
//
// Dump is called automatically, immediately before halting, when an operation
// finds the Stack invalid.
func (s *Stack[T]) Dump() {
	if s == nil || s.level < types.Dump || !s.sink.Enabled() {
		return
	}
	s.Snapshot().Render(s.sink)
}

// Render writes the Snapshot to w in the format used by Stack.Dump(). Unlike
// Dump(), it writes regardless of protection level. Write errors are dropped.
func (snap Snapshot[T]) Render(w io.Writer) {
	p := func(format string, a ...any) {
		fmt.Fprintf(w, format, a...) //nolint:errcheck // observational only
	}
	p("%s (%d: %v) [%s] %v {\n", snap.Type, snap.Code, snap.Code, snap.Addr, snap.Site)

	if snap.Level >= types.Canary {
		p("    canary_low = %x (standard = %x)\n", snap.CanaryLow, guard.Canary)
	}
	p("    size = %d\n", snap.Size)
	p("    capacity = %d\n", snap.Capacity)
	p("    data = %s (%v)\n", snap.Data, snap.Poison)
	if snap.Level >= types.Hash {
		p("    hash = %d\n", snap.Hash)
	}
	if snap.Level >= types.Canary {
		p("    canary_high = %x (standard = %x)\n", snap.CanaryHigh, guard.Canary)
	}

	buf := snap.Buffer
	switch {
	case !snap.Allocated:
		p("    buffer not allocated (empty stack)\n")
		p("}\n")
		return
	case buf == nil:
		p("    buffer not readable\n")
		p("}\n")
		return
	}

	p("    data:\n")
	if snap.Level >= types.Canary {
		p("        canary_low = %x (standard = %x)\n", buf.CanaryLow, guard.Canary)
	}
	if snap.Level >= types.Hash {
		p("        hash = %d (fresh = %d)\n", buf.Checksum, buf.FreshChecksum)
	}
	for i, v := range buf.Slots {
		mark := " "
		if int64(i) < snap.Size {
			mark = "*"
		}
		p("       %s[%d] = %s\n", mark, i, types.Render(v))
	}
	if snap.Level >= types.Canary {
		p("        canary_high = %x (standard = %x)\n", buf.CanaryHigh, guard.Canary)
	}
	p("}\n")
}
