package types

import "fmt"

// A Code is the result of validating a stack. The zero value, OK, signals a
// valid stack; every other value identifies the first check that failed. The
// ordinals are stable.
type Code uint8

const (
	OK Code = iota
	NilStack
	BlockCanaryLow
	BlockCanaryHigh
	BlockChecksum
	NegativeSize
	NegativeCapacity
	SizeExceedsCapacity
	PoisonedPointer
	BufferCanaryLow
	BufferCanaryHigh
	BufferChecksum

	numCodes
)

var codeMessages = [numCodes]string{
	OK:                  "ok",
	NilStack:            "FAIL: nil stack passed",
	BlockCanaryLow:      "FAIL: stack has been attacked from the left (low canary departed)",
	BlockCanaryHigh:     "FAIL: stack has been attacked from the right (high canary departed)",
	BlockChecksum:       "FAIL: stack has been corrupted (checksum not valid)",
	NegativeSize:        "FAIL: stack size less than zero (possibly destructed before)",
	NegativeCapacity:    "FAIL: stack capacity less than zero (possibly destructed before)",
	SizeExceedsCapacity: "FAIL: stack size is more than capacity",
	PoisonedPointer:     "FAIL: stack pointer is not valid",
	BufferCanaryLow:     "FAIL: stack buffer has been attacked from the left (low canary departed)",
	BufferCanaryHigh:    "FAIL: stack buffer has been attacked from the right (high canary departed)",
	BufferChecksum:      "FAIL: stack buffer has been corrupted (checksum not valid)",
}

// String returns the fixed message associated with the Code.
func (c Code) String() string {
	if c >= numCodes {
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
	return codeMessages[c]
}

// A Class groups Codes by the kind of fault that they signal.
type Class int

const (
	Valid Class = iota
	// Structural faults are guard or checksum mismatches.
	Structural
	// Logical faults are violations of the size/capacity relationship.
	Logical
	// Lifecycle faults are uses of a nil or already-destructed stack.
	Lifecycle
)

func (c Class) String() string {
	switch c {
	case Valid:
		return "valid"
	case Structural:
		return "structural corruption"
	case Logical:
		return "logical inconsistency"
	case Lifecycle:
		return "lifecycle misuse"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Class returns the fault class of the Code.
func (c Code) Class() Class {
	switch c {
	case OK:
		return Valid
	case NilStack, PoisonedPointer:
		return Lifecycle
	case NegativeSize, NegativeCapacity, SizeExceedsCapacity:
		return Logical
	default:
		return Structural
	}
}
