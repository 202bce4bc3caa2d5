package guardstack

import (
	"errors"
	"fmt"

	"github.com/solidifylabs/guardstack/types"
)

// ErrEmptyPop is the panic value of Pop() on an empty stack, at every
// protection level. Callers MUST check Size() before popping.
var ErrEmptyPop = errors.New("pop from empty stack")

// ErrIntegrity is wrapped by every *IntegrityError.
var ErrIntegrity = errors.New("stack integrity violated")

// An IntegrityError is the panic value of an operation that found the stack in
// an invalid state. It is only raised at types.Dump and above, except for
// operations on a nil *Stack, which are always fatal.
type IntegrityError struct {
	Op    string     // e.g. "Push"
	Stage string     // "before" or "after" the operation mutated the stack
	Code  types.Code // first failed check
	Site  Site       // where the stack was created
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %s() on %s: %v", e.Stage, e.Op, e.Site, e.Code)
}

// Unwrap returns ErrIntegrity.
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// A Site records where a stack was created. It is only populated at types.Dump
// and above.
type Site struct {
	Label string
	File  string
	Func  string
	Line  int
}

func (s Site) String() string {
	return fmt.Sprintf("%q [%s() %s(%d)]", s.Label, s.Func, s.File, s.Line)
}
