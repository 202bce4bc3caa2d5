package stackopts

// A Captured value is an [Option] that stores part of the [Configuration] for
// later inspection. After guardstack.New() returns, the Val field will be
// populated with the value as seen by all preceding Options.
//
// A Captured value only observes the Options that precede it, so it is
// usually passed last.
type Captured[T any] struct {
	Val T

	apply FuncOption
}

var _ Option = (*Captured[struct{}])(nil)

// Apply implements the [Option] interface, storing the value to be captured.
func (c *Captured[T]) Apply(cfg *Configuration) error {
	return c.apply(cfg)
}

// Capture returns a Captured value that is valid _after_ being passed as an
// option to guardstack.New(). [fn] must extract and return the value to
// capture.
func Capture[T any](fn func(*Configuration) T) *Captured[T] {
	c := new(Captured[T])
	c.apply = func(cfg *Configuration) error {
		c.Val = fn(cfg)
		return nil
	}
	return c
}

// CaptureConfig captures a copy of the entire [Configuration].
func CaptureConfig() *Captured[Configuration] {
	return Capture(func(c *Configuration) Configuration {
		return *c
	})
}
