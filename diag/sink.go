// Package diag provides the append-only text sink that stack dumps are written
// to.
//
// A Sink is an explicit value with an Open/Close lifecycle, owned by whoever
// owns the stacks that write to it:
//
//	sink, err := diag.Open("stack.log")
//	if err != nil { … }
//	defer sink.Close()
//
// A nil or closed Sink silently discards all writes, so a sink that failed to
// open never prevents a stack from reporting (and halting on) a failure.
package diag

import (
	"fmt"
	"io"
	"os"
)

// DefaultPath is used by Open() when passed an empty path.
const DefaultPath = "log.txt"

// A Sink is an append-only text destination. It is not safe for concurrent
// use.
type Sink struct {
	w      io.Writer
	closer io.Closer
	name   string
}

// Open creates (or truncates) the file at path and returns a Sink writing to
// it. If path is empty, DefaultPath is used.
func Open(path string) (*Sink, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("diag.Open(%q): %v", path, err)
	}
	return &Sink{w: f, closer: f, name: path}, nil
}

// NewSink returns a Sink that writes to w. Closing the Sink closes w if it
// implements io.Closer.
func NewSink(w io.Writer) *Sink {
	s := &Sink{w: w, name: fmt.Sprintf("%T", w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Enabled reports whether writes to the Sink reach a destination.
func (s *Sink) Enabled() bool {
	return s != nil && s.w != nil
}

// Name returns the path passed to Open(), or the type of the io.Writer passed
// to NewSink().
func (s *Sink) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Printf appends formatted text to the Sink. Write errors are dropped because
// the Sink is purely observational.
func (s *Sink) Printf(format string, a ...any) {
	if !s.Enabled() {
		return
	}
	fmt.Fprintf(s.w, format, a...) //nolint:errcheck // see above
}

// Println appends the operands followed by a newline.
func (s *Sink) Println(a ...any) {
	if !s.Enabled() {
		return
	}
	fmt.Fprintln(s.w, a...) //nolint:errcheck // see Printf()
}

// Close closes the underlying destination, if it is closable, and disables the
// Sink. It is safe to call Close more than once.
func (s *Sink) Close() error {
	if !s.Enabled() {
		return nil
	}
	s.w = nil
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	if err := c.Close(); err != nil {
		return fmt.Errorf("%T.Close(): %v", c, err)
	}
	return nil
}

// Write implements io.Writer, allowing a Sink to be passed to fmt.Fprintf() and
// similar. It always reports success.
func (s *Sink) Write(p []byte) (int, error) {
	if s.Enabled() {
		s.w.Write(p) //nolint:errcheck // see Printf()
	}
	return len(p), nil
}
