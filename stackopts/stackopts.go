// Package stackopts provides configuration options for guardstack.New().
package stackopts

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/solidifylabs/guardstack/diag"
	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/types"
)

// DefaultCapacity is the number of slots allocated by guardstack.New() when no
// Capacity() option is provided.
const DefaultCapacity = 100

// A Configuration carries all values that can be modified to configure a new
// stack. It is initially populated by Defaults() and then passed to all Options
// to be modified.
type Configuration struct {
	Level    types.Level
	Capacity int64
	// Label names the stack in dumps; see also guardstack.Site.
	Label string
	// CallerSkip is the number of additional stack frames to skip when
	// recording where the stack was created.
	CallerSkip int

	Sink   *diag.Sink
	Logger zerolog.Logger
	Hasher guard.Hasher
}

// Defaults returns the Configuration used in the absence of any Options.
func Defaults() *Configuration {
	return &Configuration{
		Level:    DefaultLevel,
		Capacity: DefaultCapacity,
		Logger:   log.Logger,
		Hasher:   guard.Polynomial,
	}
}

// New returns Defaults() modified by all of the Options, in order.
func New(opts ...Option) (*Configuration, error) {
	cfg := Defaults()
	for _, o := range opts {
		if err := o.Apply(cfg); err != nil {
			return nil, fmt.Errorf("stackopts.Option[%T].Apply(): %v", o, err)
		}
	}
	return cfg, nil
}

// An Option modifies a Configuration.
type Option interface {
	Apply(*Configuration) error
}

// A FuncOption converts any function into an Option by calling itself as
// Apply().
type FuncOption func(*Configuration) error

// Apply returns f(c).
func (f FuncOption) Apply(c *Configuration) error {
	return f(c)
}

// Level sets the protection level.
func Level(l types.Level) Option {
	return FuncOption(func(c *Configuration) error {
		if l < types.Release || l > types.Hash {
			return fmt.Errorf("invalid protection level %v", l)
		}
		c.Level = l
		return nil
	})
}

// Capacity sets the number of slots allocated up front. A capacity of 0 defers
// allocation until the first push.
func Capacity(n int64) Option {
	return FuncOption(func(c *Configuration) error {
		if n < 0 {
			return fmt.Errorf("negative capacity %d", n)
		}
		c.Capacity = n
		return nil
	})
}

// Label names the stack in dumps and logs.
func Label(name string) Option {
	return FuncOption(func(c *Configuration) error {
		c.Label = name
		return nil
	})
}

// CallerSkip attributes a new stack to the caller n frames above the function
// that called guardstack.New(), so that helpers wrapping New() report their
// own callers' sites. It is analogous to testing.T.Helper().
func CallerSkip(n int) Option {
	return FuncOption(func(c *Configuration) error {
		if n < 0 {
			return fmt.Errorf("negative caller skip %d", n)
		}
		c.CallerSkip = n
		return nil
	})
}

// Sink sets the destination of dumps. A nil Sink discards them.
func Sink(s *diag.Sink) Option {
	return FuncOption(func(c *Configuration) error {
		c.Sink = s
		return nil
	})
}

// Logger sets the logger used to report integrity failures before halting.
func Logger(l zerolog.Logger) Option {
	return FuncOption(func(c *Configuration) error {
		c.Logger = l
		return nil
	})
}

// Hasher sets the checksum function used at the Hash level.
func Hasher(h guard.Hasher) Option {
	return FuncOption(func(c *Configuration) error {
		if h == nil {
			return fmt.Errorf("nil %T", h)
		}
		c.Hasher = h
		return nil
	})
}
