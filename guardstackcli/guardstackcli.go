// Package guardstackcli provides a CLI for demonstrating guardstack.Stack
// protection levels.
package guardstackcli

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solidifylabs/guardstack"
	"github.com/solidifylabs/guardstack/diag"
	"github.com/solidifylabs/guardstack/guard"
	"github.com/solidifylabs/guardstack/layout"
	"github.com/solidifylabs/guardstack/stackopts"
	"github.com/solidifylabs/guardstack/stackui"
	"github.com/solidifylabs/guardstack/types"
)

// Run runs the CLI. It should be called from a main.main() function and will
// parse command-line arguments and flags to perform available commands. For
// usage, invoke the binary without any arguments.
func Run() {
	if err := newRoot(os.Stdout, initLogger(os.Stderr)).Execute(); err != nil {
		log.Fatal(err)
	}
}

// initLogger installs, and returns, a human-readable zerolog.Logger as the
// global default.
func initLogger(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", "guardstack").Logger()
	zlog.Logger = logger
	return logger
}

// flags are shared by all commands.
type flags struct {
	level    string
	capacity int64
	logPath  string
	hasher   string
}

var hashers = map[string]guard.Hasher{
	"polynomial": guard.Polynomial,
	"keccak":     guard.Keccak,
}

// options converts the flags into stackopts. The returned function MUST be
// called to close the diag.Sink, if any, once the stack is no longer used.
func (f *flags) options(label string, logger zerolog.Logger) ([]stackopts.Option, func() error, error) {
	level, err := types.ParseLevel(f.level)
	if err != nil {
		return nil, nil, err
	}
	h, ok := hashers[f.hasher]
	if !ok {
		return nil, nil, fmt.Errorf("unknown --hasher %q", f.hasher)
	}

	opts := []stackopts.Option{
		stackopts.Level(level),
		stackopts.Capacity(f.capacity),
		stackopts.Label(label),
		stackopts.Logger(logger),
		stackopts.Hasher(h),
	}
	if f.logPath == "" {
		return opts, func() error { return nil }, nil
	}

	sink, err := diag.Open(f.logPath)
	if err != nil {
		return nil, nil, err
	}
	return append(opts, stackopts.Sink(sink)), sink.Close, nil
}

func newRoot(out io.Writer, logger zerolog.Logger) *cobra.Command {
	f := new(flags)

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Push then pop values, showing buffer growth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cmd.Flags().GetInt("count")
			if err != nil {
				return err
			}
			opts, closeSink, err := f.options("demo", logger)
			if err != nil {
				return err
			}
			defer closeSink()
			return demo(out, n, opts...)
		},
	}
	demoCmd.Flags().IntP("count", "n", 10, "Number of values to push")

	attackCmd := &cobra.Command{
		Use:       "attack <target>",
		Short:     "Corrupt a stack, then show how the next operation reacts",
		Long:      "Targets: " + strings.Join(targetNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: targetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, closeSink, err := f.options("attack", logger)
			if err != nil {
				return err
			}
			defer closeSink()
			return attack(out, args[0], opts...)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Interactively push, pop and corrupt a stack of uint256 values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the UI, so logs are dropped.
			opts, closeSink, err := f.options("view", zerolog.Nop())
			if err != nil {
				return err
			}
			defer closeSink()

			s, err := guardstack.New[uint256.Int](opts...)
			if err != nil {
				return err
			}
			var n uint64
			return stackui.Run(s, func() uint256.Int {
				n++
				return *new(uint256.Int).Lsh(uint256.NewInt(n), 128)
			})
		},
	}

	cmd := &cobra.Command{
		Use:   "guardstack",
		Short: "Self-defending stack with canaries, checksums and poisoned pointers",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.level, "level", "l", stackopts.DefaultLevel.String(), "Protection level: release, dump, canary or hash")
	pf.Int64VarP(&f.capacity, "capacity", "c", 0, "Initial capacity")
	pf.StringVar(&f.logPath, "log", "", fmt.Sprintf("Path of the diagnostic sink for dumps (e.g. %s); disabled if empty", diag.DefaultPath))
	pf.StringVar(&f.hasher, "hasher", "polynomial", "Checksum function: polynomial or keccak")

	cmd.SetOut(out)
	cmd.AddCommand(
		demoCmd,
		attackCmd,
		viewCmd,
	)
	return cmd
}

func demo(out io.Writer, n int, opts ...stackopts.Option) error {
	s, err := guardstack.New[int64](opts...)
	if err != nil {
		return err
	}
	defer s.Destruct()

	fmt.Fprintf(out, "%v\n", s)
	for i := 1; i <= n; i++ {
		s.Push(int64(i * i))
		fmt.Fprintf(out, "push %d: size=%d capacity=%d\n", i*i, s.Size(), s.Cap())
	}
	s.Dump()
	for s.Size() > 0 {
		v := s.Pop()
		fmt.Fprintf(out, "pop %d: size=%d capacity=%d\n", v, s.Size(), s.Cap())
	}
	return nil
}

// A target corrupts a stack in a specific way.
type target func(*guardstack.Stack[int64]) error

var targets = map[string]target{
	"slot": func(s *guardstack.Stack[int64]) error {
		return s.TamperBuffer(layout.Slots, 0, 1)
	},
	"buffer-canary": func(s *guardstack.Stack[int64]) error {
		return s.TamperBuffer(layout.TrailingCanary, 0, 1)
	},
	"buffer-checksum": func(s *guardstack.Stack[int64]) error {
		return s.TamperBuffer(layout.Checksum, 0, 1)
	},
	"block-canary": func(s *guardstack.Stack[int64]) error {
		return s.TamperBlock(guardstack.FieldCanaryHigh, 1)
	},
	"size": func(s *guardstack.Stack[int64]) error {
		return s.TamperBlock(guardstack.FieldSize, 1<<40)
	},
	"hash": func(s *guardstack.Stack[int64]) error {
		return s.TamperBlock(guardstack.FieldHash, 1)
	},
	"destruct": func(s *guardstack.Stack[int64]) error {
		s.Destruct()
		return nil
	},
}

func targetNames() []string {
	names := make([]string, 0, len(targets))
	for n := range targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func attack(out io.Writer, name string, opts ...stackopts.Option) error {
	corrupt, ok := targets[name]
	if !ok {
		return fmt.Errorf("unknown target %q; must be one of %v", name, targetNames())
	}

	s, err := guardstack.New[int64](opts...)
	if err != nil {
		return err
	}
	for i := int64(1); i <= 3; i++ {
		s.Push(i)
	}
	if err := corrupt(s); err != nil {
		return err
	}

	code := s.Validate()
	fmt.Fprintf(out, "level %v, after corrupting %s: Validate() = %d (%v) %v\n", s.Level(), name, code, code.Class(), code)
	if code != types.OK && s.Level() < types.Dump {
		// Nothing would stop Push() from writing through the corrupted state.
		fmt.Fprintf(out, "not pushing: %v level performs no automatic checks\n", s.Level())
		return nil
	}

	if err := halts(func() { s.Push(4) }); err != nil {
		fmt.Fprintf(out, "Push() halted: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "Push() did not halt\n")
	return nil
}

// halts calls fn, returning the value it panics with, if any, as an error.
func halts(fn func()) (err error) {
	defer func() {
		switch r := recover().(type) {
		case nil:
		case error:
			err = r
		default:
			err = fmt.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}
