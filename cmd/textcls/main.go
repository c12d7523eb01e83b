// Command textcls runs one stage of a text classification pipeline per
// invocation: extract, transform, split, classify, report or annotate.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/internal/logging"
	"github.com/cognicore/textcls/pkg/textcls/config"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, registry(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

var errNoVerb = errors.New("no verb given")

// usageError is a verb whose options did not validate.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type app struct {
	verbose    bool
	jsonLog    bool
	configPath string
	explicit   string

	log    *zap.Logger
	code   int
	stdout io.Writer
	stderr io.Writer
}

// run executes args and returns the process exit code. A panic escaping a
// stage is reported as ExitUnhandled.
func run(ctx context.Context, reg *stage.Registry, args []string, stdout, stderr io.Writer) (code int) {
	a := &app{log: zap.NewNop(), stdout: stdout, stderr: stderr}
	defer func() {
		if p := recover(); p != nil {
			a.log.Error("unhandled error", zap.Any("panic", p))
			fmt.Fprintf(stderr, "textcls: unhandled error: %v\n%s", p, debug.Stack())
			code = stage.ExitUnhandled
		}
		_ = a.log.Sync()
	}()

	a.prescan(args)
	root, err := a.command(ctx, reg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return stage.ExitInvalidOptions
	}
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var ue *usageError
		switch {
		case errors.As(err, &ue):
			fmt.Fprintf(stderr, "Error: %v\n\n%s", ue.err, ue.cmd.UsageString())
		case errors.Is(err, errNoVerb):
			fmt.Fprint(stderr, root.UsageString())
		default:
			fmt.Fprintf(stderr, "Error: %v\nRun 'textcls --help' for usage.\n", err)
		}
		return stage.ExitInvalidOptions
	}
	return a.code
}

// prescan reads the flags that decide which verbs exist and what their
// defaults are, before the command tree is built.
func (a *app) prescan(args []string) {
	fs := pflag.NewFlagSet("prescan", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.StringVar(&a.configPath, "config", "", "")
	fs.StringVar(&a.explicit, "explicit", "", "")
	_ = fs.Parse(args)
}

func (a *app) command(ctx context.Context, reg *stage.Registry) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:   "textcls",
		Short: "Staged text classification pipeline",
		Long: `textcls runs one pipeline stage per invocation.

Every verb follows the same lifecycle: init, read, process, write, cleanup.
Exit codes: 0 success, 1 invalid options, 2 input error, 3 output exists,
90 stage failed, 99 unhandled error.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLog})
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNoVerb
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&a.jsonLog, "json-log", false, "log JSON lines instead of console text")
	pf.StringVar(&a.configPath, "config", a.configPath, "YAML profile with per-verb defaults")
	pf.StringVar(&a.explicit, "explicit", a.explicit, "only offer the verbs of this module")

	var prof stage.Profile
	if a.configPath != "" {
		p, err := config.LoadProfile(a.configPath)
		if err != nil {
			return nil, err
		}
		prof = p
	}

	if a.explicit != "" {
		known := false
		for _, m := range reg.Modules() {
			known = known || m == a.explicit
		}
		if !known {
			return nil, fmt.Errorf("unknown module %q (have %v)", a.explicit, reg.Modules())
		}
	}

	for _, e := range reg.Entries(a.explicit) {
		cmd := &cobra.Command{
			Use:     e.Verb,
			Short:   e.Summary,
			GroupID: e.Module,
			Args:    cobra.NoArgs,
		}
		construct, err := e.Setup(cmd.Flags(), prof)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Verb, err)
		}
		cmd.RunE = func(cmd *cobra.Command, _ []string) error {
			log := a.log.With(zap.String("verb", e.Verb))
			s, err := construct(log)
			if err != nil {
				return &usageError{cmd: cmd, err: err}
			}
			res := stage.Run(cmd.Context(), s, log)
			a.code = res.ExitCode()
			log.Debug("exiting", zap.Int("code", a.code))
			return nil
		}
		if !root.ContainsGroup(e.Module) {
			root.AddGroup(&cobra.Group{ID: e.Module, Title: e.Module + ":"})
		}
		root.AddCommand(cmd)
	}
	return root, nil
}
