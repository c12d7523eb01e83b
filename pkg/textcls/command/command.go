// Package command runs one external process per Command value and streams
// its output line by line.
//
// Start launches the process and returns immediately; Wait blocks until the
// process has exited and both output streams are drained. Run does both.
// Stdout and stderr are consumed concurrently; every line is appended to the
// captured buffers and, when set, handed to OnLine. OnLine calls are
// serialized, so a line handler needs no locking of its own.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
)

// State is the lifetime state of a Command.
type State int

const (
	NotStarted State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return "not started"
}

// Stream identifies where a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// ErrAlreadyStarted is returned when a Command is started twice.
var ErrAlreadyStarted = errors.New("command already started")

// maxLine bounds a single output line.
const maxLine = 1 << 20

// Command is one external process invocation.
type Command struct {
	Dir  string
	Path string
	Args []string
	// Env entries are appended to the current environment.
	Env []string
	// Timeout bounds the whole run; zero means no limit.
	Timeout time.Duration
	// OnLine receives every output line in arrival order.
	OnLine func(stream Stream, line string)

	mu       sync.Mutex
	lineMu   sync.Mutex
	state    State
	stdout   strings.Builder
	stderr   strings.Builder
	combined strings.Builder
	exitCode int
	err      error
	started  time.Time
	elapsed  time.Duration
	done     chan struct{}
}

// New returns a command that runs path with args in dir.
func New(dir, path string, args ...string) *Command {
	return &Command{Dir: dir, Path: path, Args: args, exitCode: -1}
}

// Shell returns a command that runs script through the platform shell.
func Shell(dir, script string) *Command {
	if runtime.GOOS == "windows" {
		return New(dir, "cmd", "/C", script)
	}
	return New(dir, "/bin/sh", "-c", script)
}

// String renders the command line for logs.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Start launches the process. It can be called at most once.
func (c *Command) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != NotStarted {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = Running
	c.exitCode = -1
	c.done = make(chan struct{})
	c.started = time.Now()
	c.mu.Unlock()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	// Orphaned children may hold the output open after a kill; Wait gives
	// up on them after this delay.
	cmd.WaitDelay = 2 * time.Second

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		cancel()
		outW.Close()
		errW.Close()
		err = fmt.Errorf("start %s: %w", c.Path, err)
		c.finish(-1, err)
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return c.pump(Stdout, outR) })
	g.Go(func() error { return c.pump(Stderr, errR) })

	go func() {
		defer cancel()
		waitErr := cmd.Wait()
		outW.Close()
		errW.Close()
		readErr := g.Wait()
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		var err error
		switch {
		case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			err = fmt.Errorf("%w: %s timed out after %s", internalerr.ErrCommandFailed, c.Path, c.Timeout)
		case ctx.Err() != nil:
			err = fmt.Errorf("%w: %s: %v", internalerr.ErrCommandFailed, c.Path, ctx.Err())
		case waitErr != nil:
			err = fmt.Errorf("%w: %s: %v", internalerr.ErrCommandFailed, c.Path, waitErr)
		case readErr != nil:
			err = fmt.Errorf("read output of %s: %w", c.Path, readErr)
		}
		c.finish(code, err)
	}()
	return nil
}

func (c *Command) pump(stream Stream, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		c.line(stream, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

func (c *Command) line(stream Stream, text string) {
	c.lineMu.Lock()
	defer c.lineMu.Unlock()

	c.mu.Lock()
	if stream == Stdout {
		c.stdout.WriteString(text)
		c.stdout.WriteByte('\n')
	} else {
		c.stderr.WriteString(text)
		c.stderr.WriteByte('\n')
	}
	c.combined.WriteString(text)
	c.combined.WriteByte('\n')
	c.mu.Unlock()

	if c.OnLine != nil {
		c.OnLine(stream, text)
	}
}

func (c *Command) finish(code int, err error) {
	c.mu.Lock()
	c.state = Completed
	c.exitCode = code
	c.err = err
	c.elapsed = time.Since(c.started)
	done := c.done
	c.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Wait blocks until the command completes and returns its error. Waiting on
// a command that was never started returns an error immediately.
func (c *Command) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return errors.New("command not started")
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the command completes. It is nil before Start.
func (c *Command) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Run starts the command and waits for it.
func (c *Command) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Wait()
}

// State returns the lifetime state.
func (c *Command) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Success reports whether the command completed with exit code 0.
func (c *Command) Success() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Completed && c.err == nil && c.exitCode == 0
}

// ExitCode returns the process exit code, or -1 when unknown.
func (c *Command) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// Stdout returns the captured standard output.
func (c *Command) Stdout() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout.String()
}

// Stderr returns the captured standard error.
func (c *Command) Stderr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stderr.String()
}

// Output returns stdout and stderr interleaved in arrival order.
func (c *Command) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.combined.String()
}

// Elapsed returns the wall time of a completed command.
func (c *Command) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}
