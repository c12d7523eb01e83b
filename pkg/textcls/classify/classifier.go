// Package classify drives an external classifier process and turns its
// output into a result.Run.
package classify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/command"
	"github.com/cognicore/textcls/pkg/textcls/ledger"
	"github.com/cognicore/textcls/pkg/textcls/result"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// Trainer knows how to run one external classifier.
type Trainer interface {
	// Name identifies the classifier in logs and in the ledger.
	Name() string
	// Prepare resolves the external runtime. It runs during Init.
	Prepare(ctx context.Context, log *zap.Logger) stage.Result
	// Command writes whatever the run needs and returns the process to
	// start.
	Command(ctx context.Context, log *zap.Logger) (*command.Command, error)
	// Cleanup removes files written by Command.
	Cleanup(log *zap.Logger) error
}

// Options configures the Classifier stage independently of the trainer.
type Options struct {
	TrainFile   string
	TestFile    string
	ResultsFile string
	Overwrite   bool
	// Folds > 0 runs cross-validation on TrainFile; TestFile is then
	// optional.
	Folds int
	// Train is false when an existing model is only evaluated.
	Train   bool
	Timeout time.Duration
	// Ledger, when set, also records the run in that SQLite file.
	Ledger      string
	LedgerLabel string
}

// Classifier is the stage that trains and evaluates an external classifier.
type Classifier struct {
	opts    Options
	trainer Trainer
	parser  Parser
	log     *zap.Logger

	state    State
	parseErr error
}

// New returns a Classifier stage.
func New(opts Options, trainer Trainer, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{
		opts:    opts,
		trainer: trainer,
		parser:  Parser{TrainFile: opts.TrainFile, TestFile: opts.TestFile, Folds: opts.Folds},
		log:     log.Named("classify"),
		state:   NewState(),
	}
}

// Name implements stage.Stage.
func (c *Classifier) Name() string { return "classify-" + c.trainer.Name() }

// State returns the parsed output so far.
func (c *Classifier) State() State { return c.state }

// Init implements stage.Stage.
func (c *Classifier) Init(ctx context.Context) stage.Result {
	if c.opts.Train {
		if r := stage.CheckInput(c.log, "training", c.opts.TrainFile); r != stage.Success {
			return r
		}
	}
	if c.opts.Folds == 0 || !c.opts.Train {
		if c.opts.TestFile == "" {
			c.log.Error("a test file is required outside cross-validation")
			return stage.InvalidOptions
		}
		if r := stage.CheckInput(c.log, "test", c.opts.TestFile); r != stage.Success {
			return r
		}
	}
	if stage.SamePath(c.opts.ResultsFile, c.opts.TrainFile) || stage.SamePath(c.opts.ResultsFile, c.opts.TestFile) {
		c.log.Error("results file must differ from the data files", zap.String("path", c.opts.ResultsFile))
		return stage.InvalidOptions
	}
	if r := stage.CheckOutput(c.log, "results", c.opts.ResultsFile, c.opts.Overwrite); r != stage.Success {
		return r
	}
	return c.trainer.Prepare(ctx, c.log)
}

// Read counts the items in the data files so an empty split fails early.
func (c *Classifier) Read(ctx context.Context) stage.Result {
	files := map[string]string{}
	if c.opts.Train {
		files["training"] = c.opts.TrainFile
	}
	if c.opts.TestFile != "" && (c.opts.Folds == 0 || !c.opts.Train) {
		files["test"] = c.opts.TestFile
	}
	for what, path := range files {
		n, err := countLines(path)
		if err != nil {
			c.log.Error("cannot read data file", zap.String("file", what), zap.String("path", path), zap.Error(err))
			return stage.InputError
		}
		if n == 0 {
			c.log.Error("data file has no items", zap.String("file", what), zap.String("path", path))
			return stage.InputError
		}
		c.log.Info("data file read", zap.String("file", what), zap.String("path", path), zap.Int("items", n))
	}
	return stage.Success
}

// Process runs the classifier and parses its output as it arrives.
func (c *Classifier) Process(ctx context.Context) stage.Result {
	cmd, err := c.trainer.Command(ctx, c.log)
	if err == nil && cmd == nil {
		err = errNoCommand
	}
	if err != nil {
		c.log.Error("cannot prepare classifier", zap.Error(err))
		return stage.Failed
	}
	if c.opts.Timeout > 0 {
		cmd.Timeout = c.opts.Timeout
	}
	cmd.OnLine = c.onLine

	c.state = NewState()
	c.state.Run.StartedAt = time.Now().UTC()
	c.log.Info("starting classifier", zap.Stringer("command", cmd), zap.String("dir", cmd.Dir))

	runErr := cmd.Run(ctx)
	if c.parseErr != nil {
		c.log.Error("classifier output could not be parsed", zap.Error(c.parseErr))
		return stage.Failed
	}
	if runErr != nil {
		c.log.Error("classifier failed", zap.Error(runErr), zap.Int("exit_code", cmd.ExitCode()))
		return stage.Failed
	}

	run := &c.state.Run
	c.log.Info("classifier finished",
		zap.Duration("elapsed", cmd.Elapsed()),
		zap.String("classifier", run.ClassifierType),
		zap.Int("features", run.NumberOfFeatures),
		zap.Int("classes", run.NumberOfClasses),
		zap.Int("training_items", run.TrainingItems),
		zap.Int("test_items", run.TestItems),
		zap.Float64("micro_f1", run.MicroF1),
		zap.Float64("macro_f1", run.MacroF1),
		zap.Int("results", len(run.Results)),
		zap.Int("unrecognized_lines", c.state.Unrecognized))
	if run.CrossValidated() {
		for i, f := range run.Folds {
			c.log.Debug("fold", zap.Int("fold", i), zap.Float64("micro_f1", f.MicroF1), zap.Float64("macro_f1", f.MacroF1))
		}
	}
	return stage.Success
}

// onLine is serialized by command.Command. c.state is replaced by every
// step, so it is stepped in place.
func (c *Classifier) onLine(stream command.Stream, line string) {
	if c.parseErr != nil {
		return
	}
	st, kind, err := c.parser.step(c.state, line, true)
	if err != nil {
		c.parseErr = err
		return
	}
	c.state = st
	if kind == LineOther {
		c.log.Debug("classifier", zap.String("line", line), zap.Bool("stderr", stream == command.Stderr))
	}
}

// Write saves the run as JSON and, when configured, in the ledger.
func (c *Classifier) Write(ctx context.Context) stage.Result {
	run := &c.state.Run
	if c.opts.Ledger != "" {
		l, err := ledger.Open(ctx, c.opts.Ledger)
		if err != nil {
			c.log.Error("cannot open ledger", zap.String("path", c.opts.Ledger), zap.Error(err))
			return stage.OutputError
		}
		defer l.Close()
		label := c.opts.LedgerLabel
		if label == "" {
			label = c.trainer.Name()
		}
		id, err := l.Record(ctx, label, run)
		if err != nil {
			c.log.Error("cannot record run", zap.Error(err))
			return stage.Failed
		}
		c.log.Info("run recorded", zap.String("ledger", c.opts.Ledger), zap.String("run", id))
	} else if run.ID == "" {
		run.ID = ledger.NewID(run.StartedAt)
	}

	if err := result.Save(c.opts.ResultsFile, run); err != nil {
		c.log.Error("cannot write results", zap.String("path", c.opts.ResultsFile), zap.Error(err))
		return stage.OutputError
	}
	c.log.Info("results written", zap.String("path", c.opts.ResultsFile),
		zap.Int("statistics", len(run.Statistics)), zap.Int("results", len(run.Results)))
	return stage.Success
}

// Cleanup implements stage.Stage.
func (c *Classifier) Cleanup(ctx context.Context) stage.Result {
	if err := c.trainer.Cleanup(c.log); err != nil {
		c.log.Warn("cleanup failed", zap.Error(err))
		return stage.Failed
	}
	return stage.Success
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("scan %s: %w", path, err)
	}
	return n, nil
}

var errNoCommand = errors.New("trainer returned no command")
