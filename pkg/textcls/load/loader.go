// Package load splits a record set into training and test files.
package load

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// SplitFunc partitions recs into a training and a test set. ratio is the
// training percentage, 1 to 99. Every input record must land in exactly
// one of the two sets.
type SplitFunc func(recs []record.Record, ratio int) (train, test []record.Record)

// WriteFunc persists one of the two sets.
type WriteFunc func(w io.Writer, recs []record.Record) error

// Ordered puts the first ratio percent of recs, in input order, into the
// training set.
func Ordered(recs []record.Record, ratio int) (train, test []record.Record) {
	n := cut(len(recs), ratio)
	return recs[:n:n], recs[n:]
}

// RandomSplit returns a SplitFunc that shuffles a copy of the input with a
// PCG source seeded by seed, then splits it like Ordered. The same seed and
// input always give the same split.
func RandomSplit(seed uint64) SplitFunc {
	return func(recs []record.Record, ratio int) (train, test []record.Record) {
		shuffled := append([]record.Record(nil), recs...)
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return Ordered(shuffled, ratio)
	}
}

// cut returns the size of the training set: ratio percent of n, rounded
// to nearest, keeping at least one record on each side when n >= 2.
func cut(n, ratio int) int {
	k := (n*ratio + 50) / 100
	if n >= 2 {
		k = max(1, min(k, n-1))
	}
	return min(k, n)
}

// Options configures a Loader.
type Options struct {
	InputFile string
	TrainFile string
	TestFile  string
	Overwrite bool
	Ratio     int
}

// Loader is the split stage.
type Loader struct {
	name  string
	opts  Options
	split SplitFunc
	write WriteFunc
	log   *zap.Logger

	input       []record.Record
	train, test []record.Record
}

// New returns a Loader. A nil write uses the tab separated training format.
func New(name string, opts Options, split SplitFunc, write WriteFunc, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	if write == nil {
		write = record.TSV.Write
	}
	return &Loader{name: name, opts: opts, split: split, write: write, log: log.Named("load")}
}

// Name implements stage.Stage.
func (l *Loader) Name() string { return l.name }

// Train returns the training set after Process.
func (l *Loader) Train() []record.Record { return l.train }

// Test returns the test set after Process.
func (l *Loader) Test() []record.Record { return l.test }

// Init checks the ratio and the three paths.
func (l *Loader) Init(ctx context.Context) stage.Result {
	if l.opts.Ratio < 1 || l.opts.Ratio > 99 {
		l.log.Error("split ratio must be between 1 and 99", zap.Int("ratio", l.opts.Ratio))
		return stage.InvalidOptions
	}
	paths := []string{l.opts.InputFile, l.opts.TrainFile, l.opts.TestFile}
	for i := range paths {
		for j := i + 1; j < len(paths); j++ {
			if stage.SamePath(paths[i], paths[j]) {
				l.log.Error("input, train and test files must differ", zap.Strings("paths", paths))
				return stage.InvalidOptions
			}
		}
	}
	if r := stage.CheckInput(l.log, "input", l.opts.InputFile); r != stage.Success {
		return r
	}
	if r := stage.CheckOutput(l.log, "train", l.opts.TrainFile, l.opts.Overwrite); r != stage.Success {
		return r
	}
	return stage.CheckOutput(l.log, "test", l.opts.TestFile, l.opts.Overwrite)
}

// Read implements stage.Stage.
func (l *Loader) Read(ctx context.Context) stage.Result {
	recs, err := record.LoadFile(l.opts.InputFile)
	if err != nil {
		l.log.Error("cannot read records", zap.String("path", l.opts.InputFile), zap.Error(err))
		return stage.InputError
	}
	if len(recs) == 0 {
		l.log.Error("no records in input", zap.String("path", l.opts.InputFile))
		return stage.InputError
	}
	l.input = recs
	l.log.Info("records read", zap.String("path", l.opts.InputFile), zap.Int("records", len(recs)))
	return stage.Success
}

// Process splits the input and checks that no record was lost or
// duplicated.
func (l *Loader) Process(ctx context.Context) stage.Result {
	l.train, l.test = l.split(l.input, l.opts.Ratio)
	if got := len(l.train) + len(l.test); got != len(l.input) {
		l.log.Error("split lost or duplicated records", zap.Int("input", len(l.input)), zap.Int("output", got))
		return stage.Failed
	}
	if len(l.train) == 0 || len(l.test) == 0 {
		l.log.Warn("one side of the split is empty", zap.Int("train", len(l.train)), zap.Int("test", len(l.test)))
	}
	if n := record.Unlabeled(l.input); n > 0 {
		l.log.Warn("unlabeled records get an empty label column",
			zap.Int("unlabeled", n),
			zap.Int("train", record.Unlabeled(l.train)),
			zap.Int("test", record.Unlabeled(l.test)))
	}
	l.log.Info("records split",
		zap.Int("ratio", l.opts.Ratio),
		zap.Int("train", len(l.train)),
		zap.Int("test", len(l.test)))
	return stage.Success
}

// Write implements stage.Stage.
func (l *Loader) Write(ctx context.Context) stage.Result {
	for _, out := range []struct {
		path string
		recs []record.Record
	}{
		{l.opts.TrainFile, l.train},
		{l.opts.TestFile, l.test},
	} {
		if err := writeFile(out.path, out.recs, l.write); err != nil {
			l.log.Error("cannot write output", zap.String("path", out.path), zap.Error(err))
			return stage.OutputError
		}
		l.log.Info("records written", zap.String("path", out.path), zap.Int("records", len(out.recs)))
	}
	return stage.Success
}

// Cleanup implements stage.Stage.
func (l *Loader) Cleanup(ctx context.Context) stage.Result { return stage.Success }

func writeFile(path string, recs []record.Record, write WriteFunc) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(f, recs); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
