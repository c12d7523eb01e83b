// Package transform maps record lists one to one and writes the result in a
// classifier-ready tabular format.
package transform

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// PrepareFunc builds the read-only context a transform needs from the
// whole input, such as document frequencies.
type PrepareFunc[C any] func(in []record.Record) (C, error)

// Func maps one input record to exactly one output record.
type Func[C any] func(ctx C, in record.Record) (record.Record, error)

// WriteFunc persists the output list.
type WriteFunc func(w io.Writer, recs []record.Record) error

// Options configures a Transformer.
type Options struct {
	InputFile  string
	OutputFile string
	Overwrite  bool
	// LabelColumn marks tabular output led by the label. Unlabeled output
	// records are then reported, since they get an empty label cell.
	LabelColumn bool
}

// Transformer is a stage applying Func to every input record.
type Transformer[C any] struct {
	name    string
	opts    Options
	prepare PrepareFunc[C]
	fn      Func[C]
	write   WriteFunc
	log     *zap.Logger

	input  []record.Record
	output []record.Record
}

// New returns a Transformer. A nil prepare yields the zero context; a nil
// write uses the tab separated training format.
func New[C any](name string, opts Options, prepare PrepareFunc[C], fn Func[C], write WriteFunc, log *zap.Logger) *Transformer[C] {
	if log == nil {
		log = zap.NewNop()
	}
	if write == nil {
		write = record.TSV.Write
	}
	return &Transformer[C]{
		name:    name,
		opts:    opts,
		prepare: prepare,
		fn:      fn,
		write:   write,
		log:     log.Named("transform"),
	}
}

// Name implements stage.Stage.
func (t *Transformer[C]) Name() string { return t.name }

// Output returns the transformed records.
func (t *Transformer[C]) Output() []record.Record { return t.output }

// Init implements stage.Stage.
func (t *Transformer[C]) Init(ctx context.Context) stage.Result {
	if stage.SamePath(t.opts.InputFile, t.opts.OutputFile) {
		t.log.Error("input and output must differ", zap.String("path", t.opts.InputFile))
		return stage.InvalidOptions
	}
	if r := stage.CheckInput(t.log, "input", t.opts.InputFile); r != stage.Success {
		return r
	}
	return stage.CheckOutput(t.log, "output", t.opts.OutputFile, t.opts.Overwrite)
}

// Read implements stage.Stage.
func (t *Transformer[C]) Read(ctx context.Context) stage.Result {
	recs, err := record.LoadFile(t.opts.InputFile)
	if err != nil {
		t.log.Error("cannot read records", zap.String("path", t.opts.InputFile), zap.Error(err))
		return stage.InputError
	}
	if len(recs) == 0 {
		t.log.Error("no records in input", zap.String("path", t.opts.InputFile))
		return stage.InputError
	}
	t.input = recs
	t.log.Info("records read", zap.String("path", t.opts.InputFile), zap.Int("records", len(recs)))
	return stage.Success
}

// Process applies the transform to every record.
func (t *Transformer[C]) Process(ctx context.Context) stage.Result {
	var c C
	if t.prepare != nil {
		var err error
		if c, err = t.prepare(t.input); err != nil {
			t.log.Error("cannot prepare transform", zap.Error(err))
			return stage.Failed
		}
	}
	out := make([]record.Record, len(t.input))
	for i, in := range t.input {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				t.log.Error("transform interrupted", zap.Error(err))
				return stage.Failed
			}
		}
		rec, err := t.fn(c, in.Clone())
		if err != nil {
			t.log.Error("transform failed", zap.String("record", in.Identity()), zap.Error(err))
			return stage.Failed
		}
		out[i] = rec
	}
	t.output = out
	if n := record.Unlabeled(out); n > 0 && t.opts.LabelColumn {
		t.log.Warn("unlabeled records get an empty label column", zap.Int("unlabeled", n), zap.Int("records", len(out)))
	}
	t.log.Info("records transformed", zap.Int("records", len(out)))
	return stage.Success
}

// Write implements stage.Stage.
func (t *Transformer[C]) Write(ctx context.Context) stage.Result {
	if err := writeFile(t.opts.OutputFile, t.output, t.write); err != nil {
		t.log.Error("cannot write output", zap.String("path", t.opts.OutputFile), zap.Error(err))
		return stage.OutputError
	}
	t.log.Info("records written", zap.String("path", t.opts.OutputFile), zap.Int("records", len(t.output)))
	return stage.Success
}

// Cleanup implements stage.Stage.
func (t *Transformer[C]) Cleanup(ctx context.Context) stage.Result { return stage.Success }

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

// JSONWriter writes the record format instead of a tabular one, for
// transforms whose output feeds another transform.
func JSONWriter(w io.Writer, recs []record.Record) error {
	return record.WriteJSON(w, recs)
}
