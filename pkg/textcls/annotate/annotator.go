// Package annotate collects human labels for records that do not carry
// one yet.
package annotate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// Labeler assigns a label to one record. vocab is the sorted set of known
// labels. An empty label skips the record; internalerr.ErrStop ends the
// session and keeps the labels given so far.
type Labeler interface {
	Label(ctx context.Context, rec *record.Record, vocab []string) (string, error)
}

// Options configures an Annotator.
type Options struct {
	InputFile  string
	OutputFile string
	Overwrite  bool
	Compress   bool
	// Limit caps the records presented in one session (0 means all).
	Limit int
}

// Annotator is the annotate stage.
type Annotator struct {
	opts    Options
	labeler Labeler
	log     *zap.Logger

	records []record.Record
	pending []int
	vocab   []string
	labeled int
}

// New returns an Annotator.
func New(opts Options, labeler Labeler, log *zap.Logger) *Annotator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Annotator{opts: opts, labeler: labeler, log: log.Named("annotate")}
}

// Name implements stage.Stage.
func (a *Annotator) Name() string { return "annotate" }

// Records returns every record, labeled or not.
func (a *Annotator) Records() []record.Record { return a.records }

// Pending returns the indices of records still needing a label.
func (a *Annotator) Pending() []int { return a.pending }

// Vocabulary returns the known labels.
func (a *Annotator) Vocabulary() []string { return a.vocab }

// Init implements stage.Stage.
func (a *Annotator) Init(ctx context.Context) stage.Result {
	if r := stage.CheckInput(a.log, "input", a.opts.InputFile); r != stage.Success {
		return r
	}
	return stage.CheckOutput(a.log, "output", a.opts.OutputFile, a.opts.Overwrite)
}

// Read loads the records and partitions them. Without a single labeled
// record there is no vocabulary to offer, which fails the stage.
func (a *Annotator) Read(ctx context.Context) stage.Result {
	recs, err := record.LoadFile(a.opts.InputFile)
	if err != nil {
		a.log.Error("cannot read records", zap.String("path", a.opts.InputFile), zap.Error(err))
		return stage.InputError
	}
	a.records = recs
	a.pending = a.pending[:0]
	for i := range recs {
		if recs[i].NeedsLabel() {
			a.pending = append(a.pending, i)
		}
	}
	a.vocab = record.Vocabulary(recs)
	labeled := len(recs) - len(a.pending)
	a.log.Info("records read",
		zap.Int("records", len(recs)),
		zap.Int("labeled", labeled),
		zap.Int("pending", len(a.pending)),
		zap.Strings("labels", a.vocab))
	if labeled == 0 {
		a.log.Error("no labeled records to take the label set from", zap.String("path", a.opts.InputFile))
		return stage.Failed
	}
	return stage.Success
}

// Process presents pending records to the labeler.
func (a *Annotator) Process(ctx context.Context) stage.Result {
	todo := a.pending
	if a.opts.Limit > 0 && len(todo) > a.opts.Limit {
		todo = todo[:a.opts.Limit]
	}
	for _, i := range todo {
		if err := ctx.Err(); err != nil {
			a.log.Warn("annotation interrupted", zap.Error(err))
			break
		}
		rec := &a.records[i]
		label, err := a.labeler.Label(ctx, rec, a.vocab)
		if errors.Is(err, internalerr.ErrStop) {
			a.log.Info("annotation stopped")
			break
		}
		if err != nil {
			a.log.Error("labeler failed", zap.String("record", rec.Identity()), zap.Error(err))
			return stage.Failed
		}
		if label == "" {
			a.log.Debug("record skipped", zap.String("record", rec.Identity()))
			continue
		}
		rec.Labels = []record.Label{{Name: label, Weight: 1}}
		a.labeled++
		a.log.Debug("record labeled", zap.String("record", rec.Identity()), zap.String("label", label))
	}
	a.log.Info("annotation finished", zap.Int("labeled", a.labeled), zap.Int("pending", len(a.pending)-a.labeled))
	return stage.Success
}

// Write saves every record, including those still unlabeled.
func (a *Annotator) Write(ctx context.Context) stage.Result {
	if err := record.SaveFile(a.opts.OutputFile, a.records, a.opts.Compress); err != nil {
		a.log.Error("cannot write records", zap.String("path", a.opts.OutputFile), zap.Error(err))
		return stage.OutputError
	}
	a.log.Info("records written", zap.String("path", a.opts.OutputFile), zap.Int("records", len(a.records)))
	return stage.Success
}

// Cleanup implements stage.Stage.
func (a *Annotator) Cleanup(ctx context.Context) stage.Result { return stage.Success }
