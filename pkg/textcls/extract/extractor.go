// Package extract turns raw files and web resources into record lists.
//
// An Extractor pairs a Source, which yields a byte stream, with a ParseFunc,
// which turns that stream into records. The extracted set is saved in the
// JSON record format, optionally gzip-compressed.
package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// DefaultBatch is the number of parsed records appended at a time.
const DefaultBatch = 1000

// Options configures an Extractor.
type Options struct {
	OutputFile string
	Overwrite  bool
	// Append loads an existing output file first and adds to it. Records
	// are not deduplicated.
	Append   bool
	Compress bool
	// Batch is how many parsed records are appended at a time, with a
	// cancellation check and a progress log in between. Records caps how
	// many new records are taken (0 means all); reading stops there.
	Batch   int
	Records int
	Parse   ParseOptions
}

// Extractor is the extract stage.
type Extractor struct {
	name   string
	source Source
	parse  ParseFunc
	opts   Options
	log    *zap.Logger

	records  []record.Record
	existing int
}

// New returns an Extractor reading source through parse.
func New(name string, source Source, parse ParseFunc, opts Options, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("extract")
	if opts.Parse.Log == nil {
		opts.Parse.Log = log
	}
	return &Extractor{name: name, source: source, parse: parse, opts: opts, log: log}
}

// Name implements stage.Stage.
func (e *Extractor) Name() string { return e.name }

// Records returns the extracted set.
func (e *Extractor) Records() []record.Record { return e.records }

// Init checks the source and the output file.
func (e *Extractor) Init(ctx context.Context) stage.Result {
	if r := e.source.Check(ctx, e.log); r != stage.Success {
		return r
	}
	if e.opts.Append && stage.Exists(e.opts.OutputFile) {
		e.log.Info("appending to existing output", zap.String("path", e.opts.OutputFile))
		return stage.Success
	}
	return stage.CheckOutput(e.log, "output", e.opts.OutputFile, e.opts.Overwrite)
}

// Read loads the existing output in append mode, then extracts from the
// source. No new records is an input error.
func (e *Extractor) Read(ctx context.Context) stage.Result {
	if e.opts.Append && stage.Exists(e.opts.OutputFile) {
		prev, err := record.LoadFile(e.opts.OutputFile)
		if err != nil {
			e.log.Error("cannot load existing output", zap.String("path", e.opts.OutputFile), zap.Error(err))
			return stage.InputError
		}
		e.records = prev
		e.existing = len(prev)
		e.log.Info("existing records loaded", zap.Int("records", e.existing))
	}

	n, err := e.Extract(ctx, e.opts.Batch, e.opts.Records)
	switch {
	case errors.Is(err, internalerr.ErrEmptyArchive):
		e.log.Error("archive has no file entries", zap.Stringer("source", e.source), zap.Error(err))
		return stage.InputError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.log.Error("extraction interrupted", zap.Error(err))
		return stage.Failed
	case err != nil:
		e.log.Error("extraction failed", zap.Stringer("source", e.source), zap.Error(err))
		return stage.InputError
	case n == 0:
		e.log.Error("no records extracted", zap.Stringer("source", e.source))
		return stage.InputError
	}
	return stage.Success
}

// errLimit stops a parser once enough records were taken.
var errLimit = errors.New("record limit reached")

// Extract streams the source through the parser and appends up to limit
// records (0 means all), returning how many were added. Records are
// appended in batches of batch; cancellation is checked between batches,
// and reading stops as soon as the limit is reached.
func (e *Extractor) Extract(ctx context.Context, batch, limit int) (int, error) {
	if batch <= 0 {
		batch = DefaultBatch
	}
	rc, err := e.source.Open(ctx, e.log)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	added := 0
	pending := make([]record.Record, 0, batch)
	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.records = append(e.records, pending...)
		added += len(pending)
		pending = pending[:0]
		e.log.Debug("batch extracted", zap.Int("records", added))
		return nil
	}
	err = e.parse(rc, e.opts.Parse, func(rec record.Record) error {
		pending = append(pending, rec)
		full := limit > 0 && added+len(pending) >= limit
		if len(pending) < batch && !full {
			return nil
		}
		if err := flush(); err != nil {
			return err
		}
		if full {
			return errLimit
		}
		return nil
	})
	switch {
	case errors.Is(err, errLimit):
		e.log.Info("record limit reached", zap.Int("records", limit))
	case err != nil:
		return added, fmt.Errorf("parse %s: %w", e.source, err)
	case len(pending) > 0:
		if err := flush(); err != nil {
			return added, err
		}
	}
	e.log.Info("records extracted", zap.Stringer("source", e.source), zap.Int("records", added))
	return added, nil
}

// Process checks that every record carries an identity.
func (e *Extractor) Process(ctx context.Context) stage.Result {
	labeled := 0
	for i := range e.records {
		if err := e.records[i].Validate(); err != nil {
			e.log.Error("invalid record", zap.Int("index", i), zap.Error(err))
			return stage.Failed
		}
		if e.records[i].Labeled() {
			labeled++
		}
	}
	e.log.Info("records checked",
		zap.Int("records", len(e.records)),
		zap.Int("labeled", labeled),
		zap.Strings("labels", record.Vocabulary(e.records)))
	return stage.Success
}

// Write implements stage.Stage.
func (e *Extractor) Write(ctx context.Context) stage.Result {
	if err := e.Save(); err != nil {
		e.log.Error("cannot write output", zap.String("path", e.opts.OutputFile), zap.Error(err))
		return stage.OutputError
	}
	e.log.Info("records written",
		zap.String("path", e.opts.OutputFile),
		zap.Int("records", len(e.records)),
		zap.Int("appended_to", e.existing),
		zap.Bool("compressed", e.opts.Compress))
	return stage.Success
}

// Save writes the extracted set to the output file. Saving an empty set is
// a programming error and panics.
func (e *Extractor) Save() error {
	if len(e.records) == 0 {
		panic("extract: Save called with no extracted records")
	}
	return record.SaveFile(e.opts.OutputFile, e.records, e.opts.Compress)
}

// Cleanup implements stage.Stage.
func (e *Extractor) Cleanup(ctx context.Context) stage.Result {
	if err := e.source.Cleanup(e.log); err != nil {
		e.log.Warn("source cleanup failed", zap.Stringer("source", e.source), zap.Error(err))
		return stage.Failed
	}
	return stage.Success
}
