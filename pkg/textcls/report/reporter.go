// Package report turns stored classifier runs into delimited reports.
//
// A Reporter reads its input through a ReadFunc, computes a Table with a
// ReportFunc and writes the table with a header row. Inputs are classifier
// result files or runs recorded in the ledger.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/ledger"
	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/result"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// Table is a computed report.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadFunc loads the reporter's input.
type ReadFunc[T any] func(ctx context.Context) (T, error)

// ReportFunc computes a table from the input.
type ReportFunc[T any] func(in T) (Table, error)

// Options configures a Reporter.
type Options struct {
	// Inputs are checked for existence during Init.
	Inputs     []string
	OutputFile string
	Overwrite  bool
	Delimiter  rune
}

// Reporter is the report stage.
type Reporter[T any] struct {
	name   string
	opts   Options
	read   ReadFunc[T]
	report ReportFunc[T]
	log    *zap.Logger

	input T
	table Table
}

// New returns a Reporter.
func New[T any](name string, opts Options, read ReadFunc[T], report ReportFunc[T], log *zap.Logger) *Reporter[T] {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = '\t'
	}
	return &Reporter[T]{name: name, opts: opts, read: read, report: report, log: log.Named("report")}
}

// Name implements stage.Stage.
func (r *Reporter[T]) Name() string { return r.name }

// Table returns the computed report.
func (r *Reporter[T]) Table() Table { return r.table }

// Init implements stage.Stage.
func (r *Reporter[T]) Init(ctx context.Context) stage.Result {
	for _, in := range r.opts.Inputs {
		if stage.SamePath(in, r.opts.OutputFile) {
			r.log.Error("input and output must differ", zap.String("path", in))
			return stage.InvalidOptions
		}
		if res := stage.CheckInput(r.log, "input", in); res != stage.Success {
			return res
		}
	}
	return stage.CheckOutput(r.log, "report", r.opts.OutputFile, r.opts.Overwrite)
}

// Read implements stage.Stage.
func (r *Reporter[T]) Read(ctx context.Context) stage.Result {
	in, err := r.read(ctx)
	if err != nil {
		r.log.Error("cannot read report input", zap.Error(err))
		return stage.InputError
	}
	r.input = in
	return stage.Success
}

// Process runs the report.
func (r *Reporter[T]) Process(ctx context.Context) stage.Result {
	t, err := r.report(r.input)
	if err != nil {
		r.log.Error("report failed", zap.Error(err))
		return stage.Failed
	}
	r.table = t
	r.log.Info("report computed", zap.Int("rows", len(t.Rows)))
	return stage.Success
}

// Write implements stage.Stage.
func (r *Reporter[T]) Write(ctx context.Context) stage.Result {
	var buf bytes.Buffer
	d := record.Delimited{Delimiter: r.opts.Delimiter}
	if err := d.WriteRows(&buf, r.table.Header, r.table.Rows); err != nil {
		r.log.Error("cannot format report", zap.Error(err))
		return stage.Failed
	}
	if err := os.WriteFile(r.opts.OutputFile, buf.Bytes(), 0o644); err != nil {
		r.log.Error("cannot write report", zap.String("path", r.opts.OutputFile), zap.Error(err))
		return stage.OutputError
	}
	r.log.Info("report written", zap.String("path", r.opts.OutputFile))
	return stage.Success
}

// Cleanup implements stage.Stage.
func (r *Reporter[T]) Cleanup(ctx context.Context) stage.Result { return stage.Success }

// RunFromFile reads a run saved by the classify stage. resultsPath may
// also hold a bare list of results. A non-empty statsPath replaces the
// run's statistics with a bare list of class statistics.
func RunFromFile(resultsPath, statsPath string) ReadFunc[*result.Run] {
	return func(ctx context.Context) (*result.Run, error) {
		data, err := os.ReadFile(resultsPath)
		if err != nil {
			return nil, err
		}
		run := &result.Run{}
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			if run.Results, err = result.LoadResults(resultsPath); err != nil {
				return nil, err
			}
		} else if run, err = result.LoadRun(resultsPath); err != nil {
			return nil, err
		}
		if statsPath != "" {
			if run.Statistics, err = result.LoadStatistics(statsPath); err != nil {
				return nil, err
			}
		}
		return run, nil
	}
}

// RunFromLedger loads run id from the ledger at path, or the latest run
// when id is empty.
func RunFromLedger(path, id string) ReadFunc[*result.Run] {
	return func(ctx context.Context) (run *result.Run, err error) {
		l, err := ledger.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := l.Close(); err == nil {
				err = cerr
			}
		}()
		runID := id
		if runID == "" {
			if runID, err = l.Latest(ctx); err != nil {
				return nil, err
			}
		}
		return l.Load(ctx, runID)
	}
}

// LedgerRuns lists up to limit runs of the ledger at path.
func LedgerRuns(path string, limit int) ReadFunc[[]ledger.Summary] {
	return func(ctx context.Context) (runs []ledger.Summary, err error) {
		l, err := ledger.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := l.Close(); err == nil {
				err = cerr
			}
		}()
		runs, err = l.Runs(ctx, limit)
		if err == nil && len(runs) == 0 {
			err = fmt.Errorf("ledger %s: %w", path, internalerr.ErrNotFound)
		}
		return runs, err
	}
}
