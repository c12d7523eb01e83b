package report

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/ledger"
	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/result"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// RunOptions configures the reports over a single classifier run, read
// either from a results file or from the ledger.
type RunOptions struct {
	ResultsFile    string `yaml:"results_file" validate:"required_without=Ledger"`
	StatisticsFile string `yaml:"statistics_file"`
	Ledger         string `yaml:"ledger"`
	RunID          string `yaml:"run_id"`
	OutputFile     string `yaml:"output_file" validate:"required"`
	Overwrite      bool   `yaml:"overwrite"`
	Delimiter      string `yaml:"delimiter"`
}

// DefaultRunOptions writes a tab separated report.
func DefaultRunOptions() RunOptions {
	return RunOptions{Delimiter: "tab"}
}

// BindFlags registers the report flags.
func (o *RunOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ResultsFile, "input-file", "i", o.ResultsFile, "results JSON written by a classify verb")
	fs.StringVar(&o.StatisticsFile, "statistics-file", o.StatisticsFile, "class statistics JSON replacing those of the results file")
	fs.StringVar(&o.Ledger, "ledger", o.Ledger, "SQLite run ledger to read instead of a results file")
	fs.StringVar(&o.RunID, "run", o.RunID, "ledger run id (default latest)")
	fs.StringVarP(&o.OutputFile, "output-file", "o", o.OutputFile, "report file to write")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace an existing report")
	fs.StringVar(&o.Delimiter, "delimiter", o.Delimiter, "column delimiter (tab, comma or a character)")
}

func (o RunOptions) reporter(name string, report ReportFunc[*result.Run], log *zap.Logger) (stage.Stage, error) {
	if o.ResultsFile != "" && o.Ledger != "" {
		return nil, fmt.Errorf("%w: input-file and ledger are mutually exclusive", internalerr.ErrInvalidConfig)
	}
	delim, err := record.ParseDelimiter(o.Delimiter)
	if err != nil {
		return nil, err
	}
	opts := Options{OutputFile: o.OutputFile, Overwrite: o.Overwrite, Delimiter: delim}
	read := RunFromLedger(o.Ledger, o.RunID)
	if o.ResultsFile != "" {
		opts.Inputs = []string{o.ResultsFile}
		if o.StatisticsFile != "" {
			opts.Inputs = append(opts.Inputs, o.StatisticsFile)
		}
		read = RunFromFile(o.ResultsFile, o.StatisticsFile)
	} else {
		opts.Inputs = []string{o.Ledger}
	}
	return New(name, opts, read, report, log), nil
}

// NewAccuracyStage builds the report-accuracy stage.
func NewAccuracyStage(opts RunOptions, log *zap.Logger) (stage.Stage, error) {
	return opts.reporter("report-accuracy", Accuracy, log)
}

// NewConfusionStage builds the report-confusion stage.
func NewConfusionStage(opts RunOptions, log *zap.Logger) (stage.Stage, error) {
	return opts.reporter("report-confusion", Confusion, log)
}

// NewFoldsStage builds the report-folds stage.
func NewFoldsStage(opts RunOptions, log *zap.Logger) (stage.Stage, error) {
	return opts.reporter("report-folds", Folds, log)
}

// RunsOptions configures the report-runs verb.
type RunsOptions struct {
	Ledger     string `yaml:"ledger" validate:"required"`
	Limit      int    `yaml:"limit" validate:"min=0"`
	OutputFile string `yaml:"output_file" validate:"required"`
	Overwrite  bool   `yaml:"overwrite"`
	Delimiter  string `yaml:"delimiter"`
}

// DefaultRunsOptions lists the 20 newest runs.
func DefaultRunsOptions() RunsOptions {
	return RunsOptions{Limit: 20, Delimiter: "tab"}
}

// BindFlags registers the verb's flags.
func (o *RunsOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Ledger, "ledger", o.Ledger, "SQLite run ledger")
	fs.IntVar(&o.Limit, "limit", o.Limit, "number of runs to list (0 for all)")
	fs.StringVarP(&o.OutputFile, "output-file", "o", o.OutputFile, "report file to write")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace an existing report")
	fs.StringVar(&o.Delimiter, "delimiter", o.Delimiter, "column delimiter (tab, comma or a character)")
}

// NewRunsStage builds the report-runs stage.
func NewRunsStage(opts RunsOptions, log *zap.Logger) (stage.Stage, error) {
	delim, err := record.ParseDelimiter(opts.Delimiter)
	if err != nil {
		return nil, err
	}
	ropts := Options{Inputs: []string{opts.Ledger}, OutputFile: opts.OutputFile, Overwrite: opts.Overwrite, Delimiter: delim}
	return New[[]ledger.Summary]("report-runs", ropts, LedgerRuns(opts.Ledger, opts.Limit), Runs, log), nil
}
