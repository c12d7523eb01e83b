package load

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// SplitOptions configures the split verb.
type SplitOptions struct {
	InputFile string `yaml:"input_file" validate:"required"`
	TrainFile string `yaml:"train_file" validate:"required"`
	TestFile  string `yaml:"test_file" validate:"required"`
	Overwrite bool   `yaml:"overwrite"`
	Ratio     int    `yaml:"ratio" validate:"min=1,max=99"`
	Policy    string `yaml:"policy" validate:"oneof=random ordered"`
	Seed      uint64 `yaml:"seed"`
	Delimiter string `yaml:"delimiter"`
	Header    bool   `yaml:"header"`
}

// DefaultSplitOptions is an 80/20 random split.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{Ratio: 80, Policy: "random", Seed: 1, Delimiter: "tab"}
}

// BindFlags registers the verb's flags.
func (o *SplitOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.InputFile, "input-file", "i", o.InputFile, "JSON record file to split")
	fs.StringVar(&o.TrainFile, "train-file", o.TrainFile, "training file to write")
	fs.StringVar(&o.TestFile, "test-file", o.TestFile, "test file to write")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace existing train and test files")
	fs.IntVar(&o.Ratio, "ratio", o.Ratio, "percentage of records in the training file")
	fs.StringVar(&o.Policy, "policy", o.Policy, "split policy: random or ordered")
	fs.Uint64Var(&o.Seed, "seed", o.Seed, "shuffle seed of the random policy")
	fs.StringVar(&o.Delimiter, "delimiter", o.Delimiter, "column delimiter (tab, comma or a character)")
	fs.BoolVar(&o.Header, "header", o.Header, "write a header row")
}

// NewSplitStage builds the split stage.
func NewSplitStage(opts SplitOptions, log *zap.Logger) (stage.Stage, error) {
	delim, err := record.ParseDelimiter(opts.Delimiter)
	if err != nil {
		return nil, err
	}
	var split SplitFunc
	switch opts.Policy {
	case "random":
		split = RandomSplit(opts.Seed)
	case "ordered":
		split = Ordered
	default:
		return nil, fmt.Errorf("unknown split policy %q", opts.Policy)
	}
	lopts := Options{
		InputFile: opts.InputFile,
		TrainFile: opts.TrainFile,
		TestFile:  opts.TestFile,
		Overwrite: opts.Overwrite,
		Ratio:     opts.Ratio,
	}
	write := record.Delimited{Delimiter: delim, Header: opts.Header}.Write
	return New("split", lopts, split, write, log), nil
}
