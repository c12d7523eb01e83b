package classify

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// StanfordOptions configures the classify-stanford verb.
type StanfordOptions struct {
	TrainFile      string            `yaml:"train_file" validate:"required_if=Train true"`
	TestFile       string            `yaml:"test_file"`
	ModelFile      string            `yaml:"model_file" validate:"required_if=Train false"`
	ResultsFile    string            `yaml:"results_file" validate:"required"`
	PropertiesFile string            `yaml:"properties_file"`
	KeepProperties bool              `yaml:"keep_properties"`
	Properties     map[string]string `yaml:"properties"`
	Overwrite      bool              `yaml:"overwrite"`
	Train          bool              `yaml:"train"`
	Folds          int               `yaml:"folds" validate:"min=0,max=100"`
	JavaHome       string            `yaml:"java_home"`
	Jar            string            `yaml:"jar"`
	MaxHeap        string            `yaml:"max_heap"`
	WorkDir        string            `yaml:"work_dir"`
	Timeout        time.Duration     `yaml:"timeout" validate:"min=0"`
	Ledger         string            `yaml:"ledger"`
	LedgerLabel    string            `yaml:"ledger_label"`
}

// DefaultStanfordOptions trains a new model.
func DefaultStanfordOptions() StanfordOptions {
	return StanfordOptions{Train: true}
}

// BindFlags registers the verb's flags.
func (o *StanfordOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.TrainFile, "train-file", o.TrainFile, "training data (label<TAB>text)")
	fs.StringVar(&o.TestFile, "test-file", o.TestFile, "test data (label<TAB>text)")
	fs.StringVar(&o.ModelFile, "model-file", o.ModelFile, "where to save (or, with --train=false, load) the model")
	fs.StringVarP(&o.ResultsFile, "output-file", "o", o.ResultsFile, "JSON file for parsed results")
	fs.StringVar(&o.PropertiesFile, "prop-file", o.PropertiesFile, "generated classifier properties file")
	fs.BoolVar(&o.KeepProperties, "keep-prop", o.KeepProperties, "keep the generated properties file")
	fs.StringToStringVar(&o.Properties, "property", o.Properties, "extra classifier property key=value")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace an existing results file")
	fs.BoolVar(&o.Train, "train", o.Train, "train a new model instead of loading --model-file")
	fs.IntVar(&o.Folds, "folds", o.Folds, "cross-validation folds on the training file (0 disables)")
	fs.StringVar(&o.JavaHome, "java-home", o.JavaHome, "JVM home, defaults to $"+EnvJavaHome)
	fs.StringVar(&o.Jar, "jar", o.Jar, "classifier jar, defaults to $"+EnvJar)
	fs.StringVar(&o.MaxHeap, "max-heap", o.MaxHeap, "JVM maximum heap, e.g. 2g")
	fs.StringVar(&o.WorkDir, "work-dir", o.WorkDir, "working directory of the classifier process")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "kill the classifier after this long (0 waits forever)")
	fs.StringVar(&o.Ledger, "ledger", o.Ledger, "SQLite run ledger to record into")
	fs.StringVar(&o.LedgerLabel, "ledger-label", o.LedgerLabel, "label of the run in the ledger")
}

// NewStanfordStage builds the classify-stanford stage from validated
// options.
func NewStanfordStage(opts StanfordOptions, log *zap.Logger) (stage.Stage, error) {
	props := opts.PropertiesFile
	if props == "" {
		props = strings.TrimSuffix(opts.ResultsFile, ".json") + ".prop"
	}
	trainer := &Stanford{
		JavaHome:       opts.JavaHome,
		Jar:            opts.Jar,
		PropertiesFile: props,
		KeepProperties: opts.KeepProperties,
		Properties:     opts.Properties,
		MaxHeap:        opts.MaxHeap,
		TrainFile:      opts.TrainFile,
		TestFile:       opts.TestFile,
		ModelFile:      opts.ModelFile,
		Folds:          opts.Folds,
		Train:          opts.Train,
		Dir:            opts.WorkDir,
	}
	return New(Options{
		TrainFile:   opts.TrainFile,
		TestFile:    opts.TestFile,
		ResultsFile: opts.ResultsFile,
		Overwrite:   opts.Overwrite,
		Folds:       opts.Folds,
		Train:       opts.Train,
		Timeout:     opts.Timeout,
		Ledger:      opts.Ledger,
		LedgerLabel: opts.LedgerLabel,
	}, trainer, log), nil
}
