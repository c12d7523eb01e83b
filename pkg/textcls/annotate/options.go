package annotate

import (
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// AnnotateOptions configures the annotate verb.
type AnnotateOptions struct {
	stage.FileOptions `yaml:",inline"`
	Compress          bool     `yaml:"compress"`
	Limit             int      `yaml:"limit" validate:"min=0"`
	Show              []string `yaml:"show"`
	MaxWidth          int      `yaml:"max_width" validate:"min=0"`

	// In and Out default to the process's standard streams.
	In  io.Reader `yaml:"-"`
	Out io.Writer `yaml:"-"`
}

// DefaultAnnotateOptions truncates feature values at 400 characters.
func DefaultAnnotateOptions() AnnotateOptions {
	return AnnotateOptions{MaxWidth: 400}
}

// BindFlags registers the verb's flags.
func (o *AnnotateOptions) BindFlags(fs *pflag.FlagSet) {
	o.FileOptions.BindFlags(fs)
	fs.BoolVar(&o.Compress, "compress", o.Compress, "gzip the output")
	fs.IntVar(&o.Limit, "records", o.Limit, "maximum number of records to present (0 for all)")
	fs.StringSliceVar(&o.Show, "show", o.Show, "feature to display (repeatable, default all)")
	fs.IntVar(&o.MaxWidth, "max-width", o.MaxWidth, "truncate displayed values to this many characters")
}

// NewAnnotateStage builds the annotate stage with a terminal prompt.
func NewAnnotateStage(opts AnnotateOptions, log *zap.Logger) (stage.Stage, error) {
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	labeler := &PromptLabeler{In: in, Out: out, Features: opts.Show, MaxWidth: opts.MaxWidth}
	return New(Options{
		InputFile:  opts.InputFile,
		OutputFile: opts.OutputFile,
		Overwrite:  opts.Overwrite,
		Compress:   opts.Compress,
		Limit:      opts.Limit,
	}, labeler, log), nil
}
