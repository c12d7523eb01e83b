package extract

import (
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// CommonOptions are shared by every extract verb.
type CommonOptions struct {
	OutputFile  string `yaml:"output_file" validate:"required"`
	Overwrite   bool   `yaml:"overwrite"`
	Append      bool   `yaml:"append"`
	Compress    bool   `yaml:"compress"`
	Batch       int    `yaml:"batch" validate:"min=0"`
	Records     int    `yaml:"records" validate:"min=0"`
	Format      string `yaml:"format" validate:"oneof=jsonl tsv lines"`
	Delimiter   string `yaml:"delimiter"`
	Header      bool   `yaml:"header"`
	LabelColumn int    `yaml:"label_column" validate:"min=-1"`
	Clean       bool   `yaml:"clean"`
	Markup      bool   `yaml:"markup"`
}

func defaultCommon() CommonOptions {
	return CommonOptions{Batch: DefaultBatch, Format: "jsonl", Delimiter: "tab"}
}

// BindFlags registers the shared flags.
func (o *CommonOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.OutputFile, "output-file", "o", o.OutputFile, "JSON record file to write")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace an existing output file")
	fs.BoolVar(&o.Append, "append", o.Append, "add to an existing output file")
	fs.BoolVar(&o.Compress, "compress", o.Compress, "gzip the output")
	fs.IntVar(&o.Batch, "batch", o.Batch, "records appended per batch; cancellation is checked and progress logged between batches")
	fs.IntVar(&o.Records, "records", o.Records, "maximum number of records to extract (0 for all)")
	fs.StringVar(&o.Format, "format", o.Format, "input format: jsonl, tsv or lines")
	fs.StringVar(&o.Delimiter, "delimiter", o.Delimiter, "column delimiter of tsv input (tab, comma or a character)")
	fs.BoolVar(&o.Header, "header", o.Header, "tsv input starts with a header row")
	fs.IntVar(&o.LabelColumn, "label-column", o.LabelColumn, "zero-based label column of tsv input (-1 for none)")
	fs.BoolVar(&o.Clean, "clean", o.Clean, "normalize text features")
	fs.BoolVar(&o.Markup, "markup", o.Markup, "strip HTML from text features")
}

func (o CommonOptions) build() (ParseFunc, Options, error) {
	parse, err := Parser(o.Format)
	if err != nil {
		return nil, Options{}, err
	}
	delim, err := record.ParseDelimiter(o.Delimiter)
	if err != nil {
		return nil, Options{}, err
	}
	return parse, Options{
		OutputFile: o.OutputFile,
		Overwrite:  o.Overwrite,
		Append:     o.Append,
		Compress:   o.Compress,
		Batch:      o.Batch,
		Records:    o.Records,
		Parse: ParseOptions{
			Clean:       o.Clean,
			Markup:      o.Markup,
			Delimiter:   delim,
			Header:      o.Header,
			LabelColumn: o.LabelColumn,
		},
	}, nil
}

// FileOptions configures the extract-file verb.
type FileOptions struct {
	InputFile     string `yaml:"input_file" validate:"required"`
	CommonOptions `yaml:",inline"`
}

// DefaultFileOptions reads JSONL.
func DefaultFileOptions() FileOptions {
	return FileOptions{CommonOptions: defaultCommon()}
}

// BindFlags registers the verb's flags.
func (o *FileOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.InputFile, "input-file", "i", o.InputFile, "file or archive to extract from")
	o.CommonOptions.BindFlags(fs)
}

// NewFileStage builds the extract-file stage.
func NewFileStage(opts FileOptions, log *zap.Logger) (stage.Stage, error) {
	parse, eopts, err := opts.build()
	if err != nil {
		return nil, err
	}
	return New("extract-file", &FileSource{Path: opts.InputFile}, parse, eopts, log), nil
}

// WebOptions configures the extract-web verb.
type WebOptions struct {
	URL           string        `yaml:"url" validate:"required,url"`
	DownloadDir   string        `yaml:"download_dir"`
	Timeout       time.Duration `yaml:"timeout" validate:"min=0"`
	CommonOptions `yaml:",inline"`
}

// DefaultWebOptions reads JSONL with the default download timeout.
func DefaultWebOptions() WebOptions {
	return WebOptions{Timeout: DefaultDownloadTimeout, CommonOptions: defaultCommon()}
}

// BindFlags registers the verb's flags.
func (o *WebOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.URL, "url", "u", o.URL, "URL to download and extract from")
	fs.StringVar(&o.DownloadDir, "download-dir", o.DownloadDir, "directory for the temporary download")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "download timeout")
	o.CommonOptions.BindFlags(fs)
}

// NewWebStage builds the extract-web stage.
func NewWebStage(opts WebOptions, log *zap.Logger) (stage.Stage, error) {
	parse, eopts, err := opts.build()
	if err != nil {
		return nil, err
	}
	src := &WebSource{URL: opts.URL, Dir: opts.DownloadDir, Timeout: opts.Timeout}
	return New("extract-web", src, parse, eopts, log), nil
}
