package transform

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/config"
	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// OutputOptions selects the output writer.
type OutputOptions struct {
	Format string `yaml:"format" validate:"oneof=tsv csv json"`
	Header bool   `yaml:"header"`
}

// BindFlags registers the output flags.
func (o *OutputOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Format, "format", o.Format, "output format: tsv, csv or json")
	fs.BoolVar(&o.Header, "header", o.Header, "write a header row (tsv and csv)")
}

// Writer returns the WriteFunc for the format.
func (o OutputOptions) Writer() (WriteFunc, error) {
	switch o.Format {
	case "", "tsv":
		return record.Delimited{Delimiter: '\t', Header: o.Header}.Write, nil
	case "csv":
		return record.Delimited{Delimiter: ',', Header: o.Header}.Write, nil
	case "json":
		return JSONWriter, nil
	}
	return nil, fmt.Errorf("unsupported output format %q", o.Format)
}

// TokenizeOptions configures the tokenize verb.
type TokenizeOptions struct {
	stage.FileOptions `yaml:",inline"`
	OutputOptions     `yaml:",inline"`
	Stoplist          string   `yaml:"stoplist"`
	Phrases           string   `yaml:"phrases"`
	Keywords          string   `yaml:"keywords"`
	Joiner            string   `yaml:"joiner"`
	MinLength         int      `yaml:"min_length" validate:"min=0"`
	KeepNumbers       bool     `yaml:"keep_numbers"`
	Fields            []string `yaml:"fields"`
	MinDocs           int      `yaml:"min_docs" validate:"min=0"`
	MaxDF             float64  `yaml:"max_df" validate:"min=0,max=1"`
	Categories        bool     `yaml:"categories"`
}

// DefaultTokenizeOptions drops tokens found in more than 80% of documents.
func DefaultTokenizeOptions() TokenizeOptions {
	return TokenizeOptions{
		OutputOptions: OutputOptions{Format: "tsv"},
		Joiner:        "_",
		MinLength:     2,
		MaxDF:         0.8,
	}
}

// BindFlags registers the verb's flags.
func (o *TokenizeOptions) BindFlags(fs *pflag.FlagSet) {
	o.FileOptions.BindFlags(fs)
	o.OutputOptions.BindFlags(fs)
	fs.StringVar(&o.Stoplist, "stoplist", o.Stoplist, "stopword YAML file")
	fs.StringVar(&o.Phrases, "phrases", o.Phrases, "phrase dictionary (canonical|variant...|category)")
	fs.StringVar(&o.Keywords, "keywords", o.Keywords, "keyword category YAML file")
	fs.StringVar(&o.Joiner, "joiner", o.Joiner, "separator inside merged phrases")
	fs.IntVar(&o.MinLength, "min-length", o.MinLength, "shortest token kept")
	fs.BoolVar(&o.KeepNumbers, "keep-numbers", o.KeepNumbers, "keep numeric tokens")
	fs.StringSliceVar(&o.Fields, "field", o.Fields, "text feature to tokenize (repeatable, default all)")
	fs.IntVar(&o.MinDocs, "min-docs", o.MinDocs, "drop tokens found in fewer documents")
	fs.Float64Var(&o.MaxDF, "max-df", o.MaxDF, "drop tokens found in a larger fraction of documents (0 or 1 keeps all)")
	fs.BoolVar(&o.Categories, "categories", o.Categories, "add a keyword categories feature")
}

// NewTokenizeStage builds the tokenize stage. Resource files are loaded
// here so a bad dictionary is reported as invalid options.
func NewTokenizeStage(opts TokenizeOptions, log *zap.Logger) (stage.Stage, error) {
	write, err := opts.Writer()
	if err != nil {
		return nil, err
	}
	loader := config.Loader{
		StoplistPath: opts.Stoplist,
		PhrasesPath:  opts.Phrases,
		KeywordsPath: opts.Keywords,
		Joiner:       opts.Joiner,
		MinLength:    opts.MinLength,
		KeepNumbers:  opts.KeepNumbers,
	}
	pipeline, err := loader.Load()
	if err != nil {
		return nil, err
	}
	prepare := PrepareTokenizing(Tokenizing{
		Pipeline:   pipeline,
		Fields:     opts.Fields,
		MinDocs:    opts.MinDocs,
		MaxDF:      opts.MaxDF,
		Categories: opts.Categories,
	})
	return New[*Tokenizing]("tokenize", fileOptions(opts.FileOptions, opts.OutputOptions), prepare, Tokenize, write, log), nil
}

// SelectOptions configures the select verb.
type SelectOptions struct {
	stage.FileOptions `yaml:",inline"`
	OutputOptions     `yaml:",inline"`
	Features          []string `yaml:"features" validate:"min=1,dive,required"`
	AllowMissing      bool     `yaml:"allow_missing"`
}

// DefaultSelectOptions writes TSV.
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{OutputOptions: OutputOptions{Format: "tsv"}}
}

// BindFlags registers the verb's flags.
func (o *SelectOptions) BindFlags(fs *pflag.FlagSet) {
	o.FileOptions.BindFlags(fs)
	o.OutputOptions.BindFlags(fs)
	fs.StringSliceVarP(&o.Features, "feature", "f", o.Features, "feature to keep, in output order (repeatable)")
	fs.BoolVar(&o.AllowMissing, "allow-missing", o.AllowMissing, "write empty values for absent features")
}

// NewSelectStage builds the select stage.
func NewSelectStage(opts SelectOptions, log *zap.Logger) (stage.Stage, error) {
	write, err := opts.Writer()
	if err != nil {
		return nil, err
	}
	sel := Selection{Features: opts.Features, AllowMissing: opts.AllowMissing}
	prepare := func([]record.Record) (Selection, error) { return sel, nil }
	return New[Selection]("select", fileOptions(opts.FileOptions, opts.OutputOptions), prepare, Select, write, log), nil
}

func fileOptions(fo stage.FileOptions, out OutputOptions) Options {
	return Options{
		InputFile:   fo.InputFile,
		OutputFile:  fo.OutputFile,
		Overwrite:   fo.Overwrite,
		LabelColumn: out.Format != "json",
	}
}
