package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/pmi"
	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

var errNoTerms = errors.New("no labeled record carries the term feature")

// TermSettings tune the term association report.
type TermSettings struct {
	Feature string
	Top     int
	MinDocs int64
	Epsilon float64
}

// Records reads a record file.
func Records(path string) ReadFunc[[]record.Record] {
	return func(ctx context.Context) ([]record.Record, error) {
		recs, err := record.LoadFile(path)
		if err == nil && len(recs) == 0 {
			err = fmt.Errorf("%s: %w", path, internalerr.ErrNoRecords)
		}
		return recs, err
	}
}

// Terms lists, per class, the terms of a whitespace separated text
// feature most associated with the class by NPMI.
func Terms(set TermSettings) ReportFunc[[]record.Record] {
	return func(recs []record.Record) (Table, error) {
		counter := pmi.NewCounter()
		for i := range recs {
			rec := &recs[i]
			if !rec.Labeled() {
				continue
			}
			v, ok := rec.Feature(set.Feature)
			if !ok {
				continue
			}
			var labels []string
			for _, l := range rec.Labels {
				if l.Weight != 0 {
					labels = append(labels, l.Name)
				}
			}
			counter.Add(labels, strings.Fields(v.String()))
		}
		if counter.N == 0 {
			return Table{}, errNoTerms
		}

		calc := pmi.NewCalculator(set.Epsilon)
		t := Table{Header: []string{"class", "term", "docs", "pmi", "npmi"}}
		for _, label := range counter.SortedLabels() {
			for _, a := range counter.Top(calc, label, set.Top, set.MinDocs) {
				t.Rows = append(t.Rows, []string{
					label, a.Term, strconv.FormatInt(a.Docs, 10), score(a.PMI), score(a.NPMI),
				})
			}
		}
		return t, nil
	}
}

// TermsOptions configures the report-terms verb.
type TermsOptions struct {
	InputFile  string  `yaml:"input_file" validate:"required"`
	OutputFile string  `yaml:"output_file" validate:"required"`
	Overwrite  bool    `yaml:"overwrite"`
	Delimiter  string  `yaml:"delimiter"`
	Feature    string  `yaml:"feature" validate:"required"`
	Top        int     `yaml:"top" validate:"min=0"`
	MinDocs    int64   `yaml:"min_docs" validate:"min=1"`
	Epsilon    float64 `yaml:"epsilon" validate:"gt=0"`
}

// DefaultTermsOptions reads the tokens feature and keeps ten terms per
// class seen in at least two documents.
func DefaultTermsOptions() TermsOptions {
	return TermsOptions{Delimiter: "tab", Feature: "tokens", Top: 10, MinDocs: 2, Epsilon: 1}
}

// BindFlags registers the verb's flags.
func (o *TermsOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.InputFile, "input-file", "i", o.InputFile, "record JSON file, usually tokenize output")
	fs.StringVarP(&o.OutputFile, "output-file", "o", o.OutputFile, "report file to write")
	fs.BoolVar(&o.Overwrite, "overwrite", o.Overwrite, "replace an existing report")
	fs.StringVar(&o.Delimiter, "delimiter", o.Delimiter, "column delimiter (tab, comma or a character)")
	fs.StringVar(&o.Feature, "feature", o.Feature, "text feature holding space separated terms")
	fs.IntVar(&o.Top, "top", o.Top, "terms per class (0 for all)")
	fs.Int64Var(&o.MinDocs, "min-docs", o.MinDocs, "minimum documents a term shares with the class")
	fs.Float64Var(&o.Epsilon, "epsilon", o.Epsilon, "PMI smoothing constant")
}

// NewTermsStage builds the report-terms stage.
func NewTermsStage(opts TermsOptions, log *zap.Logger) (stage.Stage, error) {
	delim, err := record.ParseDelimiter(opts.Delimiter)
	if err != nil {
		return nil, err
	}
	ropts := Options{Inputs: []string{opts.InputFile}, OutputFile: opts.OutputFile, Overwrite: opts.Overwrite, Delimiter: delim}
	set := TermSettings{Feature: opts.Feature, Top: opts.Top, MinDocs: opts.MinDocs, Epsilon: opts.Epsilon}
	return New("report-terms", ropts, Records(opts.InputFile), Terms(set), log), nil
}
