package transform

import (
	"slices"
	"strings"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/tokenize"
)

// Token feature names written by the tokenize transform.
const (
	TokensFeature     = "tokens"
	CategoriesFeature = "categories"
)

// Tokenizing holds the pipeline and the corpus document frequencies the
// tokenize transform filters with.
type Tokenizing struct {
	Pipeline *tokenize.Pipeline
	DocFreq  *tokenize.DocFreq
	// Fields restricts tokenization to these text features; empty means
	// every text feature.
	Fields     []string
	MinDocs    int
	MaxDF      float64
	Categories bool
}

// PrepareTokenizing returns a PrepareFunc that counts document
// frequencies over the whole input with the given pipeline.
func PrepareTokenizing(base Tokenizing) PrepareFunc[*Tokenizing] {
	return func(in []record.Record) (*Tokenizing, error) {
		tk := base
		if tk.Pipeline == nil {
			tk.Pipeline = tokenize.NewPipeline(nil, nil, nil)
		}
		tk.DocFreq = tokenize.NewDocFreq()
		for _, rec := range in {
			tk.DocFreq.Add(tk.Pipeline.Process(tk.text(rec)).Tokens)
		}
		return &tk, nil
	}
}

// Tokenize replaces the text features of a record with one space
// separated token feature, followed by the keyword categories when
// enabled. Numeric features are kept after them in their original order.
func Tokenize(tk *Tokenizing, in record.Record) (record.Record, error) {
	out := tokenize.Output{}
	if tk.Pipeline != nil {
		out = tk.Pipeline.Process(tk.text(in))
	}
	tokens := out.Tokens
	if tk.DocFreq != nil {
		tokens = tk.DocFreq.Filter(tokens, tk.MinDocs, tk.MaxDF)
	}

	features := []record.Feature{{Name: TokensFeature, Value: record.Text(strings.Join(tokens, " "))}}
	if tk.Categories {
		features = append(features, record.Feature{
			Name:  CategoriesFeature,
			Value: record.Text(strings.Join(out.Categories, " ")),
		})
	}
	for _, f := range in.Features {
		if f.Value.Kind() == record.KindNumber {
			features = append(features, f)
		}
	}
	in.Features = features
	return in, nil
}

func (tk *Tokenizing) text(rec record.Record) string {
	var parts []string
	for _, f := range rec.Features {
		if f.Value.Kind() != record.KindText {
			continue
		}
		if len(tk.Fields) > 0 && !slices.Contains(tk.Fields, f.Name) {
			continue
		}
		parts = append(parts, f.Value.String())
	}
	return strings.Join(parts, " ")
}
