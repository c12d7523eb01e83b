package tokenize

// Pipeline runs text through tokenization, phrase merging and tagging.
type Pipeline struct {
	tokenizer *Tokenizer
	merger    *PhraseMerger
	tagger    *Tagger
}

// NewPipeline wires the given components. Nil merger or tagger disables
// that step.
func NewPipeline(tokenizer *Tokenizer, merger *PhraseMerger, tagger *Tagger) *Pipeline {
	if tokenizer == nil {
		tokenizer = NewTokenizer(nil)
	}
	return &Pipeline{tokenizer: tokenizer, merger: merger, tagger: tagger}
}

// Output is the result of processing one text.
type Output struct {
	Tokens     []string
	Categories []string
}

// Process tokenizes text, merges phrases, then tags categories.
func (p *Pipeline) Process(text string) Output {
	tokens := p.tokenizer.Tokenize(text)
	if p.merger != nil {
		tokens = p.merger.Merge(tokens)
	}
	var cats []string
	if p.tagger != nil {
		cats = p.tagger.Categories(tokens)
	}
	return Output{Tokens: tokens, Categories: cats}
}

// DocFreq counts, for each token, the number of documents containing it.
type DocFreq struct {
	docs   int
	counts map[string]int
}

// NewDocFreq returns an empty table.
func NewDocFreq() *DocFreq {
	return &DocFreq{counts: make(map[string]int)}
}

// Add records one document's tokens.
func (d *DocFreq) Add(tokens []string) {
	d.docs++
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		d.counts[tok]++
	}
}

// Docs returns the number of documents added.
func (d *DocFreq) Docs() int { return d.docs }

// Count returns the document frequency of tok.
func (d *DocFreq) Count(tok string) int { return d.counts[tok] }

// Ratio returns the fraction of documents containing tok.
func (d *DocFreq) Ratio(tok string) float64 {
	if d.docs == 0 {
		return 0
	}
	return float64(d.counts[tok]) / float64(d.docs)
}

// Filter drops tokens whose document frequency is below minDocs or whose
// ratio exceeds maxRatio. A maxRatio of 0 or more than 1 disables the upper
// bound.
func (d *DocFreq) Filter(tokens []string, minDocs int, maxRatio float64) []string {
	out := tokens[:0:0]
	for _, tok := range tokens {
		if d.counts[tok] < minDocs {
			continue
		}
		if maxRatio > 0 && maxRatio < 1 && d.Ratio(tok) > maxRatio {
			continue
		}
		out = append(out, tok)
	}
	return out
}
