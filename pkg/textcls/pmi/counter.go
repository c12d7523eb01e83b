package pmi

import (
	"cmp"
	"slices"
)

// Pair is a class label and a term seen in the same document.
type Pair struct {
	Label, Term string
}

// Counter accumulates document frequencies of labels, terms and their
// co-occurrence.
type Counter struct {
	N      int64
	Labels map[string]int64
	Terms  map[string]int64
	Joint  map[Pair]int64
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{
		Labels: make(map[string]int64),
		Terms:  make(map[string]int64),
		Joint:  make(map[Pair]int64),
	}
}

// Add counts one document. Repeated labels or terms count once.
func (c *Counter) Add(labels, terms []string) {
	c.N++
	labels = unique(labels)
	terms = unique(terms)
	for _, l := range labels {
		c.Labels[l]++
	}
	for _, t := range terms {
		c.Terms[t]++
		for _, l := range labels {
			c.Joint[Pair{Label: l, Term: t}]++
		}
	}
}

// Association is a scored term of one label.
type Association struct {
	Term string
	Docs int64
	PMI  float64
	NPMI float64
}

// Top returns at most n terms of label ordered by NPMI, best first. Terms
// seen with the label in fewer than minDocs documents are left out. n <= 0
// returns every term.
func (c *Counter) Top(calc *Calculator, label string, n int, minDocs int64) []Association {
	var out []Association
	for p, docs := range c.Joint {
		if p.Label != label || docs < minDocs {
			continue
		}
		out = append(out, Association{
			Term: p.Term,
			Docs: docs,
			PMI:  calc.PMI(docs, c.Labels[label], c.Terms[p.Term], c.N),
			NPMI: calc.NPMI(docs, c.Labels[label], c.Terms[p.Term], c.N),
		})
	}
	slices.SortFunc(out, func(a, b Association) int {
		if r := cmp.Compare(b.NPMI, a.NPMI); r != 0 {
			return r
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SortedLabels returns the counted labels in order.
func (c *Counter) SortedLabels() []string {
	out := make([]string, 0, len(c.Labels))
	for l := range c.Labels {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

func unique(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}
