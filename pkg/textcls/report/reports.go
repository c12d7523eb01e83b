package report

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/cognicore/textcls/pkg/textcls/ledger"
	"github.com/cognicore/textcls/pkg/textcls/result"
)

var (
	errNoData    = errors.New("run has no results or statistics")
	errNoResults = errors.New("run has no per-item results")
	errNoFolds   = errors.New("run was not cross-validated")
)

// counts are one class's confusion totals.
type counts struct {
	support, predicted, correct int
}

func (c counts) scores() (precision, recall, f1 float64) {
	if c.predicted > 0 {
		precision = float64(c.correct) / float64(c.predicted)
	}
	if c.support > 0 {
		recall = float64(c.correct) / float64(c.support)
	}
	return precision, recall, harmonic(precision, recall)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// classCounts derives per-class counts from the per-item results, or from
// the classifier's statistics when the run carries no results.
func classCounts(run *result.Run) map[string]counts {
	out := make(map[string]counts)
	if len(run.Results) > 0 {
		for _, res := range run.Results {
			g := out[res.GoldAnswer]
			g.support++
			if res.Correct() {
				g.correct++
			}
			out[res.GoldAnswer] = g
			p := out[res.ClassifierAnswer]
			p.predicted++
			out[res.ClassifierAnswer] = p
		}
		return out
	}
	for _, s := range run.Statistics {
		out[s.Name] = counts{
			support:   s.Support(),
			predicted: s.TruePositives + s.FalsePositives,
			correct:   s.TruePositives,
		}
	}
	return out
}

// Accuracy reports precision, recall, F1 and support per class, followed
// by micro- and macro-averaged rows. When the run carries the classifier's
// own statistics, its reported F1 is added as a last column.
func Accuracy(run *result.Run) (Table, error) {
	if len(run.Results) == 0 && len(run.Statistics) == 0 {
		return Table{}, errNoData
	}
	withClassifier := len(run.Statistics) > 0
	t := Table{Header: []string{"class", "support", "predicted", "correct", "precision", "recall", "f1"}}
	if withClassifier {
		t.Header = append(t.Header, "classifier_f1")
	}

	cc := classCounts(run)
	labels := run.Labels()
	var total counts
	var sumP, sumR, sumF float64
	for _, label := range labels {
		c := cc[label]
		p, r, f := c.scores()
		total.support += c.support
		total.predicted += c.predicted
		total.correct += c.correct
		sumP, sumR, sumF = sumP+p, sumR+r, sumF+f

		row := []string{label, strconv.Itoa(c.support), strconv.Itoa(c.predicted), strconv.Itoa(c.correct),
			score(p), score(r), score(f)}
		if withClassifier {
			cell := ""
			if s, ok := run.Statistic(label); ok {
				cell = score(s.F1)
			}
			row = append(row, cell)
		}
		t.Rows = append(t.Rows, row)
	}

	p, r, f := total.scores()
	micro := []string{"micro", strconv.Itoa(total.support), strconv.Itoa(total.predicted), strconv.Itoa(total.correct),
		score(p), score(r), score(f)}
	n := float64(max(len(labels), 1))
	macro := []string{"macro", strconv.Itoa(total.support), strconv.Itoa(total.predicted), strconv.Itoa(total.correct),
		score(sumP / n), score(sumR / n), score(sumF / n)}
	if withClassifier {
		micro = append(micro, score(run.MicroF1))
		macro = append(macro, score(run.MacroF1))
	}
	t.Rows = append(t.Rows, micro, macro)
	return t, nil
}

// Confusion reports a gold by predicted count matrix.
func Confusion(run *result.Run) (Table, error) {
	if len(run.Results) == 0 {
		return Table{}, errNoResults
	}
	index := map[string]int{}
	for _, res := range run.Results {
		index[res.GoldAnswer] = 0
		index[res.ClassifierAnswer] = 0
	}
	labels := make([]string, 0, len(index))
	for l := range index {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for i, l := range labels {
		index[l] = i
	}

	matrix := make([][]int, len(labels))
	for i := range matrix {
		matrix[i] = make([]int, len(labels))
	}
	for _, res := range run.Results {
		matrix[index[res.GoldAnswer]][index[res.ClassifierAnswer]]++
	}

	t := Table{Header: append([]string{"gold"}, labels...)}
	for i, l := range labels {
		row := []string{l}
		for _, n := range matrix[i] {
			row = append(row, strconv.Itoa(n))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Folds reports the averaged F1 scores of every cross-validation fold.
func Folds(run *result.Run) (Table, error) {
	if !run.CrossValidated() {
		return Table{}, errNoFolds
	}
	t := Table{Header: []string{"fold", "micro_f1", "macro_f1", "classes"}}
	for i, f := range run.Folds {
		t.Rows = append(t.Rows, []string{strconv.Itoa(i), score(f.MicroF1), score(f.MacroF1), strconv.Itoa(len(f.Statistics))})
	}
	return t, nil
}

// Runs lists ledger runs, newest first.
func Runs(runs []ledger.Summary) (Table, error) {
	t := Table{Header: []string{"id", "started_at", "label", "classifier", "micro_f1", "macro_f1", "results"}}
	for _, s := range runs {
		t.Rows = append(t.Rows, []string{
			s.ID,
			s.StartedAt.UTC().Format(time.RFC3339),
			s.Label,
			s.ClassifierType,
			score(s.MicroF1),
			score(s.MacroF1),
			strconv.Itoa(s.Results),
		})
	}
	return t, nil
}

func score(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
