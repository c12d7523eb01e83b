package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/ledger"
	"github.com/cognicore/textcls/pkg/textcls/result"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

func answers() []result.ClassifierResult {
	pairs := [][2]string{{"A", "A"}, {"A", "B"}, {"B", "B"}, {"B", "B"}, {"C", "A"}}
	out := make([]result.ClassifierResult, len(pairs))
	for i, p := range pairs {
		out[i] = result.ClassifierResult{GoldAnswer: p[0], ClassifierAnswer: p[1], PGoldAnswer: 0.5, PClassifierAnswer: 0.5}
	}
	return out
}

func TestAccuracyFromResults(t *testing.T) {
	table, err := Accuracy(&result.Run{Results: answers()})
	require.NoError(t, err)
	assert.Equal(t, []string{"class", "support", "predicted", "correct", "precision", "recall", "f1"}, table.Header)
	assert.Equal(t, [][]string{
		{"A", "2", "2", "1", "0.5000", "0.5000", "0.5000"},
		{"B", "2", "3", "2", "0.6667", "1.0000", "0.8000"},
		{"C", "1", "0", "0", "0.0000", "0.0000", "0.0000"},
		{"micro", "5", "5", "3", "0.6000", "0.6000", "0.6000"},
		{"macro", "5", "5", "3", "0.3889", "0.5000", "0.4333"},
	}, table.Rows)
}

func TestAccuracyWithClassifierStatistics(t *testing.T) {
	run := &result.Run{
		Results:    answers(),
		Statistics: []result.ClassStatistic{{Name: "A", TruePositives: 1, FalseNegatives: 1, FalsePositives: 1, F1: 0.5}},
		MicroF1:    0.6,
		MacroF1:    0.41,
	}
	table, err := Accuracy(run)
	require.NoError(t, err)
	assert.Equal(t, "classifier_f1", table.Header[len(table.Header)-1])
	assert.Equal(t, "0.5000", table.Rows[0][7])
	assert.Equal(t, "", table.Rows[1][7], "no classifier statistic for B")
	assert.Equal(t, "0.6000", table.Rows[3][7])
	assert.Equal(t, "0.4100", table.Rows[4][7])
}

func TestAccuracyFromStatisticsOnly(t *testing.T) {
	run := &result.Run{Statistics: []result.ClassStatistic{
		{Name: "pos", TruePositives: 8, FalseNegatives: 2, FalsePositives: 0, F1: 0.89},
		{Name: "neg", TruePositives: 10, FalseNegatives: 0, FalsePositives: 2, F1: 0.91},
	}}
	table, err := Accuracy(run)
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "10", "12", "10", "0.8333", "1.0000", "0.9091", "0.9100"}, table.Rows[0])
	assert.Equal(t, []string{"pos", "10", "8", "8", "1.0000", "0.8000", "0.8889", "0.8900"}, table.Rows[1])
	assert.Equal(t, "18", table.Rows[2][3])
}

func TestAccuracyWithoutData(t *testing.T) {
	_, err := Accuracy(&result.Run{})
	assert.ErrorIs(t, err, errNoData)
}

func TestConfusion(t *testing.T) {
	table, err := Confusion(&result.Run{Results: answers()})
	require.NoError(t, err)
	assert.Equal(t, []string{"gold", "A", "B", "C"}, table.Header)
	assert.Equal(t, [][]string{
		{"A", "1", "1", "0"},
		{"B", "0", "2", "0"},
		{"C", "1", "0", "0"},
	}, table.Rows)

	_, err = Confusion(&result.Run{})
	assert.ErrorIs(t, err, errNoResults)
}

func TestFolds(t *testing.T) {
	run := &result.Run{Folds: []result.Fold{{MicroF1: 0.8, MacroF1: 0.7}, {MicroF1: 0.9, MacroF1: 0.85, Statistics: make([]result.ClassStatistic, 2)}}}
	table, err := Folds(run)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0", "0.8000", "0.7000", "0"}, {"1", "0.9000", "0.8500", "2"}}, table.Rows)

	_, err = Folds(&result.Run{})
	assert.ErrorIs(t, err, errNoFolds)
}

func runStage(t *testing.T, s stage.Stage) stage.Result {
	t.Helper()
	return stage.Run(context.Background(), s, zaptest.NewLogger(t))
}

func TestAccuracyStageFromFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "results.json")
	require.NoError(t, result.Save(in, &result.Run{ClassifierType: "LinearClassifier", Results: answers()}))

	opts := DefaultRunOptions()
	opts.ResultsFile = in
	opts.OutputFile = filepath.Join(dir, "accuracy.tsv")
	require.NoError(t, stage.Validate(&opts))
	s, err := NewAccuracyStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, runStage(t, s))

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "class\tsupport\tpredicted\tcorrect\tprecision\trecall\tf1", lines[0])
	assert.Equal(t, "micro\t5\t5\t3\t0.6000\t0.6000\t0.6000", lines[4])

	assert.Equal(t, stage.OutputError, runStage(t, s), "second run refuses to overwrite")
}

func TestConfusionStageFromBareResultsList(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "results.json")
	require.NoError(t, result.Save(in, answers()))

	opts := DefaultRunOptions()
	opts.ResultsFile = in
	opts.OutputFile = filepath.Join(dir, "confusion.csv")
	opts.Delimiter = "comma"
	s, err := NewConfusionStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, runStage(t, s))

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "gold,A,B,C\nA,1,1,0\nB,0,2,0\nC,1,0,0\n", string(data))
}

func TestStatisticsFileReplacesRunStatistics(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "results.json")
	stats := filepath.Join(dir, "stats.json")
	require.NoError(t, result.Save(in, answers()))
	require.NoError(t, result.Save(stats, []result.ClassStatistic{{Name: "B", F1: 0.8}}))

	got, err := RunFromFile(in, stats)(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Results, 5)
	require.Len(t, got.Statistics, 1)
	assert.Equal(t, "B", got.Statistics[0].Name)
}

func seedLedger(t *testing.T, path string) (older, newer string) {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	older, err = l.Record(ctx, "baseline", &result.Run{StartedAt: base, ClassifierType: "LinearClassifier", MicroF1: 0.5, Results: answers()[:2]})
	require.NoError(t, err)
	newer, err = l.Record(ctx, "tuned", &result.Run{StartedAt: base.Add(time.Hour), ClassifierType: "LinearClassifier", MicroF1: 0.6, Results: answers()})
	require.NoError(t, err)
	return older, newer
}

func TestReportsFromLedger(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	older, _ := seedLedger(t, db)

	latest, err := RunFromLedger(db, "")(context.Background())
	require.NoError(t, err)
	assert.Len(t, latest.Results, 5)

	first, err := RunFromLedger(db, older)(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Results, 2)

	_, err = RunFromLedger(db, "01HZZZZZZZZZZZZZZZZZZZZZZZ")(context.Background())
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))

	opts := DefaultRunOptions()
	opts.Ledger = db
	opts.RunID = older
	opts.OutputFile = filepath.Join(dir, "confusion.tsv")
	require.NoError(t, stage.Validate(&opts))
	s, err := NewConfusionStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, runStage(t, s))
	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "gold\tA\tB\nA\t1\t1\nB\t0\t0\n", string(data))
}

func TestRunsStage(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	_, newer := seedLedger(t, db)

	opts := DefaultRunsOptions()
	opts.Ledger = db
	opts.OutputFile = filepath.Join(dir, "runs.tsv")
	require.NoError(t, stage.Validate(&opts))
	s, err := NewRunsStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, runStage(t, s))

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, newer+"\t2024-05-01T13:00:00Z\ttuned\tLinearClassifier\t0.6000\t0.0000\t5", lines[1])
}

func TestRunOptionsErrors(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultRunOptions()
	opts.OutputFile = filepath.Join(dir, "out.tsv")
	err := stage.Validate(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResultsFile is required when Ledger is empty")

	opts.ResultsFile = filepath.Join(dir, "results.json")
	opts.Ledger = filepath.Join(dir, "runs.db")
	_, err = NewAccuracyStage(opts, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	opts.Ledger = ""
	s, err := NewAccuracyStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, stage.InputError, runStage(t, s), "missing results file")
}
