package classify

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/result"
)

func feed(t *testing.T, p Parser, lines ...string) State {
	t.Helper()
	st := NewState()
	for _, line := range lines {
		var err error
		st, _, err = p.Step(st, line)
		require.NoError(t, err, "line %q", line)
	}
	return st
}

func TestParserFourLineLog(t *testing.T) {
	st := feed(t, Parser{TrainFile: "train.tsv"},
		"Built this classifier: LinearClassifier with 12 features, 3 classes, and 36 parameters.",
		"Reading dataset from train.tsv ... done [1.20s, 500 items]",
		"Cls A: TP=10 FN=2 FP=1 TN=87; Acc 0.97 P 0.90 R 0.83 F1 0.86",
		"A\tB\t0.91\t0.05",
	)

	run := st.Run
	assert.Equal(t, "LinearClassifier", run.ClassifierType)
	assert.Equal(t, 12, run.NumberOfFeatures)
	assert.Equal(t, 3, run.NumberOfClasses)
	assert.Equal(t, 36, run.NumberOfParameters)
	assert.Equal(t, 500, run.TrainingItems)
	assert.InDelta(t, 1.2, run.TrainingSeconds, 1e-9)
	assert.Zero(t, run.TestItems)

	require.Len(t, run.Statistics, 1)
	stat := run.Statistics[0]
	assert.Equal(t, "A", stat.Name)
	assert.Equal(t, 10, stat.TruePositives)
	assert.Equal(t, 2, stat.FalseNegatives)
	assert.Equal(t, 1, stat.FalsePositives)
	assert.Equal(t, 87, stat.TrueNegatives)
	assert.InDelta(t, 0.86, stat.F1, 1e-9)

	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, "A", res.GoldAnswer)
	assert.Equal(t, "B", res.ClassifierAnswer)
	assert.InDelta(t, 0.91, res.PGoldAnswer, 1e-9)
	assert.InDelta(t, 0.05, res.PClassifierAnswer, 1e-9)

	assert.False(t, run.CrossValidated())
	assert.Equal(t, 4, st.Lines)
	assert.Zero(t, st.Unrecognized)
}

func TestParserLineKinds(t *testing.T) {
	p := Parser{}
	cases := []struct {
		line string
		want LineKind
	}{
		{"Built this classifier: LinearClassifier with 1 features, 2 classes, and 2 parameters.", LineBuilt},
		{"Reading dataset from a.tsv ... done [0.5s, 3 items]", LineDataset},
		{"### Fold 0", LineFold},
		{"Cls x y: TP=1 FN=0 FP=0 TN=1; Acc 1.0 P 1.0 R 1.0 F1 1.0", LineClass},
		{"Accuracy/micro-averaged F1: 0.5", LineMicroF1},
		{"Micro-averaged accuracy/F1: 0.5", LineMicroF1},
		{"Macro-averaged F1: 0.4", LineMacroF1},
		{"x\ty\t0.1\t0.9", LineResult},
		{"a\tb\tc\td", LineOther},
		{"Numerical features: 0", LineOther},
		{"", LineOther},
	}
	for _, tc := range cases {
		_, kind, err := p.Step(NewState(), tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, kind, tc.line)
	}
}

func TestParserDatasetKeyedByPath(t *testing.T) {
	st := feed(t, Parser{TrainFile: "data/train.tsv", TestFile: "data/test.tsv"},
		"Reading dataset from /abs/data/test.tsv ... done [0.30s, 40 items]",
		"Reading dataset from data/train.tsv ... done [2.00s, 160 items]",
	)
	assert.Equal(t, 160, st.Run.TrainingItems)
	assert.Equal(t, 40, st.Run.TestItems)

	st = feed(t, Parser{},
		"Reading dataset from one.tsv ... done [1.0s, 10 items]",
		"Reading dataset from two.tsv ... done [1.0s, 5 items]",
	)
	assert.Equal(t, 10, st.Run.TrainingItems)
	assert.Equal(t, 5, st.Run.TestItems)
}

func TestParserBadDatasetDetailIsError(t *testing.T) {
	_, kind, err := Parser{}.Step(NewState(), "Reading dataset from train.tsv ... done [soon]")
	assert.Equal(t, LineDataset, kind)
	assert.True(t, errors.Is(err, internalerr.ErrUnexpectedLine), "got %v", err)
}

func TestParserMicroF1Latched(t *testing.T) {
	st := feed(t, Parser{},
		"Accuracy/micro-averaged F1: 0.75",
		"Accuracy/micro-averaged F1: 0.10",
		"Macro-averaged F1: 0.60",
		"Macro-averaged F1: 0.20",
	)
	assert.InDelta(t, 0.75, st.Run.MicroF1, 1e-9)
	assert.InDelta(t, 0.60, st.Run.MacroF1, 1e-9)
}

func TestParserKFold(t *testing.T) {
	lines := []string{"Accuracy/micro-averaged F1: 0.99"}
	for n := 0; n < 10; n++ {
		lines = append(lines,
			fmt.Sprintf("### Fold %d", n),
			fmt.Sprintf("Accuracy/micro-averaged F1: 0.%d5", n),
		)
	}
	st := feed(t, Parser{}, lines...)

	require.Len(t, st.Run.Folds, result.DefaultFolds)
	for n := 0; n < 10; n++ {
		assert.InDelta(t, float64(n)/10+0.05, st.Run.Folds[n].MicroF1, 1e-9, "fold %d", n)
	}
	assert.InDelta(t, 0.99, st.Run.MicroF1, 1e-9, "non-fold scalar must not be overwritten")
	assert.Equal(t, 9, st.Fold)
}

func TestParserFoldsSizedFromConfig(t *testing.T) {
	p := Parser{Folds: 3}
	st := feed(t, p, "### Fold 2", "Cls A: TP=1 FN=0 FP=0 TN=1; Acc 1 P 1 R 1 F1 1", "Macro-averaged F1: 0.5")
	require.Len(t, st.Run.Folds, 3)
	assert.InDelta(t, 0.5, st.Run.Folds[2].MacroF1, 1e-9)
	require.Len(t, st.Run.Folds[2].Statistics, 1)
	assert.Empty(t, st.Run.Statistics)

	_, _, err := p.Step(st, "### Fold 3")
	assert.ErrorIs(t, err, internalerr.ErrUnexpectedLine)
}

func TestStepLeavesInputUnchanged(t *testing.T) {
	p := Parser{Folds: 2}
	tests := []struct {
		name      string
		setup     []string
		line, alt string
	}{
		{"fold micro", []string{"### Fold 0"},
			"Accuracy/micro-averaged F1: 0.75", "Accuracy/micro-averaged F1: 0.25"},
		{"fold macro", []string{"### Fold 1"},
			"Macro-averaged F1: 0.5", "Macro-averaged F1: 0.25"},
		{"fold class", []string{"### Fold 0", "Cls A: TP=1 FN=0 FP=0 TN=1; Acc 1 P 1 R 1 F1 1"},
			"Cls B: TP=0 FN=1 FP=0 TN=1; Acc 0.5 P 0 R 0 F1 0", "Cls C: TP=1 FN=1 FP=0 TN=0; Acc 0.5 P 1 R 0.5 F1 0.67"},
		{"class", []string{"Cls A: TP=1 FN=0 FP=0 TN=1; Acc 1 P 1 R 1 F1 1"},
			"Cls B: TP=0 FN=1 FP=0 TN=1; Acc 0.5 P 0 R 0 F1 0", "Cls C: TP=1 FN=1 FP=0 TN=0; Acc 0.5 P 1 R 0.5 F1 0.67"},
		{"result", []string{"a\ta\t0.9\t0.9", "b\ta\t0.2\t0.8"},
			"c\tc\t0.7\t0.7", "d\tc\t0.1\t0.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := feed(t, p, tt.setup...)
			// Spare capacity lets a shared append reach another state.
			before.Run.Statistics = slices.Grow(before.Run.Statistics, 4)
			before.Run.Results = slices.Grow(before.Run.Results, 4)
			if before.Run.Folds != nil {
				before.Run.Folds[0].Statistics = slices.Grow(before.Run.Folds[0].Statistics, 4)
			}
			snapshot := clone(before)

			after, _, err := p.Step(before, tt.line)
			require.NoError(t, err)
			assert.Equal(t, snapshot.Run, clone(before).Run, "input state changed")
			assert.NotEqual(t, snapshot.Run, after.Run)

			// Stepping the same input again must not disturb the first result.
			want := clone(after)
			other, _, err := p.Step(before, tt.alt)
			require.NoError(t, err)
			assert.Equal(t, want.Run, clone(after).Run)
			assert.NotEqual(t, after.Run, other.Run)
		})
	}
}

// clone deep-copies the slices of st.Run.
func clone(st State) State {
	st.Run.Statistics = slices.Clone(st.Run.Statistics)
	st.Run.Results = slices.Clone(st.Run.Results)
	st.Run.Folds = slices.Clone(st.Run.Folds)
	for i := range st.Run.Folds {
		st.Run.Folds[i].Statistics = slices.Clone(st.Run.Folds[i].Statistics)
	}
	return st
}

func TestParseMatchesStep(t *testing.T) {
	lines := []string{
		"### Fold 0",
		"Cls A: TP=1 FN=0 FP=0 TN=1; Acc 1 P 1 R 1 F1 1",
		"Accuracy/micro-averaged F1: 0.75",
		"### Fold 1",
		"Macro-averaged F1: 0.5",
		"a\ta\t0.9\t0.9",
	}
	p := Parser{Folds: 2}
	parsed, err := p.Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	assert.Equal(t, feed(t, p, lines...).Run, parsed.Run)
}

func TestParserNaNScores(t *testing.T) {
	st := feed(t, Parser{}, "Cls B: TP=0 FN=3 FP=0 TN=7; Acc 0.7 P NaN R 0.0 F1 NaN")
	require.Len(t, st.Run.Statistics, 1)
	assert.Zero(t, st.Run.Statistics[0].Precision)
	assert.Zero(t, st.Run.Statistics[0].F1)
}

func TestParse(t *testing.T) {
	log := strings.Join([]string{
		"Built this classifier: LinearClassifier with 4 features, 2 classes, and 8 parameters.",
		"Reading dataset from test.tsv ... done [0.01s, 2 items]",
		"pos\tpos\t0.8\t0.8",
		"neg\tpos\t0.4\t0.6",
		"Accuracy/micro-averaged F1: 0.50000",
	}, "\n")
	st, err := Parser{TestFile: "test.tsv"}.Parse(strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Run.TestItems)
	assert.Len(t, st.Run.Results, 2)
	assert.InDelta(t, 0.5, st.Run.Accuracy(), 1e-9)
}
