package load

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

func records(n int) []record.Record {
	recs := make([]record.Record, n)
	for i := range recs {
		recs[i] = record.Record{
			Labels:   []record.Label{{Name: fmt.Sprintf("c%d", i%3), Weight: 1}},
			Features: []record.Feature{{Name: "text", Value: record.Text(fmt.Sprintf("doc %d", i))}},
		}.WithNumericID(int64(i + 1))
	}
	return recs
}

func identities(recs []record.Record) []string {
	out := make([]string, len(recs))
	for i := range recs {
		out[i] = recs[i].Identity()
	}
	return out
}

func TestSplitPartitionsInput(t *testing.T) {
	policies := map[string]SplitFunc{
		"ordered": Ordered,
		"random":  RandomSplit(42),
	}
	for name, split := range policies {
		for _, n := range []int{1, 2, 3, 10, 97} {
			for _, ratio := range []int{1, 33, 50, 80, 99} {
				recs := records(n)
				train, test := split(recs, ratio)
				require.Equal(t, n, len(train)+len(test), "%s n=%d ratio=%d", name, n, ratio)

				seen := make(map[string]int)
				for _, id := range identities(train) {
					seen[id]++
				}
				for _, id := range identities(test) {
					seen[id]++
				}
				require.Len(t, seen, n, "%s n=%d ratio=%d", name, n, ratio)
				for id, c := range seen {
					require.Equal(t, 1, c, "%s: %s appears in both sets", name, id)
				}
				if n >= 2 {
					assert.NotEmpty(t, train)
					assert.NotEmpty(t, test)
				}
			}
		}
	}
}

func TestOrderedKeepsInputOrder(t *testing.T) {
	train, test := Ordered(records(10), 70)
	assert.Equal(t, []string{"#1", "#2", "#3", "#4", "#5", "#6", "#7"}, identities(train))
	assert.Equal(t, []string{"#8", "#9", "#10"}, identities(test))
}

func TestRandomSplitIsSeeded(t *testing.T) {
	recs := records(50)
	a, _ := RandomSplit(7)(recs, 60)
	b, _ := RandomSplit(7)(recs, 60)
	c, _ := RandomSplit(8)(recs, 60)
	assert.Equal(t, identities(a), identities(b))
	assert.NotEqual(t, identities(a), identities(c))
	assert.Equal(t, "#1", recs[0].Identity(), "input is not reordered")
}

func setup(t *testing.T, n int) (dir, in string) {
	t.Helper()
	dir = t.TempDir()
	in = filepath.Join(dir, "in.json")
	require.NoError(t, record.SaveFile(in, records(n), false))
	return dir, in
}

func TestSplitStage(t *testing.T) {
	dir, in := setup(t, 10)
	opts := DefaultSplitOptions()
	opts.InputFile = in
	opts.TrainFile = filepath.Join(dir, "out", "train.tsv")
	opts.TestFile = filepath.Join(dir, "out", "test.tsv")
	opts.Policy = "ordered"
	require.NoError(t, stage.Validate(&opts))

	s, err := NewSplitStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, stage.Run(context.Background(), s, zaptest.NewLogger(t)))

	train, err := os.ReadFile(opts.TrainFile)
	require.NoError(t, err)
	test, err := os.ReadFile(opts.TestFile)
	require.NoError(t, err)
	assert.Equal(t, 8, strings.Count(string(train), "\n"))
	assert.Equal(t, "c2\tdoc 8\nc0\tdoc 9\n", string(test))
}

func TestSplitInit(t *testing.T) {
	dir, in := setup(t, 4)
	existing := filepath.Join(dir, "train.tsv")
	require.NoError(t, os.WriteFile(existing, []byte("old\n"), 0o644))
	test := filepath.Join(dir, "test.tsv")

	tests := []struct {
		name string
		opts Options
		want stage.Result
	}{
		{"bad ratio", Options{InputFile: in, TrainFile: existing, TestFile: test, Ratio: 100}, stage.InvalidOptions},
		{"train is input", Options{InputFile: in, TrainFile: in, TestFile: test, Ratio: 50}, stage.InvalidOptions},
		{"train is test", Options{InputFile: in, TrainFile: test, TestFile: test, Ratio: 50}, stage.InvalidOptions},
		{"missing input", Options{InputFile: filepath.Join(dir, "nope.json"), TrainFile: existing, TestFile: test, Ratio: 50}, stage.InputError},
		{"train exists", Options{InputFile: in, TrainFile: existing, TestFile: test, Ratio: 50}, stage.OutputError},
		{"overwrite", Options{InputFile: in, TrainFile: existing, TestFile: test, Ratio: 50, Overwrite: true}, stage.Success},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("split", tt.opts, Ordered, nil, zaptest.NewLogger(t))
			assert.Equal(t, tt.want, stage.Run(context.Background(), l, zaptest.NewLogger(t)))
		})
	}
}

func TestSplitFailsOnLossySplit(t *testing.T) {
	dir, in := setup(t, 4)
	lossy := func(recs []record.Record, _ int) ([]record.Record, []record.Record) {
		return recs[:1], recs[:1]
	}
	opts := Options{InputFile: in, TrainFile: filepath.Join(dir, "a.tsv"), TestFile: filepath.Join(dir, "b.tsv"), Ratio: 50}
	l := New("split", opts, lossy, nil, zaptest.NewLogger(t))
	assert.Equal(t, stage.Failed, stage.Run(context.Background(), l, zaptest.NewLogger(t)))
	assert.NoFileExists(t, opts.TrainFile)
}

func TestSplitWarnsAboutUnlabeledRecords(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	recs := records(4)
	recs[1].Labels = nil
	recs[2].Labels[0].Weight = 0
	require.NoError(t, record.SaveFile(in, recs, false))

	core, logs := observer.New(zapcore.WarnLevel)
	opts := Options{InputFile: in, TrainFile: filepath.Join(dir, "a.tsv"), TestFile: filepath.Join(dir, "b.tsv"), Ratio: 50}
	l := New("split", opts, Ordered, nil, zap.New(core))
	require.Equal(t, stage.Success, stage.Run(context.Background(), l, zaptest.NewLogger(t)))

	warned := logs.FilterMessage("unlabeled records get an empty label column").All()
	require.Len(t, warned, 1)
	assert.Equal(t, map[string]any{"unlabeled": int64(2), "train": int64(1), "test": int64(1)}, warned[0].ContextMap())
	assert.Len(t, l.Train(), 2, "unlabeled records are kept")

	data, err := os.ReadFile(opts.TestFile)
	require.NoError(t, err)
	assert.Equal(t, "\tdoc 2\nc0\tdoc 3\n", string(data))
}

func TestSplitOptionsValidation(t *testing.T) {
	opts := DefaultSplitOptions()
	opts.Ratio = 0
	opts.Policy = "stratified"
	err := stage.Validate(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InputFile is required")
	assert.Contains(t, err.Error(), "Ratio must be at least 1")
	assert.Contains(t, err.Error(), "Policy must be one of [random ordered]")
}
