package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

func sample() []record.Record {
	return []record.Record{
		record.Record{
			Labels: []record.Label{{Name: "sports", Weight: 1}},
			Features: []record.Feature{
				{Name: "title", Value: record.Text("Match report")},
				{Name: "text", Value: record.Text("The final score was close")},
			},
		}.WithNumericID(1),
		record.Record{
			Labels: []record.Label{{Name: "tech", Weight: 1}},
			Features: []record.Feature{
				{Name: "title", Value: record.Text("GPU news")},
				{Name: "text", Value: record.Text("The new GPU is fast")},
			},
		}.WithNumericID(2),
		record.Record{
			Labels: []record.Label{{Name: "tech", Weight: 1}},
			Features: []record.Feature{
				{Name: "title", Value: record.Text("Chip report")},
				{Name: "text", Value: record.Text("The chip is fast")},
				{Name: "len", Value: record.Number(4)},
			},
		}.WithNumericID(3),
	}
}

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "in.json")
	require.NoError(t, record.SaveFile(path, sample(), false))
	return path
}

func runStage(t *testing.T, s stage.Stage) stage.Result {
	t.Helper()
	return stage.Run(context.Background(), s, zaptest.NewLogger(t))
}

func TestTokenizeStage(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultTokenizeOptions()
	opts.InputFile = writeInput(t, dir)
	opts.OutputFile = filepath.Join(dir, "out.tsv")
	require.NoError(t, stage.Validate(&opts))

	s, err := NewTokenizeStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, runStage(t, s))

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	want := "sports\tmatch report final score was close\n" +
		"tech\tgpu news new gpu is fast\n" +
		"tech\tchip report chip is fast\t4\n"
	assert.Equal(t, want, string(data))
}

func TestTokenizeDocFreqFilters(t *testing.T) {
	recs := sample()
	prepare := PrepareTokenizing(Tokenizing{MinDocs: 2, MaxDF: 0.8})
	tk, err := prepare(recs)
	require.NoError(t, err)
	assert.Equal(t, 3, tk.DocFreq.Docs())
	assert.Equal(t, 3, tk.DocFreq.Count("the"))

	var got []string
	for _, rec := range recs {
		out, err := Tokenize(tk, rec.Clone())
		require.NoError(t, err)
		v, ok := out.Feature(TokensFeature)
		require.True(t, ok)
		got = append(got, v.String())
	}
	assert.Equal(t, []string{"report", "is fast", "report is fast"}, got)
}

func TestTokenizeFieldsAndCategories(t *testing.T) {
	tk, err := PrepareTokenizing(Tokenizing{Fields: []string{"title"}, Categories: true})(sample())
	require.NoError(t, err)

	out, err := Tokenize(tk, sample()[1])
	require.NoError(t, err)
	want := []record.Feature{
		{Name: TokensFeature, Value: record.Text("gpu news")},
		{Name: CategoriesFeature, Value: record.Text("")},
	}
	if diff := cmp.Diff(want, out.Features, cmp.AllowUnexported(record.Value{})); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "tech", out.Label(), "labels are carried over")
}

func TestSelect(t *testing.T) {
	rec := sample()[2]
	out, err := Select(Selection{Features: []string{"len", "title"}}, rec)
	require.NoError(t, err)
	want := []record.Feature{
		{Name: "len", Value: record.Number(4)},
		{Name: "title", Value: record.Text("Chip report")},
	}
	if diff := cmp.Diff(want, out.Features, cmp.AllowUnexported(record.Value{})); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}

	_, err = Select(Selection{Features: []string{"missing"}}, rec)
	assert.ErrorContains(t, err, `no feature "missing"`)

	out, err = Select(Selection{Features: []string{"missing"}, AllowMissing: true}, rec)
	require.NoError(t, err)
	assert.Equal(t, "", out.Features[0].Value.String())
}

func TestSelectStage(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultSelectOptions()
	opts.InputFile = writeInput(t, dir)
	opts.OutputFile = filepath.Join(dir, "out.csv")
	opts.Format = "csv"
	opts.Header = true
	opts.Features = []string{"title"}
	require.NoError(t, stage.Validate(&opts))

	s, err := NewSelectStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, stage.Success, runStage(t, s))

	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "label,title\nsports,Match report\ntech,GPU news\ntech,Chip report\n", string(data))
}

func TestSelectMissingFeatureFails(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultSelectOptions()
	opts.InputFile = writeInput(t, dir)
	opts.OutputFile = filepath.Join(dir, "out.tsv")
	opts.Features = []string{"len"}

	s, err := NewSelectStage(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, stage.Failed, runStage(t, s))
	assert.NoFileExists(t, opts.OutputFile)
}

func TestTransformerInit(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir)
	existing := filepath.Join(dir, "exists.tsv")
	require.NoError(t, os.WriteFile(existing, []byte("x\n"), 0o644))

	identity := func(_ struct{}, r record.Record) (record.Record, error) { return r, nil }
	tests := []struct {
		name string
		opts Options
		want stage.Result
	}{
		{"missing input", Options{InputFile: filepath.Join(dir, "nope.json"), OutputFile: filepath.Join(dir, "o.tsv")}, stage.InputError},
		{"output exists", Options{InputFile: in, OutputFile: existing}, stage.OutputError},
		{"overwrite", Options{InputFile: in, OutputFile: existing, Overwrite: true}, stage.Success},
		{"same path", Options{InputFile: in, OutputFile: in, Overwrite: true}, stage.InvalidOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New[struct{}]("identity", tt.opts, nil, identity, nil, zaptest.NewLogger(t))
			assert.Equal(t, tt.want, runStage(t, tr))
		})
	}
}

func TestTransformerJSONOutputIsOneToOne(t *testing.T) {
	dir := t.TempDir()
	opts := Options{InputFile: writeInput(t, dir), OutputFile: filepath.Join(dir, "out.json")}
	first := func(_ struct{}, r record.Record) (record.Record, error) {
		r.Features = r.Features[:1]
		return r, nil
	}
	tr := New[struct{}]("first", opts, nil, first, JSONWriter, zaptest.NewLogger(t))
	require.Equal(t, stage.Success, runStage(t, tr))

	got, err := record.LoadFile(opts.OutputFile)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, sample()[i].Identity(), rec.Identity())
		assert.Len(t, rec.Features, 1)
	}
}

func TestTransformerWarnsAboutUnlabeledRows(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	recs := sample()
	recs[1].Labels = nil
	require.NoError(t, record.SaveFile(in, recs, false))
	identity := func(_ struct{}, r record.Record) (record.Record, error) { return r, nil }

	tests := []struct {
		name   string
		tab    bool
		write  WriteFunc
		warned int
	}{
		{"tabular", true, nil, 1},
		{"json", false, JSONWriter, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			opts := Options{InputFile: in, OutputFile: filepath.Join(t.TempDir(), "out"), LabelColumn: tt.tab}
			tr := New[struct{}]("identity", opts, nil, identity, tt.write, zap.New(core))
			require.Equal(t, stage.Success, runStage(t, tr))
			assert.Len(t, tr.Output(), 3)

			warned := logs.FilterMessage("unlabeled records get an empty label column").All()
			require.Len(t, warned, tt.warned)
			if tt.warned > 0 {
				assert.Equal(t, int64(1), warned[0].ContextMap()["unlabeled"])
			}
		})
	}
}

func TestOutputWriter(t *testing.T) {
	_, err := OutputOptions{Format: "xml"}.Writer()
	assert.Error(t, err)
	for _, f := range []string{"", "tsv", "csv", "json"} {
		w, err := OutputOptions{Format: f}.Writer()
		require.NoError(t, err, f)
		assert.NotNil(t, w)
	}
}
