package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/record"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

func execute(t *testing.T, reg *stage.Registry, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), reg, args, &stdout, &stderr)
	return code, stderr.String()
}

func input(t *testing.T, n int) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "records.json")
	recs := make([]record.Record, n)
	for i := range recs {
		recs[i] = record.Record{
			Labels:   []record.Label{{Name: "c", Weight: 1}},
			Features: []record.Feature{{Name: "text", Value: record.Text("doc")}},
		}.WithNumericID(int64(i + 1))
	}
	require.NoError(t, record.SaveFile(path, recs, false))
	return dir, path
}

func lines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestRegistryVerbs(t *testing.T) {
	var verbs []string
	for _, e := range registry().Entries("") {
		verbs = append(verbs, e.Verb)
	}
	assert.Equal(t, []string{
		"annotate", "classify-stanford", "extract-file", "extract-web",
		"report-accuracy", "report-confusion", "report-folds", "report-runs", "report-terms",
		"select", "split", "tokenize",
	}, verbs)
	assert.Equal(t, []string{"annotate", "classify", "extract", "load", "report", "transform"}, registry().Modules())
}

func TestSplitVerb(t *testing.T) {
	dir, in := input(t, 10)
	train := filepath.Join(dir, "train.tsv")
	test := filepath.Join(dir, "test.tsv")
	args := []string{"split", "-i", in, "--train-file", train, "--test-file", test, "--ratio", "70"}

	code, stderr := execute(t, registry(), args...)
	require.Equal(t, stage.ExitSuccess, code, stderr)
	assert.Equal(t, 7, lines(t, train))
	assert.Equal(t, 3, lines(t, test))

	code, _ = execute(t, registry(), args...)
	assert.Equal(t, stage.ExitOutputError, code)

	code, _ = execute(t, registry(), append(args, "--overwrite")...)
	assert.Equal(t, stage.ExitSuccess, code)
}

func TestExitCodes(t *testing.T) {
	dir, in := input(t, 4)
	tests := []struct {
		name string
		args []string
		want int
		msg  string
	}{
		{"no verb", nil, stage.ExitInvalidOptions, "Usage:"},
		{"unknown verb", []string{"frobnicate"}, stage.ExitInvalidOptions, "unknown command"},
		{"unknown flag", []string{"split", "--bogus"}, stage.ExitInvalidOptions, "unknown flag"},
		{"missing required", []string{"split", "--train-file", "a.tsv"}, stage.ExitInvalidOptions, "InputFile is required"},
		{"missing input", []string{"split", "-i", filepath.Join(dir, "nope.json"),
			"--train-file", filepath.Join(dir, "a.tsv"), "--test-file", filepath.Join(dir, "b.tsv")}, stage.ExitInputError, ""},
		{"same paths", []string{"split", "-i", in, "--train-file", in, "--test-file", filepath.Join(dir, "b.tsv")}, stage.ExitInvalidOptions, ""},
		{"help", []string{"--help"}, stage.ExitSuccess, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stderr := execute(t, registry(), tt.args...)
			assert.Equal(t, tt.want, code, stderr)
			assert.Contains(t, stderr, tt.msg)
		})
	}
}

func TestUsageShownForInvalidOptions(t *testing.T) {
	code, stderr := execute(t, registry(), "split", "--ratio", "0", "-i", "x", "--train-file", "a", "--test-file", "b")
	assert.Equal(t, stage.ExitInvalidOptions, code)
	assert.Contains(t, stderr, "Ratio must be at least 1")
	assert.Contains(t, stderr, "--train-file")
}

func TestProfileDefaults(t *testing.T) {
	dir, in := input(t, 10)
	profile := filepath.Join(dir, "profile.yaml")
	train := filepath.Join(dir, "train.tsv")
	test := filepath.Join(dir, "test.tsv")
	require.NoError(t, os.WriteFile(profile, []byte(
		"stages:\n  split:\n    ratio: 50\n    policy: ordered\n    train_file: "+train+"\n    test_file: "+test+"\n"), 0o644))

	code, stderr := execute(t, registry(), "--config", profile, "split", "-i", in)
	require.Equal(t, stage.ExitSuccess, code, stderr)
	assert.Equal(t, 5, lines(t, train))

	code, _ = execute(t, registry(), "--config", profile, "split", "-i", in, "--overwrite", "--ratio", "90")
	require.Equal(t, stage.ExitSuccess, code)
	assert.Equal(t, 9, lines(t, train), "flags override the profile")
}

func TestBadProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("stages:\n  split:\n    ratoi: 50\n"), 0o644))
	code, stderr := execute(t, registry(), "--config", profile, "split")
	assert.Equal(t, stage.ExitInvalidOptions, code)
	assert.Contains(t, stderr, "split")
}

func TestExplicitModule(t *testing.T) {
	code, stderr := execute(t, registry(), "--explicit", "report", "split")
	assert.Equal(t, stage.ExitInvalidOptions, code)
	assert.Contains(t, stderr, "unknown command")

	code, stderr = execute(t, registry(), "--explicit", "nosuch", "split")
	assert.Equal(t, stage.ExitInvalidOptions, code)
	assert.Contains(t, stderr, `unknown module "nosuch"`)
}

type panicStage struct{ cleaned *bool }

func (panicStage) Name() string                         { return "panic" }
func (panicStage) Init(context.Context) stage.Result    { return stage.Success }
func (panicStage) Read(context.Context) stage.Result    { panic("boom") }
func (panicStage) Process(context.Context) stage.Result { return stage.Success }
func (panicStage) Write(context.Context) stage.Result   { return stage.Success }

func (s panicStage) Cleanup(context.Context) stage.Result {
	*s.cleaned = true
	return stage.Success
}

func TestPanicIsUnhandledExit(t *testing.T) {
	cleaned := false
	reg := stage.NewRegistry()
	reg.MustRegister(stage.Entry{
		Verb:   "explode",
		Module: "test",
		Setup: func(fs *pflag.FlagSet, _ stage.Profile) (stage.Constructor, error) {
			return func(*zap.Logger) (stage.Stage, error) { return panicStage{cleaned: &cleaned}, nil }, nil
		},
	})
	code, stderr := execute(t, reg, "explode")
	assert.Equal(t, stage.ExitUnhandled, code)
	assert.Contains(t, stderr, "boom")
	assert.True(t, cleaned, "cleanup runs before the panic reaches main")
}
