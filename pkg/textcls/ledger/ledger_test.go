package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/result"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleRun(started time.Time) *result.Run {
	id := int64(7)
	return &result.Run{
		StartedAt:          started,
		ClassifierType:     "LinearClassifier",
		NumberOfFeatures:   12,
		NumberOfClasses:    3,
		NumberOfParameters: 36,
		TrainingItems:      500,
		TrainingSeconds:    1.2,
		MicroF1:            0.9,
		Statistics: []result.ClassStatistic{
			{Name: "A", TruePositives: 10, FalseNegatives: 2, FalsePositives: 1, TrueNegatives: 87,
				Accuracy: 0.97, Precision: 0.9, Recall: 0.83, F1: 0.86},
		},
		Results: []result.ClassifierResult{
			{NumericID: &id, GoldAnswer: "A", ClassifierAnswer: "B", PGoldAnswer: 0.91, PClassifierAnswer: 0.05},
			{StringID: "doc-2", GoldAnswer: "B", ClassifierAnswer: "B", PGoldAnswer: 0.7, PClassifierAnswer: 0.7},
		},
	}
}

func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 4 { // runs, folds, class_stats, results
		t.Errorf("Expected 4 tables, got %d", count)
	}
}

func TestRecordLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)

	run := sampleRun(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	run.Folds = make([]result.Fold, 2)
	run.Folds[1] = result.Fold{MicroF1: 0.8, MacroF1: 0.7, Statistics: []result.ClassStatistic{{Name: "B", TruePositives: 3}}}

	id, err := l.Record(ctx, "baseline", run)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" || run.ID != id {
		t.Fatalf("Record should assign the id, got %q / %q", id, run.ID)
	}

	got, err := l.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLatestAndRuns(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)

	if _, err := l.Latest(ctx); !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("empty ledger should report ErrNotFound, got %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := l.Record(ctx, "first", sampleRun(base))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	second, err := l.Record(ctx, "second", sampleRun(base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	latest, err := l.Latest(ctx)
	if err != nil || latest != second {
		t.Fatalf("Latest = %q, %v; want %q", latest, err, second)
	}

	runs, err := l.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("Runs order = %+v", runs)
	}
	if runs[1].Label != "first" || runs[1].Results != 2 || runs[1].ClassifierType != "LinearClassifier" {
		t.Errorf("summary = %+v", runs[1])
	}

	limited, err := l.Runs(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Runs(1) = %v, %v", limited, err)
	}
}

func TestLoadMissing(t *testing.T) {
	l := openTemp(t)
	if _, err := l.Load(context.Background(), "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
