// Package ledger keeps a SQLite history of classifier runs so reports can be
// produced from any past run, not only the latest result file.
package ledger

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/result"
)

// Ledger is an open run history.
type Ledger struct {
	db *sql.DB
}

// Summary is the headline of a stored run.
type Summary struct {
	ID             string
	StartedAt      time.Time
	Label          string
	ClassifierType string
	MicroF1        float64
	MacroF1        float64
	Results        int
}

// Open opens (creating if needed) the ledger at path with WAL mode enabled.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	label TEXT,
	classifier_type TEXT,
	num_features INTEGER,
	num_classes INTEGER,
	num_parameters INTEGER,
	training_items INTEGER,
	training_seconds REAL,
	test_items INTEGER,
	test_seconds REAL,
	micro_f1 REAL,
	macro_f1 REAL
);

CREATE TABLE IF NOT EXISTS folds (
	run_id TEXT NOT NULL,
	fold INTEGER NOT NULL,
	micro_f1 REAL,
	macro_f1 REAL,
	PRIMARY KEY(run_id, fold),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS class_stats (
	run_id TEXT NOT NULL,
	fold INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	tp INTEGER, fn INTEGER, fp INTEGER, tn INTEGER,
	accuracy REAL, precision REAL, recall REAL, f1 REAL,
	PRIMARY KEY(run_id, fold, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	numeric_id INTEGER,
	string_id TEXT,
	gold TEXT NOT NULL,
	predicted TEXT NOT NULL,
	p_gold REAL,
	p_predicted REAL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// NewID returns a fresh, time-ordered run id.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// Record stores run under label, assigning an id and start time when they
// are unset, and returns the id.
func (l *Ledger) Record(ctx context.Context, label string, run *result.Run) (string, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.ID == "" {
		run.ID = NewID(run.StartedAt)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(id, started_at, label, classifier_type, num_features, num_classes, num_parameters,
	training_items, training_seconds, test_items, test_seconds, micro_f1, macro_f1)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), label, run.ClassifierType,
		run.NumberOfFeatures, run.NumberOfClasses, run.NumberOfParameters,
		run.TrainingItems, run.TrainingSeconds, run.TestItems, run.TestSeconds,
		run.MicroF1, run.MacroF1)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := insertStats(ctx, tx, run.ID, -1, run.Statistics); err != nil {
		return "", err
	}
	for i, f := range run.Folds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folds(run_id, fold, micro_f1, macro_f1) VALUES(?, ?, ?, ?)`,
			run.ID, i, f.MicroF1, f.MacroF1); err != nil {
			return "", fmt.Errorf("insert fold: %w", err)
		}
		if err := insertStats(ctx, tx, run.ID, i, f.Statistics); err != nil {
			return "", err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO results(run_id, seq, numeric_id, string_id, gold, predicted, p_gold, p_predicted)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, r := range run.Results {
		var nid sql.NullInt64
		if r.NumericID != nil {
			nid = sql.NullInt64{Int64: *r.NumericID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, nid, r.StringID,
			r.GoldAnswer, r.ClassifierAnswer, r.PGoldAnswer, r.PClassifierAnswer); err != nil {
			return "", fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

func insertStats(ctx context.Context, tx *sql.Tx, runID string, fold int, stats []result.ClassStatistic) error {
	for i, s := range stats {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO class_stats(run_id, fold, seq, name, tp, fn, fp, tn, accuracy, precision, recall, f1)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, fold, i, s.Name, s.TruePositives, s.FalseNegatives, s.FalsePositives, s.TrueNegatives,
			s.Accuracy, s.Precision, s.Recall, s.F1); err != nil {
			return fmt.Errorf("insert class statistic: %w", err)
		}
	}
	return nil
}

// Latest returns the id of the most recently started run.
func (l *Ledger) Latest(ctx context.Context) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("latest run: %w", internalerr.ErrNotFound)
	}
	return id, err
}

// Load returns the stored run with the given id.
func (l *Ledger) Load(ctx context.Context, id string) (*result.Run, error) {
	var (
		run     result.Run
		started string
	)
	err := l.db.QueryRowContext(ctx, `
SELECT id, started_at, classifier_type, num_features, num_classes, num_parameters,
	training_items, training_seconds, test_items, test_seconds, micro_f1, macro_f1
FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &started, &run.ClassifierType, &run.NumberOfFeatures, &run.NumberOfClasses,
		&run.NumberOfParameters, &run.TrainingItems, &run.TrainingSeconds, &run.TestItems,
		&run.TestSeconds, &run.MicroF1, &run.MacroF1)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("run %s: started_at: %w", id, err)
	}

	if err := l.loadFolds(ctx, &run); err != nil {
		return nil, err
	}
	if err := l.loadStats(ctx, &run); err != nil {
		return nil, err
	}
	if err := l.loadResults(ctx, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (l *Ledger) loadFolds(ctx context.Context, run *result.Run) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT fold, micro_f1, macro_f1 FROM folds WHERE run_id = ? ORDER BY fold`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n int
			f result.Fold
		)
		if err := rows.Scan(&n, &f.MicroF1, &f.MacroF1); err != nil {
			return err
		}
		for len(run.Folds) <= n {
			run.Folds = append(run.Folds, result.Fold{})
		}
		run.Folds[n] = f
	}
	return rows.Err()
}

func (l *Ledger) loadStats(ctx context.Context, run *result.Run) error {
	rows, err := l.db.QueryContext(ctx, `
SELECT fold, name, tp, fn, fp, tn, accuracy, precision, recall, f1
FROM class_stats WHERE run_id = ? ORDER BY fold, seq`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			fold int
			s    result.ClassStatistic
		)
		if err := rows.Scan(&fold, &s.Name, &s.TruePositives, &s.FalseNegatives, &s.FalsePositives,
			&s.TrueNegatives, &s.Accuracy, &s.Precision, &s.Recall, &s.F1); err != nil {
			return err
		}
		if fold < 0 {
			run.Statistics = append(run.Statistics, s)
			continue
		}
		if fold >= len(run.Folds) {
			return fmt.Errorf("run %s: statistic for unknown fold %d", run.ID, fold)
		}
		run.Folds[fold].Statistics = append(run.Folds[fold].Statistics, s)
	}
	return rows.Err()
}

func (l *Ledger) loadResults(ctx context.Context, run *result.Run) error {
	rows, err := l.db.QueryContext(ctx, `
SELECT numeric_id, string_id, gold, predicted, p_gold, p_predicted
FROM results WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r   result.ClassifierResult
			nid sql.NullInt64
		)
		if err := rows.Scan(&nid, &r.StringID, &r.GoldAnswer, &r.ClassifierAnswer,
			&r.PGoldAnswer, &r.PClassifierAnswer); err != nil {
			return err
		}
		if nid.Valid {
			v := nid.Int64
			r.NumericID = &v
		}
		run.Results = append(run.Results, r)
	}
	return rows.Err()
}

// Runs lists stored runs, newest first. limit <= 0 lists all of them.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Summary, error) {
	query := `
SELECT r.id, r.started_at, COALESCE(r.label, ''), COALESCE(r.classifier_type, ''), r.micro_f1, r.macro_f1,
	(SELECT COUNT(*) FROM results WHERE run_id = r.id)
FROM runs r ORDER BY r.started_at DESC, r.id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s       Summary
			started string
		)
		if err := rows.Scan(&s.ID, &started, &s.Label, &s.ClassifierType, &s.MicroF1, &s.MacroF1, &s.Results); err != nil {
			return nil, err
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
