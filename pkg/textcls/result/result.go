// Package result holds what a classifier run produced: the headline
// scalars, per-class statistics and per-item answers, optionally split by
// cross-validation fold.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultFolds is the number of cross-validation folds when none is
// configured.
const DefaultFolds = 10

// ClassStatistic is the confusion counts and scores the classifier reported
// for one class.
type ClassStatistic struct {
	Name           string  `json:"name"`
	TruePositives  int     `json:"tp"`
	FalseNegatives int     `json:"fn"`
	FalsePositives int     `json:"fp"`
	TrueNegatives  int     `json:"tn"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// Support is the number of gold items of the class.
func (s ClassStatistic) Support() int { return s.TruePositives + s.FalseNegatives }

// ClassifierResult is the classifier's decision for one test item.
type ClassifierResult struct {
	NumericID         *int64  `json:"numeric_id,omitempty"`
	StringID          string  `json:"string_id,omitempty"`
	GoldAnswer        string  `json:"gold"`
	ClassifierAnswer  string  `json:"predicted"`
	PGoldAnswer       float64 `json:"p_gold"`
	PClassifierAnswer float64 `json:"p_predicted"`
}

// Correct reports whether the prediction matches the gold label.
func (r ClassifierResult) Correct() bool { return r.GoldAnswer == r.ClassifierAnswer }

// Fold is what a single cross-validation fold reported.
type Fold struct {
	MicroF1    float64          `json:"micro_f1"`
	MacroF1    float64          `json:"macro_f1"`
	Statistics []ClassStatistic `json:"statistics,omitempty"`
}

// Run is everything parsed from one classifier invocation.
type Run struct {
	ID                 string    `json:"id,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	ClassifierType     string    `json:"classifier_type,omitempty"`
	NumberOfFeatures   int       `json:"num_features"`
	NumberOfClasses    int       `json:"num_classes"`
	NumberOfParameters int       `json:"num_parameters"`
	TrainingItems      int       `json:"training_items"`
	TrainingSeconds    float64   `json:"training_seconds"`
	TestItems          int       `json:"test_items"`
	TestSeconds        float64   `json:"test_seconds"`
	MicroF1            float64   `json:"micro_f1"`
	MacroF1            float64   `json:"macro_f1"`

	// Folds is non-nil in cross-validation mode, one slot per fold.
	Folds []Fold `json:"folds,omitempty"`

	Statistics []ClassStatistic   `json:"statistics,omitempty"`
	Results    []ClassifierResult `json:"results,omitempty"`
}

// CrossValidated reports whether the run is split by folds.
func (r *Run) CrossValidated() bool { return r.Folds != nil }

// Accuracy returns the fraction of correct results, or 0 without results.
func (r *Run) Accuracy() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	correct := 0
	for _, res := range r.Results {
		if res.Correct() {
			correct++
		}
	}
	return float64(correct) / float64(len(r.Results))
}

// Statistic returns the classifier's statistic for class name.
func (r *Run) Statistic(name string) (ClassStatistic, bool) {
	for _, s := range r.Statistics {
		if s.Name == name {
			return s, true
		}
	}
	return ClassStatistic{}, false
}

// Labels returns every class name seen in statistics or results, sorted.
func (r *Run) Labels() []string {
	seen := map[string]struct{}{}
	for _, s := range r.Statistics {
		seen[s.Name] = struct{}{}
	}
	for _, res := range r.Results {
		seen[res.GoldAnswer] = struct{}{}
		seen[res.ClassifierAnswer] = struct{}{}
	}
	delete(seen, "")
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Save writes v as indented JSON to path.
func Save(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadRun reads a run written by Save.
func LoadRun(path string) (*Run, error) {
	var r Run
	if err := load(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadResults reads a bare list of classifier results.
func LoadResults(path string) ([]ClassifierResult, error) {
	var out []ClassifierResult
	if err := load(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadStatistics reads a bare list of class statistics.
func LoadStatistics(path string) ([]ClassStatistic, error) {
	var out []ClassStatistic
	if err := load(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func load(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
