package classify

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/result"
)

// LineKind classifies one line of classifier output.
type LineKind int

const (
	LineOther LineKind = iota
	LineBuilt
	LineDataset
	LineFold
	LineClass
	LineMicroF1
	LineMacroF1
	LineResult
)

func (k LineKind) String() string {
	switch k {
	case LineBuilt:
		return "built"
	case LineDataset:
		return "dataset"
	case LineFold:
		return "fold"
	case LineClass:
		return "class"
	case LineMicroF1:
		return "micro-f1"
	case LineMacroF1:
		return "macro-f1"
	case LineResult:
		return "result"
	}
	return "other"
}

// Recognizers, in priority order. The first match wins.
var (
	builtRe   = regexp.MustCompile(`^Built this classifier: (\S+) with (\d+) features, (\d+) classes, and (\d+) parameters\.?$`)
	datasetRe = regexp.MustCompile(`^Reading dataset from (\S+) \.\.\. done \[(.*)\]\.?$`)
	detailRe  = regexp.MustCompile(`^([\d.]+)s, (\d+) items$`)
	foldRe    = regexp.MustCompile(`^### Fold (\d+)`)
	classRe   = regexp.MustCompile(`^Cls (.+?): TP=(\d+) FN=(\d+) FP=(\d+) TN=(\d+); Acc (\S+) P (\S+) R (\S+) F1 (\S+)$`)
	microRe   = regexp.MustCompile(`(?:Accuracy/micro-averaged F1|Micro-averaged accuracy/F1): (\S+)`)
	macroRe   = regexp.MustCompile(`Macro-averaged F1: (\S+)`)
	resultRe  = regexp.MustCompile(`^([^\t]+)\t([^\t]+)\t(\S+)\t(\S+)$`)
)

// State accumulates what has been parsed so far. Start from NewState.
type State struct {
	Run result.Run

	// Fold is the current fold index, or -1 before the first fold marker.
	Fold int
	// Lines counts every line fed to the parser, Unrecognized those that
	// matched nothing.
	Lines        int
	Unrecognized int

	trainSeen bool
	testSeen  bool
	microSet  bool
	macroSet  bool
}

// NewState returns an empty state outside fold mode.
func NewState() State {
	return State{Fold: -1}
}

// Parser turns classifier output lines into a State.
type Parser struct {
	// TrainFile and TestFile key "dataset read" lines. A line naming
	// neither fills whichever of the two has not been seen yet.
	TrainFile string
	TestFile  string
	// Folds sizes the per-fold arrays; zero means result.DefaultFolds.
	Folds int
}

// Step applies one line to st and returns the new state with the kind of
// line it recognized. A line of a known shape whose details cannot be
// parsed is an error. st itself is never modified: slices shared with it
// are copied before they are written.
func (p Parser) Step(st State, line string) (State, LineKind, error) {
	return p.step(st, line, false)
}

// step is Step. When owned is set the caller discards st, so its slices
// are appended to and written in place.
func (p Parser) step(st State, line string, owned bool) (State, LineKind, error) {
	line = strings.TrimRight(line, "\r\n")
	st.Lines++

	if m := builtRe.FindStringSubmatch(line); m != nil {
		ints, err := atois(m[2:])
		if err != nil {
			return st, LineBuilt, unexpected(line, err)
		}
		st.Run.ClassifierType = m[1]
		st.Run.NumberOfFeatures = ints[0]
		st.Run.NumberOfClasses = ints[1]
		st.Run.NumberOfParameters = ints[2]
		return st, LineBuilt, nil
	}

	if m := datasetRe.FindStringSubmatch(line); m != nil {
		d := detailRe.FindStringSubmatch(strings.TrimSpace(m[2]))
		if d == nil {
			return st, LineDataset, unexpected(line, fmt.Errorf("dataset detail %q", m[2]))
		}
		secs, err := strconv.ParseFloat(d[1], 64)
		if err != nil {
			return st, LineDataset, unexpected(line, err)
		}
		items, err := strconv.Atoi(d[2])
		if err != nil {
			return st, LineDataset, unexpected(line, err)
		}
		if p.isTest(m[1], st) {
			st.Run.TestItems, st.Run.TestSeconds, st.testSeen = items, secs, true
		} else {
			st.Run.TrainingItems, st.Run.TrainingSeconds, st.trainSeen = items, secs, true
		}
		return st, LineDataset, nil
	}

	if m := foldRe.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return st, LineFold, unexpected(line, err)
		}
		if st.Run.Folds == nil {
			st.Run.Folds = make([]result.Fold, p.folds())
		}
		if n < 0 || n >= len(st.Run.Folds) {
			return st, LineFold, unexpected(line, fmt.Errorf("fold %d outside [0,%d)", n, len(st.Run.Folds)))
		}
		st.Fold = n
		return st, LineFold, nil
	}

	if m := classRe.FindStringSubmatch(line); m != nil {
		counts, err := atois(m[2:6])
		if err != nil {
			return st, LineClass, unexpected(line, err)
		}
		vals, err := scores(m[6:10])
		if err != nil {
			return st, LineClass, unexpected(line, err)
		}
		stat := result.ClassStatistic{
			Name:           m[1],
			TruePositives:  counts[0],
			FalseNegatives: counts[1],
			FalsePositives: counts[2],
			TrueNegatives:  counts[3],
			Accuracy:       vals[0],
			Precision:      vals[1],
			Recall:         vals[2],
			F1:             vals[3],
		}
		if st.Fold >= 0 {
			st.Run.Folds = writable(st.Run.Folds, owned)
			f := &st.Run.Folds[st.Fold]
			f.Statistics = appendable(f.Statistics, owned)
			f.Statistics = append(f.Statistics, stat)
		} else {
			st.Run.Statistics = append(appendable(st.Run.Statistics, owned), stat)
		}
		return st, LineClass, nil
	}

	if m := microRe.FindStringSubmatch(line); m != nil {
		v, err := score(m[1])
		if err != nil {
			return st, LineMicroF1, unexpected(line, err)
		}
		switch {
		case st.Fold >= 0:
			st.Run.Folds = writable(st.Run.Folds, owned)
			st.Run.Folds[st.Fold].MicroF1 = v
		case !st.microSet:
			st.Run.MicroF1, st.microSet = v, true
		}
		return st, LineMicroF1, nil
	}

	if m := macroRe.FindStringSubmatch(line); m != nil {
		v, err := score(m[1])
		if err != nil {
			return st, LineMacroF1, unexpected(line, err)
		}
		switch {
		case st.Fold >= 0:
			st.Run.Folds = writable(st.Run.Folds, owned)
			st.Run.Folds[st.Fold].MacroF1 = v
		case !st.macroSet:
			st.Run.MacroF1, st.macroSet = v, true
		}
		return st, LineMacroF1, nil
	}

	if m := resultRe.FindStringSubmatch(line); m != nil {
		pGold, err1 := score(m[3])
		pCls, err2 := score(m[4])
		if err1 != nil || err2 != nil {
			// Four tab-separated columns that are not probabilities are
			// ordinary output, not a result.
			st.Unrecognized++
			return st, LineOther, nil
		}
		st.Run.Results = append(appendable(st.Run.Results, owned), result.ClassifierResult{
			GoldAnswer:        m[1],
			ClassifierAnswer:  m[2],
			PGoldAnswer:       pGold,
			PClassifierAnswer: pCls,
		})
		return st, LineResult, nil
	}

	st.Unrecognized++
	return st, LineOther, nil
}

// Parse feeds every line of r through Step.
func (p Parser) Parse(r io.Reader) (State, error) {
	st := NewState()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var err error
		if st, _, err = p.step(st, sc.Text(), true); err != nil {
			return st, err
		}
	}
	return st, sc.Err()
}

// writable returns s, or a copy of it when the caller may still hold s.
func writable[T any](s []T, owned bool) []T {
	if owned {
		return s
	}
	return slices.Clone(s)
}

// appendable returns s with no spare capacity unless owned, so that an
// append reallocates instead of writing into storage another state shares.
func appendable[T any](s []T, owned bool) []T {
	if owned {
		return s
	}
	return slices.Clip(s)
}

func (p Parser) folds() int {
	if p.Folds > 0 {
		return p.Folds
	}
	return result.DefaultFolds
}

func (p Parser) isTest(path string, st State) bool {
	switch {
	case samePath(path, p.TrainFile):
		return false
	case samePath(path, p.TestFile):
		return true
	}
	return st.trainSeen && !st.testSeen
}

func samePath(logged, configured string) bool {
	if configured == "" {
		return false
	}
	return logged == configured || filepath.Base(logged) == filepath.Base(configured)
}

func unexpected(line string, err error) error {
	return fmt.Errorf("%w: %q: %v", internalerr.ErrUnexpectedLine, line, err)
}

func atois(ss []string) ([]int, error) {
	out := make([]int, len(ss))
	for i, s := range ss {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// score parses a reported score. The classifier prints NaN for undefined
// scores; those are stored as 0 so results stay JSON encodable.
func score(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}

func scores(ss []string) ([]float64, error) {
	out := make([]float64, len(ss))
	for i, s := range ss {
		v, err := score(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
