package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/command"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// Environment fallbacks for the Stanford classifier runtime.
const (
	EnvJavaHome = "JAVA_HOME"
	EnvJar      = "STANFORD_CLASSIFIER_JAR"
)

const (
	stanfordMain = "edu.stanford.nlp.classify.ColumnDataClassifier"
	probeTimeout = 30 * time.Second
)

// StanfordDefaults are the ColumnDataClassifier properties written unless
// overridden. Column 0 is the gold label and column 1 the text.
var StanfordDefaults = map[string]string{
	"goldAnswerColumn":        "0",
	"displayedColumn":         "-1",
	"useClassFeature":         "true",
	"1.useNGrams":             "true",
	"1.usePrefixSuffixNGrams": "true",
	"1.maxNGramLeng":          "4",
	"1.minNGramLeng":          "1",
	"1.binnedLengths":         "10,20,30",
	"1.splitWordsRegexp":      `\\s+`,
	"1.useSplitWords":         "true",
	"printClassifierParam":    "200",
	"intern":                  "true",
	"sigma":                   "3",
	"useQN":                   "true",
	"QNsize":                  "15",
	"tolerance":               "1e-4",
}

// Stanford runs the Stanford ColumnDataClassifier under a JVM.
type Stanford struct {
	JavaHome string
	Jar      string
	// PropertiesFile is generated before the run; empty means a file next
	// to the results.
	PropertiesFile string
	KeepProperties bool
	Properties     map[string]string
	MaxHeap        string

	TrainFile string
	TestFile  string
	ModelFile string
	Folds     int
	Train     bool
	Dir       string

	java    string
	written bool
}

// Name implements Trainer.
func (s *Stanford) Name() string { return "stanford" }

// Prepare resolves the JVM and the classifier jar, preferring explicit
// options over the environment, and logs the JVM version.
func (s *Stanford) Prepare(ctx context.Context, log *zap.Logger) stage.Result {
	home := firstNonEmpty(s.JavaHome, os.Getenv(EnvJavaHome))
	if home == "" {
		log.Error("java home not set", zap.String("env", EnvJavaHome))
		return stage.InvalidOptions
	}
	java := filepath.Join(home, "bin", javaBinary())
	if info, err := os.Stat(java); err != nil || info.IsDir() {
		log.Error("java executable not found", zap.String("java_home", home), zap.String("path", java))
		return stage.InvalidOptions
	}

	jar := firstNonEmpty(s.Jar, os.Getenv(EnvJar))
	if jar == "" {
		log.Error("classifier jar not set", zap.String("env", EnvJar))
		return stage.InvalidOptions
	}
	if _, err := os.Stat(jar); err != nil {
		log.Error("classifier jar not found", zap.String("path", jar), zap.Error(err))
		return stage.InvalidOptions
	}
	s.java, s.Jar = java, jar

	if !s.Train {
		if r := stage.CheckInput(log, "model", s.ModelFile); r != stage.Success {
			return r
		}
	}

	probe := command.New("", java, "-version")
	probe.Timeout = probeTimeout
	if err := probe.Run(ctx); err != nil {
		log.Error("java version probe failed", zap.String("java", java), zap.Error(err),
			zap.String("output", strings.TrimSpace(probe.Output())))
		return stage.Failed
	}
	version := strings.TrimSpace(probe.Output())
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = version[:i]
	}
	log.Info("java runtime", zap.String("java", java), zap.String("version", version), zap.String("jar", jar))
	return stage.Success
}

// Command writes the properties file and returns the classifier process.
func (s *Stanford) Command(ctx context.Context, log *zap.Logger) (*command.Command, error) {
	if s.java == "" {
		return nil, errors.New("stanford: Prepare has not run")
	}
	if s.PropertiesFile == "" {
		return nil, errors.New("stanford: no properties file")
	}
	if err := os.WriteFile(s.PropertiesFile, []byte(s.PropertiesText()), 0o644); err != nil {
		return nil, fmt.Errorf("write properties: %w", err)
	}
	s.written = true
	log.Debug("properties written", zap.String("path", s.PropertiesFile))

	cmd := command.New(s.Dir, s.java, s.Args()...)
	return cmd, nil
}

// merged returns the properties to write, defaults first.
func (s *Stanford) merged() map[string]string {
	props := make(map[string]string, len(StanfordDefaults)+len(s.Properties)+1)
	for k, v := range StanfordDefaults {
		props[k] = v
	}
	for k, v := range s.Properties {
		props[k] = v
	}
	if s.Folds > 0 && s.Train {
		props["crossValidationFolds"] = strconv.Itoa(s.Folds)
	}
	return props
}

// PropertiesText renders the properties file with sorted keys.
func (s *Stanford) PropertiesText() string {
	props := s.merged()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, props[k])
	}
	return b.String()
}

// Args returns the JVM argument vector.
func (s *Stanford) Args() []string {
	var args []string
	if s.MaxHeap != "" {
		args = append(args, "-Xmx"+s.MaxHeap)
	}
	args = append(args, "-cp", s.Jar, stanfordMain, "-prop", s.PropertiesFile)
	if s.Train {
		args = append(args, "-trainFile", s.TrainFile)
		if s.ModelFile != "" {
			args = append(args, "-serializeTo", s.ModelFile)
		}
	} else {
		args = append(args, "-loadClassifier", s.ModelFile)
	}
	if s.TestFile != "" && (s.Folds == 0 || !s.Train) {
		args = append(args, "-testFile", s.TestFile)
	}
	return args
}

// Cleanup removes the properties file unless it is kept.
func (s *Stanford) Cleanup(log *zap.Logger) error {
	if !s.written || s.KeepProperties {
		return nil
	}
	if err := os.Remove(s.PropertiesFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	log.Debug("properties removed", zap.String("path", s.PropertiesFile))
	return nil
}

func javaBinary() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
