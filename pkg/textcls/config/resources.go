package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/textcls/pkg/textcls/tokenize"
)

// Stoplist is the stopword file format.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file.
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}
	return &sl, nil
}

// Keywords is the keyword-category file format. Every group is a map of
// category name to keywords; groups only exist to keep large files tidy and
// are merged when loaded.
type Keywords struct {
	Sectors map[string][]string `yaml:"sectors"`
	Events  map[string][]string `yaml:"events"`
	Regions map[string][]string `yaml:"regions"`
}

// LoadKeywords loads keyword categories from a YAML file.
func LoadKeywords(path string) (*Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return nil, err
	}
	return &kw, nil
}

// LoadPhrases loads the phrase dictionary.
// Format, one entry per line: canonical|variant1|variant2|category
// Blank lines and lines starting with # are skipped.
func LoadPhrases(path string) ([]tokenize.Phrase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var phrases []tokenize.Phrase
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			return nil, fmt.Errorf("%s:%d: want canonical|...|category", path, n+1)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		phrases = append(phrases, tokenize.Phrase{
			Canonical: parts[0],
			Variants:  parts[1 : len(parts)-1],
			Category:  parts[len(parts)-1],
		})
	}
	return phrases, nil
}

// Loader builds a tokenize.Pipeline from optional resource files.
type Loader struct {
	StoplistPath string
	PhrasesPath  string
	KeywordsPath string
	Joiner       string
	MinLength    int
	KeepNumbers  bool
}

// Load reads the configured files. Empty paths yield empty components.
func (l *Loader) Load() (*tokenize.Pipeline, error) {
	var stops []string
	if l.StoplistPath != "" {
		sl, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		stops = sl.Terms
	}
	tokenizer := tokenize.NewTokenizer(stops)
	if l.MinLength > 0 {
		tokenizer.SetMinLength(l.MinLength)
	}
	tokenizer.KeepNumbers(l.KeepNumbers)

	var merger *tokenize.PhraseMerger
	if l.PhrasesPath != "" {
		phrases, err := LoadPhrases(l.PhrasesPath)
		if err != nil {
			return nil, fmt.Errorf("load phrases: %w", err)
		}
		joiner := l.Joiner
		if joiner == "" {
			joiner = "_"
		}
		merger = tokenize.NewPhraseMerger(phrases, joiner)
	}

	var tagger *tokenize.Tagger
	if l.KeywordsPath != "" {
		kw, err := LoadKeywords(l.KeywordsPath)
		if err != nil {
			return nil, fmt.Errorf("load keywords: %w", err)
		}
		tagger = tokenize.NewTagger()
		for _, group := range []map[string][]string{kw.Sectors, kw.Events, kw.Regions} {
			for name, words := range group {
				tagger.Add(name, words)
			}
		}
	}

	return tokenize.NewPipeline(tokenizer, merger, tagger), nil
}
