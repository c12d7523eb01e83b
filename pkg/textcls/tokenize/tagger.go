package tokenize

import (
	"sort"
	"strings"
)

// Tagger assigns categories to a token list by keyword membership.
type Tagger struct {
	keywords map[string][]string // category -> lower-cased keywords
}

// NewTagger returns an empty tagger.
func NewTagger() *Tagger {
	return &Tagger{keywords: make(map[string][]string)}
}

// Add registers a category and its keywords. Keywords may be phrases; they
// are compared against merged tokens with spaces and underscores treated
// alike.
func (t *Tagger) Add(category string, keywords []string) {
	norm := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = normalizeKeyword(kw)
		if kw != "" {
			norm = append(norm, kw)
		}
	}
	t.keywords[category] = append(t.keywords[category], norm...)
}

// Categories returns the sorted categories whose keywords occur in tokens.
func (t *Tagger) Categories(tokens []string) []string {
	if len(t.keywords) == 0 {
		return nil
	}
	present := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		present[normalizeKeyword(tok)] = struct{}{}
	}
	var cats []string
	for cat, kws := range t.keywords {
		for _, kw := range kws {
			if _, ok := present[kw]; ok {
				cats = append(cats, cat)
				break
			}
		}
	}
	sort.Strings(cats)
	return cats
}

// Len returns the number of categories.
func (t *Tagger) Len() int { return len(t.keywords) }

func normalizeKeyword(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '_' }), " ")
}
