// Package tokenize turns free text into the token features the tokenize
// transform writes: lower-cased words with stopwords removed, known phrases
// merged into single tokens, and keyword-derived categories.
package tokenize

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into normalized word tokens.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
	keepNums  bool
}

// NewTokenizer creates a tokenizer that drops the given stopwords.
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{stopwords: stops, minLen: 2}
}

// SetMinLength sets the shortest token kept. Values below 1 are treated as 1.
func (t *Tokenizer) SetMinLength(n int) {
	if n < 1 {
		n = 1
	}
	t.minLen = n
}

// KeepNumbers keeps purely numeric tokens, which are dropped by default.
func (t *Tokenizer) KeepNumbers(keep bool) {
	t.keepNums = keep
}

// Tokenize lower-cases text and splits it on anything that is not a
// letter, digit or hyphen.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		if tok := t.accept(cur.String()); tok != "" {
			tokens = append(tokens, tok)
		}
		cur.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			cur.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// accept cleans a raw token and returns "" when it should be dropped.
func (t *Tokenizer) accept(raw string) string {
	tok := strings.Trim(raw, "-")
	for strings.Contains(tok, "--") {
		tok = strings.ReplaceAll(tok, "--", "-")
	}
	if len([]rune(tok)) < t.minLen {
		return ""
	}
	if !t.keepNums && numeric(tok) {
		return ""
	}
	if t.IsStopword(tok) {
		return ""
	}
	return tok
}

// numeric reports whether tok holds only digits and hyphens.
func numeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

// IsStopword reports whether word is in the stoplist.
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[strings.ToLower(word)]
	return ok
}

// AddStopword extends the stoplist.
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// Stopwords returns the number of stopwords.
func (t *Tokenizer) Stopwords() int {
	return len(t.stopwords)
}
