package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	urlPattern       = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^\s\]\)}>]+|\bwww\.[^\s\]\)}>]+`)
	bracketedPattern = regexp.MustCompile(`\[[^\[\]]*\]|\{[^{}]*\}`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Clean normalizes free text before tokenization: line terminators become
// spaces, URLs and [bracketed] or {braced} annotations are removed, only
// letters, digits, spaces and hyphens are kept, and whitespace runs collapse
// to one space.
func Clean(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\v', '\f', '\u0085', '\u2028', '\u2029':
			return ' '
		}
		return r
	}, text)
	text = urlPattern.ReplaceAllString(text, " ")
	// Nested annotations are removed from the inside out.
	for {
		stripped := bracketedPattern.ReplaceAllString(text, " ")
		if stripped == text {
			break
		}
		text = stripped
	}
	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, text)
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// StripMarkup returns the text content of an HTML fragment. Input that does
// not parse is returned unchanged.
func StripMarkup(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}
