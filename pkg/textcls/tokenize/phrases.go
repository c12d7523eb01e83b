package tokenize

import "strings"

// Phrase is a dictionary entry: a canonical token and the spellings that
// map onto it. Multi-word spellings are matched over consecutive tokens.
type Phrase struct {
	Canonical string
	Variants  []string
	Category  string
}

// PhraseMerger rewrites token sequences using a phrase dictionary.
type PhraseMerger struct {
	lookup  map[string]Phrase
	longest int
	joiner  string
}

// NewPhraseMerger indexes phrases by canonical form and every variant.
// Merged phrases are joined with joiner ("_" keeps them one column-safe
// token; " " keeps them readable).
func NewPhraseMerger(phrases []Phrase, joiner string) *PhraseMerger {
	m := &PhraseMerger{lookup: make(map[string]Phrase), longest: 1, joiner: joiner}
	add := func(spelling string, p Phrase) {
		key := strings.ToLower(strings.Join(strings.Fields(spelling), " "))
		if key == "" {
			return
		}
		m.lookup[key] = p
		if n := len(strings.Fields(key)); n > m.longest {
			m.longest = n
		}
	}
	for _, p := range phrases {
		add(p.Canonical, p)
		for _, v := range p.Variants {
			add(v, p)
		}
	}
	return m
}

// Merge applies greedy longest match from left to right. Single tokens
// that are a known variant are replaced by their canonical form.
func (m *PhraseMerger) Merge(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		span := m.longest
		if rest := len(tokens) - i; span > rest {
			span = rest
		}
		matched := false
		for n := span; n >= 1; n-- {
			key := strings.ToLower(strings.Join(tokens[i:i+n], " "))
			p, ok := m.lookup[key]
			if !ok {
				continue
			}
			out = append(out, m.canonical(p))
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

func (m *PhraseMerger) canonical(p Phrase) string {
	words := strings.Fields(strings.ToLower(p.Canonical))
	return strings.Join(words, m.joiner)
}

// Len returns the number of indexed spellings.
func (m *PhraseMerger) Len() int { return len(m.lookup) }
