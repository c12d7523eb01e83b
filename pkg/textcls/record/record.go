// Package record defines the unit of classifiable data shared by every stage
// and its two persistence formats: a JSON list and a delimited table.
package record

import (
	"errors"
	"sort"
	"strconv"
)

// Label is a class name with a confidence weight. A weight of 0 means the
// label is a placeholder and the record is still unlabeled.
type Label struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Feature is a named value. Feature order is significant: tabular writers
// emit one column per feature in insertion order.
type Feature struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Record is one unit of data to classify.
type Record struct {
	NumericID *int64    `json:"numeric_id,omitempty"`
	StringID  string    `json:"string_id,omitempty"`
	Labels    []Label   `json:"labels"`
	Features  []Feature `json:"features"`
}

// WithNumericID sets the numeric id.
func (r Record) WithNumericID(id int64) Record {
	r.NumericID = &id
	return r
}

// Validate checks that the record carries an identity.
func (r *Record) Validate() error {
	if r.NumericID == nil && r.StringID == "" {
		return errors.New("record needs a numeric or string id")
	}
	return nil
}

// Identity returns a stable key for the record, preferring the string id.
func (r *Record) Identity() string {
	if r.StringID != "" {
		return r.StringID
	}
	if r.NumericID != nil {
		return "#" + strconv.FormatInt(*r.NumericID, 10)
	}
	return ""
}

// Labeled reports whether at least one label carries a non-zero weight.
func (r *Record) Labeled() bool {
	for _, l := range r.Labels {
		if l.Weight != 0 {
			return true
		}
	}
	return false
}

// NeedsLabel reports whether a human still has to assign a label.
func (r *Record) NeedsLabel() bool {
	return !r.Labeled()
}

// Label returns the name of the highest weighted label, or "" when the
// record is unlabeled. Ties keep the earliest label.
func (r *Record) Label() string {
	best := -1
	for i, l := range r.Labels {
		if l.Weight == 0 {
			continue
		}
		if best < 0 || l.Weight > r.Labels[best].Weight {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return r.Labels[best].Name
}

// Feature returns the value of the first feature with the given name.
func (r *Record) Feature(name string) (Value, bool) {
	for _, f := range r.Features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Clone returns a deep copy so stages never share label or feature slices.
func (r Record) Clone() Record {
	out := r
	if r.NumericID != nil {
		id := *r.NumericID
		out.NumericID = &id
	}
	out.Labels = append([]Label(nil), r.Labels...)
	out.Features = append([]Feature(nil), r.Features...)
	return out
}

// Unlabeled counts the records that still need a label.
func Unlabeled(recs []Record) int {
	n := 0
	for i := range recs {
		if recs[i].NeedsLabel() {
			n++
		}
	}
	return n
}

// Vocabulary returns the sorted set of label names carried with non-zero weight.
func Vocabulary(recs []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range recs {
		for _, l := range r.Labels {
			if l.Weight != 0 && l.Name != "" {
				seen[l.Name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
