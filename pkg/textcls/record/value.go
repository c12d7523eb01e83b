package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	default:
		return "text"
	}
}

// Value is a feature value: either a number or a piece of text.
// The zero Value is empty text.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Text returns a textual Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Float converts v to a float64. Text converts when it parses as a number.
func (v Value) Float() (float64, bool) {
	if v.kind == KindNumber {
		return v.num, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders v the way it is written to tabular files.
func (v Value) String() string {
	if v.kind == KindNumber {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.text
}

// Compare orders values: numbers before text, numbers numerically,
// text lexically.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind == KindNumber {
			return -1
		}
		return 1
	}
	if v.kind == KindNumber {
		switch {
		case v.num < o.num:
			return -1
		case v.num > o.num:
			return 1
		}
		return 0
	}
	return strings.Compare(v.text, o.text)
}

// Equal reports whether v and o hold the same variant and value.
func (v Value) Equal(o Value) bool {
	return v.Compare(o) == 0
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("feature value must be a number or string: %w", err)
	}
	*v = Number(f)
	return nil
}
