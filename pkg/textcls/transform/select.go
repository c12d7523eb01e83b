package transform

import (
	"fmt"

	"github.com/cognicore/textcls/pkg/textcls/record"
)

// Selection names the features the select transform keeps, in output
// order.
type Selection struct {
	Features []string
	// AllowMissing writes empty text for absent features instead of
	// failing the record.
	AllowMissing bool
}

// Select keeps the selected features of a record in the selection's order.
func Select(sel Selection, in record.Record) (record.Record, error) {
	features := make([]record.Feature, 0, len(sel.Features))
	for _, name := range sel.Features {
		v, ok := in.Feature(name)
		if !ok {
			if !sel.AllowMissing {
				return record.Record{}, fmt.Errorf("record %s has no feature %q", in.Identity(), name)
			}
			v = record.Text("")
		}
		features = append(features, record.Feature{Name: name, Value: v})
	}
	in.Features = features
	return in, nil
}
