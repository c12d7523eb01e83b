package record

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Delimited writes records as delimiter-separated rows: the label first,
// then each feature value in order. Delimiters and line breaks inside a
// value are replaced with a space; classifier readers do not understand
// quoting.
type Delimited struct {
	Delimiter rune
	Header    bool
}

// TSV is the classifier training format: tab separated, no header.
var TSV = Delimited{Delimiter: '\t'}

// ParseDelimiter maps a flag value ("tab", "comma", or a single character)
// to a delimiter rune.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "tab", `\t`:
		return '\t', nil
	case "comma", ",":
		return ',', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("unsupported delimiter %q", s)
	}
	return r[0], nil
}

// Write emits recs. The header, when enabled, is taken from the first
// record's feature names.
func (d Delimited) Write(w io.Writer, recs []Record) error {
	var header []string
	if d.Header && len(recs) > 0 {
		header = append(header, "label")
		for _, f := range recs[0].Features {
			header = append(header, f.Name)
		}
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := make([]string, 0, len(r.Features)+1)
		row = append(row, r.Label())
		for _, f := range r.Features {
			row = append(row, f.Value.String())
		}
		rows = append(rows, row)
	}
	return d.WriteRows(w, header, rows)
}

// WriteRows emits an optional header followed by rows.
func (d Delimited) WriteRows(w io.Writer, header []string, rows [][]string) error {
	delim := d.Delimiter
	if delim == 0 {
		delim = '\t'
	}
	bw := bufio.NewWriter(w)
	emit := func(cells []string) error {
		for i, c := range cells {
			if i > 0 {
				if _, err := bw.WriteRune(delim); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(sanitizeCell(c, delim)); err != nil {
				return err
			}
		}
		return bw.WriteByte('\n')
	}
	if len(header) > 0 {
		if err := emit(header); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := emit(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func sanitizeCell(s string, delim rune) string {
	return strings.Map(func(r rune) rune {
		if r == delim || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}
