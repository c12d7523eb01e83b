package extract

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/record"
)

// ParseOptions control how a source stream becomes records.
type ParseOptions struct {
	// Clean runs Clean over every text feature.
	Clean bool
	// Markup strips HTML from text features before cleaning.
	Markup bool
	// Delimiter separates columns of delimited input.
	Delimiter rune
	// Header marks the first row of delimited input as column names.
	Header bool
	// LabelColumn is the zero-based label column of delimited input, or -1
	// when rows carry no label.
	LabelColumn int
	// Log receives warnings about skipped input.
	Log *zap.Logger
}

// DefaultParseOptions reads tab separated rows labeled in column 0.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{Delimiter: '\t'}
}

func (o ParseOptions) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o ParseOptions) text(s string) string {
	if o.Markup {
		s = StripMarkup(s)
	}
	if o.Clean {
		s = Clean(s)
	}
	return s
}

// EmitFunc receives each parsed record in stream order. A non-nil error
// stops the parser, which returns it unchanged.
type EmitFunc func(rec record.Record) error

// ParseFunc reads a source stream, handing records to emit as soon as
// each is parsed.
type ParseFunc func(r io.Reader, opts ParseOptions, emit EmitFunc) error

// Collect runs parse over r and returns every record.
func Collect(parse ParseFunc, r io.Reader, opts ParseOptions) ([]record.Record, error) {
	var recs []record.Record
	err := parse(r, opts, func(rec record.Record) error {
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

var parsers = map[string]ParseFunc{
	"jsonl": ParseJSONL,
	"tsv":   ParseDelimited,
	"lines": ParseLines,
}

// Parser returns the named parse function.
func Parser(format string) (ParseFunc, error) {
	p, ok := parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
	return p, nil
}

// Formats lists the known input formats.
func Formats() []string {
	out := make([]string, 0, len(parsers))
	for name := range parsers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Document is one line of a JSONL news corpus.
type Document struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Outlet      string    `json:"outlet"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"text"`
	SourceCats  []string  `json:"source_cats"`
}

// ParseJSONL reads one Document per line. The URL, or the id when there is
// no URL, identifies the record; source categories become labels of weight
// 1; title and text become features. Malformed lines are skipped.
func ParseJSONL(r io.Reader, opts ParseOptions, emit EmitFunc) error {
	log := opts.logger()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			log.Warn("skipping malformed JSON", zap.Int("line", n), zap.Error(err))
			continue
		}
		id := doc.URL
		if id == "" {
			id = doc.ID
		}
		if id == "" {
			log.Warn("skipping document without url or id", zap.Int("line", n))
			continue
		}
		rec := record.Record{StringID: id}
		for _, c := range doc.SourceCats {
			if c = strings.TrimSpace(c); c != "" {
				rec.Labels = append(rec.Labels, record.Label{Name: c, Weight: 1})
			}
		}
		rec.Features = []record.Feature{
			{Name: "title", Value: record.Text(opts.text(doc.Title))},
			{Name: "text", Value: record.Text(opts.text(doc.Body))},
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", n+1, err)
	}
	return nil
}

// ParseDelimited reads delimiter-separated rows. The label column, when
// set, becomes a label of weight 1 (empty cells stay unlabeled); every
// other column becomes a feature named from the header or "col<N>". Cells
// that parse as numbers become numeric features. Records are numbered from
// 1 in row order.
func ParseDelimited(r io.Reader, opts ParseOptions, emit EmitFunc) error {
	delim := string(opts.Delimiter)
	if opts.Delimiter == 0 {
		delim = "\t"
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	var (
		header []string
		n      int
		id     int64
	)
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, delim)
		if opts.Header && header == nil {
			header = cells
			continue
		}
		if opts.LabelColumn >= len(cells) {
			return fmt.Errorf("line %d: %d columns, label column is %d", n, len(cells), opts.LabelColumn)
		}

		id++
		rec := record.Record{}.WithNumericID(id)
		for i, cell := range cells {
			if i == opts.LabelColumn {
				if cell = strings.TrimSpace(cell); cell != "" {
					rec.Labels = []record.Label{{Name: cell, Weight: 1}}
				}
				continue
			}
			name := "col" + strconv.Itoa(i)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			rec.Features = append(rec.Features, record.Feature{Name: name, Value: cellValue(cell, opts)})
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", n+1, err)
	}
	return nil
}

func cellValue(cell string, opts ParseOptions) record.Value {
	if f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
		return record.Number(f)
	}
	return record.Text(opts.text(cell))
}

// ParseLines makes one unlabeled record per non-empty line, with the line
// as its "text" feature.
func ParseLines(r io.Reader, opts ParseOptions, emit EmitFunc) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	var id int64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id++
		rec := record.Record{}.WithNumericID(id)
		rec.Features = []record.Feature{{Name: "text", Value: record.Text(opts.text(line))}}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}
