package annotate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/record"
)

// PromptLabeler asks for labels on a line-oriented terminal. An answer is
// a label number or name; an empty line skips the record and "q" quits.
// End of input also quits.
type PromptLabeler struct {
	In  io.Reader
	Out io.Writer
	// Features limits the features shown; empty shows all of them.
	Features []string
	// MaxWidth truncates long feature values (0 disables truncation).
	MaxWidth int

	scanner *bufio.Scanner
}

// Label implements Labeler.
func (p *PromptLabeler) Label(ctx context.Context, rec *record.Record, vocab []string) (string, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	p.show(rec, vocab)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(p.Out, "label> ")
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return "", err
			}
			return "", internalerr.ErrStop
		}
		answer := strings.TrimSpace(p.scanner.Text())
		switch {
		case answer == "":
			return "", nil
		case answer == "q":
			return "", internalerr.ErrStop
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(vocab) {
			return vocab[n-1], nil
		}
		if slices.Contains(vocab, answer) {
			return answer, nil
		}
		fmt.Fprintf(p.Out, "unknown label %q\n", answer)
	}
}

func (p *PromptLabeler) show(rec *record.Record, vocab []string) {
	fmt.Fprintf(p.Out, "\n== %s\n", rec.Identity())
	for _, f := range rec.Features {
		if len(p.Features) > 0 && !slices.Contains(p.Features, f.Name) {
			continue
		}
		v := f.Value.String()
		if p.MaxWidth > 0 && len([]rune(v)) > p.MaxWidth {
			v = string([]rune(v)[:p.MaxWidth]) + "..."
		}
		fmt.Fprintf(p.Out, "%s: %s\n", f.Name, v)
	}
	for i, l := range vocab {
		fmt.Fprintf(p.Out, "  %d) %s\n", i+1, l)
	}
}
