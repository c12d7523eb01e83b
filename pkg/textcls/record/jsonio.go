package record

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

var gzipMagic = []byte{0x1f, 0x8b}

// WriteJSON writes recs as an indented JSON list. Key order follows the
// struct field order, so output is byte-stable for equal input.
func WriteJSON(w io.Writer, recs []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if recs == nil {
		recs = []Record{}
	}
	return enc.Encode(recs)
}

// ReadJSON decodes a JSON list of records. Gzip input is detected from its
// magic bytes and decompressed transparently.
func ReadJSON(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	var src io.Reader = br
	if len(head) == 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}
	var recs []Record
	if err := json.NewDecoder(src).Decode(&recs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}

// LoadFile reads a record list from path.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// SaveFile writes recs to path, replacing any existing file, optionally
// gzip-compressed.
func SaveFile(path string, recs []Record, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if compress {
		zw := gzip.NewWriter(bw)
		if err := WriteJSON(zw, recs); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else if err := WriteJSON(bw, recs); err != nil {
		return err
	}
	return bw.Flush()
}
