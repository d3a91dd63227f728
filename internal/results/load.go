package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Load parses the whole file at path. A leading byte order mark is honoured:
// a UTF-8 BOM is stripped and UTF-16 files with a BOM are transcoded. The first
// record is the header; every row must have the header's width.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, &ParseError{Path: path, Err: err}
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse reads a CSV document from r; name is used in errors.
func Parse(name string, r io.Reader) (Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, &ParseError{Path: name, Err: ErrEmptyFile}
		}
		return Table{}, csvError(name, err)
	}
	if err := checkUTF8(name, cr, header); err != nil {
		return Table{}, err
	}

	table := Table{Columns: normaliseHeader(header), Rows: [][]string{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, csvError(name, err)
		}
		if err := checkUTF8(name, cr, rec); err != nil {
			return Table{}, err
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

func csvError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Path: name, Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Path: name, Err: err}
}

func checkUTF8(name string, cr *csv.Reader, rec []string) error {
	for i, field := range rec {
		if !utf8.ValidString(field) {
			line, _ := cr.FieldPos(i)
			return &ParseError{Path: name, Line: line, Err: fmt.Errorf("column %d: %w", i+1, ErrInvalidUTF8)}
		}
	}
	return nil
}

// normaliseHeader names blank columns "Unnamed: N" and suffixes repeated names
// with ".1", ".2", ... so every column can be addressed by name.
func normaliseHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int)
	for i, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		candidate := name
		for used[candidate] {
			counts[name]++
			candidate = name + "." + strconv.Itoa(counts[name])
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}
