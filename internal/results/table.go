package results

import (
	"errors"
	"fmt"
	"time"
)

// ResultFile is one candidate result on disk.
type ResultFile struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Table is a parsed result file: a header row plus data rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table has no columns.
func (t Table) Empty() bool {
	return len(t.Columns) == 0
}

// ErrEmptyFile is wrapped by ParseError when a file has no header row.
var ErrEmptyFile = errors.New("file is empty")

// ErrInvalidUTF8 is wrapped by ParseError when a field is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// ParseError reports why a result file could not be loaded. Line is 1-based
// and zero when the failure is not tied to a line.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
