package results

import "strings"

// DefaultMaxRows bounds how many rows a view renders.
const DefaultMaxRows = 1000

var cellReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// View returns the first maxRows rows of t with line breaks inside cells
// replaced by spaces, so each row renders on one line. A non-positive maxRows
// uses DefaultMaxRows.
func View(t Table, maxRows int) Table {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	n := len(t.Rows)
	if n > maxRows {
		n = maxRows
	}
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, n),
	}
	for r := 0; r < n; r++ {
		row := make([]string, len(t.Rows[r]))
		for c, cell := range t.Rows[r] {
			row[c] = cellReplacer.Replace(cell)
		}
		out.Rows[r] = row
	}
	return out
}

// ColumnWidth is the preferred display width of a column in pixels of the
// original desktop layout; terminal front ends scale it down.
func ColumnWidth(column string) int {
	lower := strings.ToLower(column)
	switch {
	case strings.Contains(lower, "url"), strings.Contains(lower, "link"):
		return 250
	case strings.Contains(lower, "time"):
		return 150
	case strings.Contains(lower, "ip"):
		return 80
	default:
		return 100
	}
}
