package results

import (
	"strings"
)

// Vocabulary is the ordered list of substrings that mark a column as worth
// showing: identifiers, authors, places, links and timestamps, in English and
// Chinese.
var Vocabulary = []string{
	"id", "user", "nickname", "用户",
	"ip", "location", "地址",
	"url", "link", "链接",
	"aweme", "note",
	"time", "date", "时间", "日期",
}

// Relevant reports whether a column name contains any vocabulary term,
// ignoring case.
func Relevant(column string) bool {
	lower := strings.ToLower(column)
	for _, term := range Vocabulary {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// FilterColumns keeps the relevant columns of t in their original order. When
// no column is relevant the table is returned unchanged. The result shares no
// slices with t, and applying it twice gives the same table.
func FilterColumns(t Table) Table {
	keep := make([]int, 0, len(t.Columns))
	for i, c := range t.Columns {
		if Relevant(c) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		for i := range t.Columns {
			keep = append(keep, i)
		}
	}

	out := Table{
		Columns: make([]string, len(keep)),
		Rows:    make([][]string, len(t.Rows)),
	}
	for j, i := range keep {
		out.Columns[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		projected := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				projected[j] = row[i]
			}
		}
		out.Rows[r] = projected
	}
	return out
}
