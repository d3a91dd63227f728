package results

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterColumnsKeepsRelevantInOrder(t *testing.T) {
	t.Parallel()

	table := Table{
		Columns: []string{"title", "Note_ID", "desc", "用户名", "IP_Location", "liked_count", "create_time", "发布日期"},
		Rows:    [][]string{{"t", "n1", "d", "u", "北京", "5", "1700000000", "2024-01-01"}},
	}
	got := FilterColumns(table)
	require.Equal(t, []string{"Note_ID", "用户名", "IP_Location", "create_time", "发布日期"}, got.Columns)
	require.Equal(t, [][]string{{"n1", "u", "北京", "1700000000", "2024-01-01"}}, got.Rows)

	require.Equal(t, got, FilterColumns(got), "filtering must be idempotent")
	require.Len(t, table.Columns, 8, "input must not be modified")
}

func TestFilterColumnsDropsContent(t *testing.T) {
	t.Parallel()

	table := Table{
		Columns: []string{"id", "nickname", "content", "create_time", "note_url"},
		Rows:    [][]string{{"1", "alice", "hello", "2024-01-01", "https://x.com/1"}},
	}
	got := FilterColumns(table)
	require.Equal(t, []string{"id", "nickname", "create_time", "note_url"}, got.Columns)
	require.Equal(t, [][]string{{"1", "alice", "2024-01-01", "https://x.com/1"}}, got.Rows)
	require.Equal(t, got, FilterColumns(got))
}

func TestFilterColumnsFallsBackToAll(t *testing.T) {
	t.Parallel()

	table := Table{Columns: []string{"title", "desc"}, Rows: [][]string{{"a", "b"}}}
	got := FilterColumns(table)
	require.Equal(t, table, got)

	got.Rows[0][0] = "changed"
	require.Equal(t, "a", table.Rows[0][0])
}

func TestViewBoundsAndFlattens(t *testing.T) {
	t.Parallel()

	table := Table{Columns: []string{"id", "desc"}}
	for i := 0; i < 1500; i++ {
		table.Rows = append(table.Rows, []string{fmt.Sprint(i), "two\nlines\r\nthree"})
	}
	view := View(table, 1000)
	require.Len(t, view.Rows, 1000)
	require.Equal(t, "999", view.Rows[999][0])
	require.Equal(t, "two lines three", view.Rows[0][1])
	require.Equal(t, "two\nlines\r\nthree", table.Rows[0][1])

	small := View(Table{Columns: []string{"id"}, Rows: [][]string{{"1"}}}, 0)
	require.Len(t, small.Rows, 1)
}

func TestColumnWidth(t *testing.T) {
	t.Parallel()

	require.Equal(t, 250, ColumnWidth("note_url"))
	require.Equal(t, 250, ColumnWidth("Share_Link"))
	require.Equal(t, 150, ColumnWidth("create_time"))
	require.Equal(t, 80, ColumnWidth("ip_location"))
	require.Equal(t, 100, ColumnWidth("nickname"))
}

func TestExtractLinkPriority(t *testing.T) {
	t.Parallel()

	columns := []string{"note_id", "author_url", "note_url", "aweme_url"}
	tests := []struct {
		name string
		row  []string
		want string
		ok   bool
	}{
		{"aweme wins", []string{"1", "https://a/u", "https://x/n", "https://douyin/v"}, "https://douyin/v", true},
		{"note when aweme is not a url", []string{"1", "https://a/u", "https://x/n", "n/a"}, "https://x/n", true},
		{"scan falls back to first url cell", []string{"1", " https://a/u ", "", ""}, "https://a/u", true},
		{"plain http counts", []string{"http://old", "", "", ""}, "http://old", true},
		{"no link", []string{"1", "ftp://a", "www.x.com", "httpfoo"}, "", false},
		{"short row", []string{"1"}, "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractLink(tt.row, columns)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExtractLinkSecondaryOrder(t *testing.T) {
	t.Parallel()

	columns := []string{"origin_url", "video_url", "detail_url"}
	got, ok := ExtractLink([]string{"https://o", "https://v", "https://d"}, columns)
	require.True(t, ok)
	require.Equal(t, "https://d", got)
}

func TestExtractLinkVideoURLWithoutAweme(t *testing.T) {
	t.Parallel()

	got, ok := ExtractLink([]string{"no links here", "https://z.com/3"}, []string{"title", "video_url"})
	require.True(t, ok)
	require.Equal(t, "https://z.com/3", got)
}
