package results

import "strings"

// Link column names in priority order after aweme_url.
var (
	primaryLinkColumn    = "aweme_url"
	secondaryLinkColumns = []string{"note_url", "detail_url", "video_url", "origin_url"}
)

// ExtractLink picks the URL to open for a row: aweme_url first, then the
// note/detail/video/origin URL columns, then the first cell in column order
// that looks like a URL. A value qualifies when, trimmed, it starts with
// http:// or https://. The boolean is false when the row has no link.
func ExtractLink(row []string, columns []string) (string, bool) {
	cell := func(name string) (string, bool) {
		for i, c := range columns {
			if c == name && i < len(row) {
				return qualify(row[i])
			}
		}
		return "", false
	}
	if link, ok := cell(primaryLinkColumn); ok {
		return link, true
	}
	for _, name := range secondaryLinkColumns {
		if link, ok := cell(name); ok {
			return link, true
		}
	}
	for _, v := range row {
		if link, ok := qualify(v); ok {
			return link, true
		}
	}
	return "", false
}

func qualify(v string) (string, bool) {
	v = strings.TrimSpace(v)
	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return v, true
	}
	return "", false
}
