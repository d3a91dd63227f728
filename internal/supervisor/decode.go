package supervisor

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Supported worker output encodings.
const (
	EncodingUTF8 = "utf-8"
	EncodingGBK  = "gbk"
)

// lineReader yields decoded worker output one line at a time. Lines have no
// length limit and never fail on malformed bytes; invalid sequences become
// U+FFFD.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(src io.Reader, encoding string) *lineReader {
	if strings.EqualFold(encoding, EncodingGBK) {
		src = transform.NewReader(src, simplifiedchinese.GBK.NewDecoder())
	}
	return &lineReader{r: bufio.NewReaderSize(src, 64*1024)}
}

// Next returns the next line with trailing whitespace removed. It returns
// io.EOF once the stream is exhausted; a final unterminated line is still
// returned first.
func (l *lineReader) Next() (string, error) {
	raw, err := l.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && raw != "" {
			return clean(raw), nil
		}
		return "", err
	}
	return clean(raw), nil
}

func clean(raw string) string {
	return strings.TrimRightFunc(strings.ToValidUTF8(raw, "\uFFFD"), unicode.IsSpace)
}
