package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://WWW.Douyin.com/video/1", "www.douyin.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitAndObserve(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if resultLoadsTotal == nil || configSavesTotal == nil || linksOpenedTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(resultLoadsTotal.WithLabelValues("error"))
	ObserveLoad(errors.New("bad csv"), 0, time.Millisecond)
	if got := testutil.ToFloat64(resultLoadsTotal.WithLabelValues("error")); got != before+1 {
		t.Errorf("expected error loads to increase by 1, got %f -> %f", before, got)
	}

	ObserveLoad(nil, 42, time.Millisecond)
	if got := testutil.ToFloat64(resultRows); got != 42 {
		t.Errorf("expected result rows 42, got %f", got)
	}

	ObserveScan(7)
	if got := testutil.ToFloat64(resultFiles); got != 7 {
		t.Errorf("expected 7 result files, got %f", got)
	}

	ObserveLinkOpened("https://www.xiaohongshu.com/explore/1")
	if got := testutil.ToFloat64(linksOpenedTotal.WithLabelValues("www.xiaohongshu.com")); got < 1 {
		t.Errorf("expected link counter to be incremented, got %f", got)
	}

	path := filepath.Join(t.TempDir(), "crawlerpanel.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "crawlerpanel_result_rows 42") {
		t.Errorf("textfile missing result rows gauge:\n%s", data)
	}
}

func TestWriteTextfileEmptyPath(t *testing.T) {
	if err := WriteTextfile(""); err != nil {
		t.Fatalf("expected nil error for empty path, got %v", err)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.bilibili.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		got := SanitizeSite(orig)
		if got == "" {
			t.Errorf("SanitizeSite(%q) returned empty string", orig)
		}
	})
}
