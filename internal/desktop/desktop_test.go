package desktop

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder captures which handler an Opener used.
type recorder struct {
	urls  []string
	files []string
	err   error
}

func (r *recorder) opener() *Opener {
	return &Opener{
		openURL:  func(u string) error { r.urls = append(r.urls, u); return r.err },
		openFile: func(p string) error { r.files = append(r.files, p); return r.err },
	}
}

func TestIsWebLink(t *testing.T) {
	t.Parallel()

	require.True(t, IsWebLink("https://www.douyin.com/video/1"))
	require.True(t, IsWebLink(" HTTP://example.com"))
	require.False(t, IsWebLink("/opt/crawler/data"))
	require.False(t, IsWebLink("ftp://example.com"))
}

func TestOpenRoutesLinksToBrowser(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	o := rec.opener()
	require.NoError(t, o.Open("https://www.xiaohongshu.com/explore/1"))
	require.NoError(t, o.Open("/opt/crawler/data/xhs/search.csv"))

	require.Equal(t, []string{"https://www.xiaohongshu.com/explore/1"}, rec.urls)
	require.Equal(t, []string{"/opt/crawler/data/xhs/search.csv"}, rec.files)
}

func TestOpenFolderCreatesDirectory(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	dir := filepath.Join(t.TempDir(), "data", "xhs")
	require.NoError(t, rec.opener().OpenFolder(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, []string{dir}, rec.files)
	require.Empty(t, rec.urls)
}

func TestOpenWrapsHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no handler")
	rec := &recorder{err: boom}
	err := rec.opener().Open("https://example.com")
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "open https://example.com")
}

func TestNewUsesSystemHandler(t *testing.T) {
	t.Parallel()

	o := New()
	require.NotNil(t, o.openURL)
	require.NotNil(t, o.openFile)
}
