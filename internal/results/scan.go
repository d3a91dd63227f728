package results

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExtension is the result file suffix the crawler writes in CSV mode.
const DefaultExtension = ".csv"

// Scan globs dir recursively for files ending in ext (case-insensitive),
// newest first with the path as tiebreak. A missing directory yields an empty
// slice and no error; unreadable subdirectories are skipped.
func Scan(dir, ext string) ([]ResultFile, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []ResultFile{}, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	files := []ResultFile{}
	err := doublestar.GlobWalk(os.DirFS(dir), "**/*"+foldPattern(ext), func(rel string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			// Removed between listing and stat, or not a plain file.
			return nil
		}
		files = append(files, ResultFile{
			Path:    filepath.Join(dir, filepath.FromSlash(rel)),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// foldPattern turns ext into a glob matching it in any letter case, so
// ".csv" becomes ".[cC][sS][vV]". Glob metacharacters are escaped.
func foldPattern(ext string) string {
	var b strings.Builder
	for _, r := range ext {
		lower, upper := unicode.ToLower(r), unicode.ToUpper(r)
		switch {
		case lower != upper:
			b.WriteString("[" + string(lower) + string(upper) + "]")
		case strings.ContainsRune(`*?[]{}\`, r):
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
