//go:build !windows

package runconfig

import (
	"io/fs"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// writeAtomic replaces path with data. The temp file lives beside path so the
// final rename never crosses filesystems.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	return renameio.WriteFile(path, data, perm,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.IgnoreUmask(),
	)
}
