// Package desktop hands folders and URLs to the operating system's default
// handler: the file manager for directories, the browser for links.
package desktop

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/browser"
)

var silenceHandler sync.Once

// Opener launches targets with the platform handler.
type Opener struct {
	openURL  func(url string) error
	openFile func(path string) error
}

// New returns an Opener backed by the system handler. The handler's own
// output is discarded so it cannot draw over the terminal panel.
func New() *Opener {
	silenceHandler.Do(func() {
		browser.Stdout = io.Discard
		browser.Stderr = io.Discard
	})
	return &Opener{openURL: browser.OpenURL, openFile: browser.OpenFile}
}

// Open hands target to the platform handler: http and https links go to the
// browser, anything else is opened as a local path.
func (o *Opener) Open(target string) error {
	open := o.openFile
	if IsWebLink(target) {
		open = o.openURL
	}
	if err := open(target); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

// OpenFolder creates dir when missing and opens it in the file manager.
func (o *Opener) OpenFolder(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	return o.Open(abs)
}

// IsWebLink reports whether target is an http or https URL.
func IsWebLink(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
