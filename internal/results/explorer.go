package results

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/metrics"
)

// Loaded is the table an Explorer currently shows.
type Loaded struct {
	File     string
	Table    Table
	Filtered Table
	View     Table
	LoadedAt time.Time
}

// Explorer keeps the most recently loaded result table. A failed Open leaves
// the previous table in place. It is safe for concurrent use.
type Explorer struct {
	dir     string
	ext     string
	maxRows int
	logger  *zap.Logger

	mu      sync.RWMutex
	current *Loaded
}

// NewExplorer binds an Explorer to the result directory.
func NewExplorer(dir, ext string, maxRows int, logger *zap.Logger) *Explorer {
	if ext == "" {
		ext = DefaultExtension
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explorer{dir: dir, ext: ext, maxRows: maxRows, logger: logger}
}

// Dir reports the result directory.
func (e *Explorer) Dir() string {
	return e.dir
}

// MaxRows reports the view bound.
func (e *Explorer) MaxRows() int {
	return e.maxRows
}

// Scan lists result files, newest first.
func (e *Explorer) Scan() ([]ResultFile, error) {
	files, err := Scan(e.dir, e.ext)
	if err != nil {
		e.logger.Warn("result scan failed", zap.String("dir", e.dir), zap.Error(err))
		return nil, err
	}
	metrics.ObserveScan(len(files))
	e.logger.Debug("result scan", zap.String("dir", e.dir), zap.Int("files", len(files)))
	return files, nil
}

// Open loads path and makes it the current table.
func (e *Explorer) Open(path string) (Loaded, error) {
	start := time.Now()
	table, err := Load(path)
	metrics.ObserveLoad(err, len(table.Rows), time.Since(start))
	if err != nil {
		e.logger.Warn("result load failed; keeping previous table", zap.String("path", path), zap.Error(err))
		return Loaded{}, err
	}

	filtered := FilterColumns(table)
	loaded := Loaded{
		File:     path,
		Table:    table,
		Filtered: filtered,
		View:     View(filtered, e.maxRows),
		LoadedAt: time.Now(),
	}
	e.mu.Lock()
	e.current = &loaded
	e.mu.Unlock()

	e.logger.Info("result loaded",
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)),
		zap.Int("shown_columns", len(filtered.Columns)),
	)
	return loaded, nil
}

// Current returns the loaded table, if any.
func (e *Explorer) Current() (Loaded, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return Loaded{}, false
	}
	return *e.current, true
}

// Link extracts the link of view row i of the current table.
func (e *Explorer) Link(i int) (string, bool) {
	cur, ok := e.Current()
	if !ok || i < 0 || i >= len(cur.View.Rows) {
		return "", false
	}
	return ExtractLink(cur.View.Rows[i], cur.View.Columns)
}
