package runconfig

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/metrics"
)

// Assignment names inside the crawler settings file.
const (
	FieldKeywords = "KEYWORDS"
	FieldPlatform = "PLATFORM"
	FieldStorage  = "SAVE_DATA_OPTION"
)

var fieldPatterns = map[string]*regexp.Regexp{
	FieldKeywords: assignmentPattern(FieldKeywords),
	FieldPlatform: assignmentPattern(FieldPlatform),
	FieldStorage:  assignmentPattern(FieldStorage),
}

// assignmentPattern matches NAME = "value" or NAME = 'value' on a single line.
// The leading word boundary keeps SEARCH_KEYWORDS from matching KEYWORDS.
func assignmentPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + name + `\s*=\s*["'](.*?)["']`)
}

// ErrConfigIO is matched by every ConfigIOError via errors.Is.
var ErrConfigIO = errors.New("crawler settings file unavailable")

// ConfigIOError reports that the settings file could not be read or written.
type ConfigIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigIOError) Unwrap() error { return e.Err }

// Is lets callers test for ErrConfigIO.
func (e *ConfigIOError) Is(target error) bool {
	return target == ErrConfigIO
}

// Synchronizer reads and patches the three run fields of the settings file.
type Synchronizer struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSynchronizer binds a Synchronizer to one settings file.
func NewSynchronizer(path string, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{path: path, logger: logger}
}

// Resolve returns the first candidate path that exists. When none exists the
// first candidate is returned so later errors name the preferred location.
func Resolve(candidates ...string) string {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// Path reports the settings file location.
func (s *Synchronizer) Path() string {
	return s.path
}

// Load reads the settings file on top of Default().
func (s *Synchronizer) Load() (RunConfiguration, error) {
	return s.LoadOnto(Default())
}

// LoadOnto reads the settings file on top of prior. Each field is extracted
// independently; a missing or unrecognised field keeps its prior value. A missing
// or unreadable file returns prior unchanged together with a ConfigIOError.
func (s *Synchronizer) LoadOnto(prior RunConfiguration) (RunConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := prior
	cfg.Keywords = append([]string(nil), prior.Keywords...)

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("crawler settings unreadable; keeping current values",
			zap.String("path", s.path), zap.Error(err))
		return cfg, &ConfigIOError{Op: "read", Path: s.path, Err: err}
	}
	content := string(data)

	if raw, ok := lookup(content, FieldKeywords); ok {
		cfg.Keywords = ParseKeywords(raw)
	} else {
		s.logger.Warn("crawler settings field missing", zap.String("field", FieldKeywords))
	}
	if raw, ok := lookup(content, FieldPlatform); ok {
		if p, perr := ParsePlatform(raw); perr == nil {
			cfg.Platform = p
		} else {
			s.logger.Warn("ignoring unknown platform", zap.String("value", raw))
		}
	} else {
		s.logger.Warn("crawler settings field missing", zap.String("field", FieldPlatform))
	}
	if raw, ok := lookup(content, FieldStorage); ok {
		if f, ferr := ParseStorageFormat(raw); ferr == nil {
			cfg.StorageFormat = f
		} else {
			s.logger.Warn("ignoring unknown storage format", zap.String("value", raw))
		}
	} else {
		s.logger.Warn("crawler settings field missing", zap.String("field", FieldStorage))
	}
	return cfg, nil
}

// Save re-reads the settings file, rewrites the three assignments and replaces
// the file atomically. cfg must pass Validate. On any failure the file on disk
// is left as it was.
func (s *Synchronizer) Save(cfg RunConfiguration) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveConfigSave(err) }()

	if err := cfg.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return &ConfigIOError{Op: "stat", Path: s.path, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &ConfigIOError{Op: "read", Path: s.path, Err: err}
	}

	content := Patch(string(data), map[string]string{
		FieldKeywords: cfg.KeywordString(),
		FieldPlatform: string(cfg.Platform),
		FieldStorage:  string(cfg.StorageFormat),
	})

	if err := writeAtomic(s.path, []byte(content), info.Mode().Perm()); err != nil {
		return &ConfigIOError{Op: "write", Path: s.path, Err: err}
	}
	s.logger.Info("crawler settings updated",
		zap.String("path", s.path),
		zap.String("platform", string(cfg.Platform)),
		zap.Strings("keywords", cfg.Keywords),
		zap.String("storage", string(cfg.StorageFormat)),
	)
	return nil
}

// Patch substitutes each named assignment in content. Assignments that do not
// appear are appended on their own line in a stable order.
func Patch(content string, values map[string]string) string {
	for _, name := range []string{FieldKeywords, FieldPlatform, FieldStorage} {
		value, ok := values[name]
		if !ok {
			continue
		}
		line := fmt.Sprintf(`%s = "%s"`, name, value)
		re := fieldPatterns[name]
		if re.MatchString(content) {
			content = re.ReplaceAllLiteralString(content, line)
			continue
		}
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += line + "\n"
	}
	return content
}

func lookup(content, name string) (string, bool) {
	m := fieldPatterns[name].FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}
