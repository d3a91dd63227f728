// Package runconfig reads and patches the crawler's own settings file. Only the
// keyword, platform and storage assignments are touched; every other byte of the
// file is preserved so that hand-written comments and unrelated settings survive.
package runconfig

import (
	"errors"
	"fmt"
	"strings"
)

// Platform identifies the site the crawler targets.
type Platform string

// Supported platforms.
const (
	PlatformXHS   Platform = "xhs"
	PlatformDY    Platform = "dy"
	PlatformKS    Platform = "ks"
	PlatformBili  Platform = "bili"
	PlatformWB    Platform = "wb"
	PlatformTieba Platform = "tieba"
	PlatformZhihu Platform = "zhihu"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{
	PlatformXHS,
	PlatformDY,
	PlatformKS,
	PlatformBili,
	PlatformWB,
	PlatformTieba,
	PlatformZhihu,
}

// StorageFormat controls how the crawler persists what it collects.
type StorageFormat string

// Supported storage formats.
const (
	StorageCSV    StorageFormat = "csv"
	StorageJSON   StorageFormat = "json"
	StorageExcel  StorageFormat = "excel"
	StorageDB     StorageFormat = "db"
	StorageSQLite StorageFormat = "sqlite"
)

// StorageFormats lists every supported storage format in display order.
var StorageFormats = []StorageFormat{
	StorageCSV,
	StorageJSON,
	StorageExcel,
	StorageDB,
	StorageSQLite,
}

// RunConfiguration is the set of parameters controlling one crawl invocation.
type RunConfiguration struct {
	Keywords      []string      `yaml:"keywords"`
	Platform      Platform      `yaml:"platform"`
	StorageFormat StorageFormat `yaml:"storage_format"`
}

// Default returns the configuration used when the settings file is unreadable.
func Default() RunConfiguration {
	return RunConfiguration{
		Platform:      PlatformXHS,
		StorageFormat: StorageCSV,
	}
}

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("invalid run configuration")

// ValidationError reports a user-correctable problem with a RunConfiguration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets callers test for ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks the launch invariants: at least one keyword, known enum values,
// and keywords that can be written inside a single quoted assignment.
func (c RunConfiguration) Validate() error {
	if len(c.Keywords) == 0 {
		return &ValidationError{Field: "keywords", Reason: "at least one keyword is required"}
	}
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			return &ValidationError{Field: "keywords", Reason: "keywords must not be blank"}
		}
		if kw != strings.TrimSpace(kw) {
			return &ValidationError{Field: "keywords", Reason: fmt.Sprintf("keyword %q has leading or trailing spaces", kw)}
		}
		if strings.ContainsAny(kw, "\"',，\r\n") {
			return &ValidationError{Field: "keywords", Reason: fmt.Sprintf("keyword %q contains a quote, comma or newline", kw)}
		}
	}
	if _, err := ParsePlatform(string(c.Platform)); err != nil {
		return &ValidationError{Field: "platform", Reason: err.Error()}
	}
	if _, err := ParseStorageFormat(string(c.StorageFormat)); err != nil {
		return &ValidationError{Field: "storage_format", Reason: err.Error()}
	}
	return nil
}

// KeywordString renders the keywords the way they are stored in the settings file.
func (c RunConfiguration) KeywordString() string {
	return strings.Join(c.Keywords, ",")
}

// ParseKeywords splits user or file input on ASCII and full-width commas,
// trimming whitespace and dropping empty entries.
func ParseKeywords(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if kw := strings.TrimSpace(f); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ParsePlatform validates a platform code.
func ParsePlatform(raw string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", raw)
}

// ParseStorageFormat validates a storage format code.
func ParseStorageFormat(raw string) (StorageFormat, error) {
	for _, s := range StorageFormats {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown storage format %q", raw)
}
