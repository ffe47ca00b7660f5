// Package globfilter implements txed's include/exclude path selection,
// using doublestar's recursive "**" glob semantics.
package globfilter

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jopamo/txed/internal/xerrors"
)

// Filter selects paths against an optional include and exclude pattern set.
type Filter struct {
	include []string
	exclude []string
}

// New validates the include/exclude glob patterns and returns a Filter.
// Malformed patterns fail validation before any file is touched.
func New(include, exclude []string) (*Filter, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, xerrors.ValidationError("invalid include glob pattern: "+p, nil)
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, xerrors.ValidationError("invalid exclude glob pattern: "+p, nil)
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Selected reports whether path passes the filter: (no include set or some
// include pattern matches) AND (no exclude set or no exclude pattern
// matches). Matching is attempted against both the normalized full path and
// its basename, so a pattern like "*.go" matches regardless of directory
// depth.
func (f *Filter) Selected(path string) bool {
	normalized := normalize(path)
	base := filepath.Base(normalized)

	if len(f.include) > 0 && !anyMatch(f.include, normalized, base) {
		return false
	}
	if len(f.exclude) > 0 && anyMatch(f.exclude, normalized, base) {
		return false
	}
	return true
}

func anyMatch(patterns []string, normalized, base string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, normalized); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// normalize strips a leading working-directory-relative "./" and collapses
// "." components so glob patterns match consistently regardless of how the
// caller spelled the path.
func normalize(path string) string {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	cleaned = strings.TrimPrefix(cleaned, "./")
	return cleaned
}
