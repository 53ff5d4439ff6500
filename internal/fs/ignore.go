package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-root file listing extra ignore patterns.
const IgnoreFileName = ".dedupignore"

// defaultIgnorePatterns are always applied regardless of config or ignore file.
var defaultIgnorePatterns = []string{IgnoreFileName}

type ignorePattern struct {
	pattern   string
	matchPath bool // match the root-relative path instead of the base name
	dirOnly   bool // pattern ended in '/'
}

// IgnoreMatcher decides which paths below a root are skipped.
// Patterns without '/' match the base name at any depth.
// Patterns containing '/' match the slash-separated path relative to the root.
// A trailing '/' restricts a pattern to directories.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines, '#' comments and
// malformed globs are dropped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		p := ignorePattern{}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
			if raw == "" {
				continue
			}
		}
		raw = strings.TrimPrefix(raw, "/")
		if _, err := filepath.Match(raw, ""); err != nil {
			continue
		}
		p.pattern = raw
		p.matchPath = strings.Contains(raw, "/")
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath should be skipped. isDir tells whether
// the path names a directory, which dir-only patterns require.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if len(m.patterns) == 0 || relativePath == "" || relativePath == "." {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := basename
		if p.matchPath {
			target = normalized
		}
		if matched, _ := filepath.Match(p.pattern, target); matched {
			return true
		}
	}
	return false
}

// Len returns the number of usable patterns.
func (m *IgnoreMatcher) Len() int {
	return len(m.patterns)
}

// ParseIgnoreFile reads an ignore file and returns its raw lines.
// A missing file yields nil and no error.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
