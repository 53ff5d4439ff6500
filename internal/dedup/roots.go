package dedup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNoRoots is returned when a run is started without any search roots.
var ErrNoRoots = errors.New("no search roots given")

// OverlappingRootsError reports two search roots where Root is equal to,
// or an ancestor of, Other.
type OverlappingRootsError struct {
	Root  string
	Other string
}

func (e *OverlappingRootsError) Error() string {
	if filepath.Clean(e.Root) == filepath.Clean(e.Other) {
		return fmt.Sprintf("search root given more than once: %s", e.Root)
	}
	return fmt.Sprintf("search roots overlap: %s contains %s", e.Root, e.Other)
}

// ValidateRoots rejects root lists in which any root is equal to or a
// path-prefix ancestor of another root. It performs no I/O.
func ValidateRoots(roots []string) error {
	if len(roots) == 0 {
		return ErrNoRoots
	}

	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = filepath.Clean(r)
	}

	// Root counts are small (typed by a user), so the quadratic scan is fine.
	for i := range cleaned {
		for j := range cleaned {
			if i == j {
				continue
			}
			if isPathPrefix(cleaned[i], cleaned[j]) {
				return &OverlappingRootsError{Root: roots[i], Other: roots[j]}
			}
		}
	}
	return nil
}

// isPathPrefix reports whether ancestor is p or one of p's parent
// directories, comparing whole path components. Both paths must be cleaned.
func isPathPrefix(ancestor, p string) bool {
	if ancestor == p {
		return true
	}
	if ancestor == "." {
		return !filepath.IsAbs(p) && p != ".." && !strings.HasPrefix(p, ".."+string(filepath.Separator))
	}
	if !strings.HasPrefix(p, ancestor) {
		return false
	}
	if strings.HasSuffix(ancestor, string(filepath.Separator)) {
		// filesystem root, e.g. "/"
		return true
	}
	return p[len(ancestor)] == filepath.Separator
}
