// Package fs is the operating-system side of dedup: directory traversal
// with ignore rules, opening files for hashing, and removing duplicates.
package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"dedup-go/internal/dedup"
)

// OSFilesystemManager implements dedup.FilesystemManager on the real
// filesystem. Symbolic links and other non-regular files are never yielded.
type OSFilesystemManager struct {
	ignore []string
	logger dedup.Logger
}

// NewOSFilesystemManager creates a manager that skips paths matching the
// given glob patterns in addition to each root's ignore file.
func NewOSFilesystemManager(ignore []string, logger dedup.Logger) *OSFilesystemManager {
	if logger == nil {
		logger = dedup.NewNopLogger()
	}
	return &OSFilesystemManager{
		ignore: slices.Clone(ignore),
		logger: logger,
	}
}

// matcherFor builds the ignore rules for one root. Only a directory root
// can carry an ignore file.
func (m *OSFilesystemManager) matcherFor(root string) *IgnoreMatcher {
	patterns := slices.Concat(defaultIgnorePatterns, m.ignore)
	if info, err := os.Lstat(root); err != nil || !info.IsDir() {
		return NewIgnoreMatcher(patterns)
	}

	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		m.logger.Warn("ignoring unreadable ignore file", "root", root, "error", err)
	}
	return NewIgnoreMatcher(append(patterns, fromFile...))
}

// Walk visits every regular file below root in lexical order. Unreadable
// paths are reported to fn with a non-nil error and skipped. A root that is
// itself a regular file is yielded on its own.
func (m *OSFilesystemManager) Walk(ctx context.Context, root string, fn dedup.WalkFunc) error {
	root = filepath.Clean(root)
	matcher := m.matcherFor(root)
	m.logger.Debug("walking root", "root", root, "ignore_patterns", matcher.Len())

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// d is non-nil only for a directory whose listing failed; its
			// contents are skipped either way.
			return fn(p, nil, &dedup.IoError{Op: "walk", Path: p, Err: err})
		}

		if p != root {
			rel, relErr := filepath.Rel(root, p)
			if relErr == nil && matcher.Match(rel, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if !d.Type().IsRegular() {
			return nil
		}
		return fn(p, &osEntry{path: p, d: d}, nil)
	})
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Remove deletes a single file. Directories are refused.
func (m *OSFilesystemManager) Remove(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("refusing to remove directory %s", path)
	}
	return os.Remove(path)
}

// osEntry is a regular file found during Walk. Its size is read lazily so
// files filtered out by pattern are never stat'ed.
type osEntry struct {
	path string
	d    fs.DirEntry
}

func (e *osEntry) Path() string { return e.path }

func (e *osEntry) Size() (int64, error) {
	info, err := e.d.Info()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Compile-time check that OSFilesystemManager implements dedup.FilesystemManager
var _ dedup.FilesystemManager = (*OSFilesystemManager)(nil)
