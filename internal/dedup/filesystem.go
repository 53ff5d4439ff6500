package dedup

import (
	"context"
	"io"
)

// WalkFunc is called for every regular file below a search root.
// When a path cannot be read, e is nil and err describes the failure;
// the walk continues unless WalkFunc returns a non-nil error.
type WalkFunc func(path string, e Entry, err error) error

// FilesystemManager provides the filesystem operations the pipeline needs.
// It abstracts file access so the pipeline can be tested without touching
// the real filesystem.
type FilesystemManager interface {
	// Walk enumerates regular files below root, calling fn for each.
	// Directories, symlinks and special files are never passed to fn.
	Walk(ctx context.Context, root string, fn WalkFunc) error

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a single file.
	Remove(path string) error
}
