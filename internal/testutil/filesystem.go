package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"dedup-go/internal/dedup"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte

	// Failure injection.
	StatErr   error
	OpenErr   error
	RemoveErr error
}

// MockFilesystemManager is an in-memory filesystem for testing.
// It records how often each file was opened and removed.
// Safe for concurrent use.
type MockFilesystemManager struct {
	mu       sync.Mutex
	files    map[string]*MockFile
	walkErrs map[string]error
	opens    map[string]int
	removed  []string
	repeat   map[string]int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    make(map[string]*MockFile),
		walkErrs: make(map[string]error),
		opens:    make(map[string]int),
		repeat:   make(map[string]int),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &MockFile{Content: content}
	m.files[filepath.Clean(path)] = f
	return f
}

// AddWalkError makes Walk report path as unreadable.
func (m *MockFilesystemManager) AddWalkError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walkErrs[filepath.Clean(path)] = err
}

// RepeatOnWalk makes Walk yield path n extra times, as a traversal that
// revisits a file would.
func (m *MockFilesystemManager) RepeatOnWalk(path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat[filepath.Clean(path)] = n
}

// Exists reports whether path is still present.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// Opens returns how many times path was opened.
func (m *MockFilesystemManager) Opens(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[filepath.Clean(path)]
}

// TotalOpens returns the number of Open calls across all files.
func (m *MockFilesystemManager) TotalOpens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.opens {
		total += n
	}
	return total
}

// Removed returns the paths removed so far, in call order.
func (m *MockFilesystemManager) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.removed)
}

// Walk yields every file under root in lexical order.
func (m *MockFilesystemManager) Walk(ctx context.Context, root string, fn dedup.WalkFunc) error {
	root = filepath.Clean(root)

	m.mu.Lock()
	var paths []string
	for p := range m.files {
		if isUnder(root, p) {
			paths = append(paths, p)
		}
	}
	walkErrs := make(map[string]error)
	var errPaths []string
	for p, err := range m.walkErrs {
		if isUnder(root, p) {
			errPaths = append(errPaths, p)
			walkErrs[p] = err
		}
	}
	m.mu.Unlock()

	slices.Sort(paths)
	slices.Sort(errPaths)

	for _, p := range errPaths {
		if err := fn(p, nil, walkErrs[p]); err != nil {
			return err
		}
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.mu.Lock()
		n := 1 + m.repeat[p]
		m.mu.Unlock()
		for i := 0; i < n; i++ {
			if err := fn(p, &mockEntry{fs: m, path: p}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.opens[path]++

	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	f, ok := m.files[path]
	if !ok {
		return fmt.Errorf("remove %s: %w", path, fs.ErrNotExist)
	}
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

func (m *MockFilesystemManager) size(path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if !ok {
		return 0, fs.ErrNotExist
	}
	if f.StatErr != nil {
		return 0, f.StatErr
	}
	return int64(len(f.Content)), nil
}

// mockEntry implements dedup.Entry
type mockEntry struct {
	fs   *MockFilesystemManager
	path string
}

func (e *mockEntry) Path() string         { return e.path }
func (e *mockEntry) Size() (int64, error) { return e.fs.size(e.path) }

// StaticEntry is a dedup.Entry with a fixed path and size, for tests that
// do not need a filesystem.
type StaticEntry struct {
	P   string
	N   int64
	Err error
}

func (e StaticEntry) Path() string         { return e.P }
func (e StaticEntry) Size() (int64, error) { return e.N, e.Err }

// ErrInjected is a generic failure for fault-injection tests.
var ErrInjected = errors.New("injected failure")

func isUnder(root, p string) bool {
	if p == root {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(p, root)
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}

// Compile-time check
var _ dedup.FilesystemManager = (*MockFilesystemManager)(nil)
