package dedup

import (
	"cmp"
	"path/filepath"
	"slices"
)

// Bucket is a set of entries sharing one exact byte length.
type Bucket struct {
	Size    int64
	Entries []Entry
}

// SizeBuckets groups entries by byte length. It is the cheap first pass:
// files of different lengths can never be duplicates, so only buckets with
// at least two members are ever hashed.
type SizeBuckets struct {
	bySize map[int64][]Entry
}

// NewSizeBuckets creates an empty SizeBuckets.
func NewSizeBuckets() *SizeBuckets {
	return &SizeBuckets{bySize: make(map[int64][]Entry)}
}

// Add queries the entry's length and files it under that length.
// If the length cannot be read the entry is dropped and the error returned.
func (b *SizeBuckets) Add(e Entry) error {
	size, err := e.Size()
	if err != nil {
		return &IoError{Op: "stat", Path: e.Path(), Err: err}
	}
	b.bySize[size] = append(b.bySize[size], e)
	return nil
}

// Candidates returns the buckets with two or more members, smallest size
// first. Singleton buckets are discarded.
func (b *SizeBuckets) Candidates() []Bucket {
	var out []Bucket
	for size, entries := range b.bySize {
		if len(entries) < 2 {
			continue
		}
		out = append(out, Bucket{Size: size, Entries: entries})
	}
	slices.SortFunc(out, func(x, y Bucket) int {
		return cmp.Compare(x.Size, y.Size)
	})
	return out
}

// DedupeByPath collapses repeated references to the same cleaned path,
// keeping the first occurrence. Equality is by path, not content.
func DedupeByPath(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		p := filepath.Clean(e.Path())
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, e)
	}
	return out
}
