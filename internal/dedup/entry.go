package dedup

import (
	"cmp"
	"slices"
	"strings"
)

// Entry is a handle to one regular file found during enumeration.
// Size may touch the filesystem; the pipeline calls it once per entry.
type Entry interface {
	Path() string
	Size() (int64, error)
}

// SortKey is the ordering key for members of a duplicate group:
// shorter paths first, equal lengths ordered lexicographically.
type SortKey struct {
	Length int
	Path   string
}

// KeyOf returns the sort key for an entry.
func KeyOf(e Entry) SortKey {
	p := e.Path()
	return SortKey{Length: len(p), Path: p}
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to,
// or after o.
func (k SortKey) Compare(o SortKey) int {
	if c := cmp.Compare(k.Length, o.Length); c != 0 {
		return c
	}
	return strings.Compare(k.Path, o.Path)
}

// SortMembers orders entries by their SortKey. The first element afterwards
// is the canonical survivor of a duplicate group.
func SortMembers(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return KeyOf(a).Compare(KeyOf(b))
	})
}
