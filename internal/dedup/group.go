package dedup

import (
	"bytes"
	"encoding/hex"
	"slices"
)

// Digest is the fixed-length output of a content hash. Equal digests are
// treated as equal content.
type Digest []byte

// String returns the lower-case hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// HashedEntry is an entry together with its size and content digest.
type HashedEntry struct {
	Digest Digest
	Size   int64
	Entry  Entry
}

// DuplicateGroup is a set of two or more entries with identical content.
// Members are ordered by SortKey; Members[0] is the canonical survivor.
type DuplicateGroup struct {
	Digest  Digest
	Size    int64
	Members []Entry
}

// Survivor returns the member that cleanup keeps.
func (g *DuplicateGroup) Survivor() Entry {
	return g.Members[0]
}

// Redundant returns the members that cleanup removes.
func (g *DuplicateGroup) Redundant() []Entry {
	return g.Members[1:]
}

// Reclaimable returns the bytes freed by removing every redundant member.
func (g *DuplicateGroup) Reclaimable() int64 {
	return g.Size * int64(len(g.Members)-1)
}

type groupKey struct {
	size   int64
	digest string
}

// Grouper accumulates hashed entries into duplicate groups.
// It is not safe for concurrent use; feed it from a single goroutine.
type Grouper struct {
	groups map[groupKey]*DuplicateGroup
}

// NewGrouper creates an empty Grouper.
func NewGrouper() *Grouper {
	return &Grouper{groups: make(map[groupKey]*DuplicateGroup)}
}

// Add files a hashed entry under its digest. The size is part of the key,
// so a digest collision across different lengths never merges groups.
func (g *Grouper) Add(h HashedEntry) {
	key := groupKey{size: h.Size, digest: string(h.Digest)}
	grp, ok := g.groups[key]
	if !ok {
		grp = &DuplicateGroup{Digest: h.Digest, Size: h.Size}
		g.groups[key] = grp
	}
	grp.Members = append(grp.Members, h.Entry)
}

// Groups returns every group with at least two members, each sorted by
// SortKey. Groups are ordered by their survivor's SortKey, then digest.
func (g *Grouper) Groups() []*DuplicateGroup {
	var out []*DuplicateGroup
	for _, grp := range g.groups {
		if len(grp.Members) < 2 {
			continue
		}
		SortMembers(grp.Members)
		out = append(out, grp)
	}
	slices.SortFunc(out, func(a, b *DuplicateGroup) int {
		if c := KeyOf(a.Survivor()).Compare(KeyOf(b.Survivor())); c != 0 {
			return c
		}
		return bytes.Compare(a.Digest, b.Digest)
	})
	return out
}
