package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"dedup-go/internal/dedup"
)

// SHA1Hex returns the SHA-1 digest of data as a lowercase hex string.
// Matches the default digest printed by list.
func SHA1Hex(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

// CountingHasher wraps a dedup.Hasher and records every path it hashes.
type CountingHasher struct {
	Inner dedup.Hasher

	mu    sync.Mutex
	paths []string
}

func (c *CountingHasher) Hash(e dedup.Entry) (dedup.Digest, error) {
	c.mu.Lock()
	c.paths = append(c.paths, e.Path())
	c.mu.Unlock()
	return c.Inner.Hash(e)
}

// Calls returns the number of Hash invocations.
func (c *CountingHasher) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

// Paths returns every hashed path, in call order.
func (c *CountingHasher) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}
