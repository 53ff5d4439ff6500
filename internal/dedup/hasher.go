package dedup

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultBufferSize is the read chunk size used when hashing file content.
const DefaultBufferSize = 1 << 20

// DefaultAlgorithm is the digest used when none is configured.
const DefaultAlgorithm = "sha1"

// Algorithm describes a content digest.
type Algorithm struct {
	Name string
	Size int // digest length in bytes
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"sha1":   {Name: "sha1", Size: sha1.Size, New: sha1.New},
	"sha256": {Name: "sha256", Size: sha256.Size, New: sha256.New},
	"sha512": {Name: "sha512", Size: sha512.Size, New: sha512.New},
	"xxhash": {Name: "xxhash", Size: 8, New: func() hash.Hash { return xxhash.New() }},
}

// ParseAlgorithm returns the algorithm registered under name.
// The empty string selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		name = DefaultAlgorithm
	}
	alg, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return Algorithm{}, fmt.Errorf("unsupported hash algorithm %q (want one of %s)", name, strings.Join(AlgorithmNames(), ", "))
	}
	return alg, nil
}

// AlgorithmNames lists the supported algorithm names in sorted order.
func AlgorithmNames() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Hasher computes the content digest of one entry.
// Implementations must be safe for concurrent use.
type Hasher interface {
	Hash(e Entry) (Digest, error)
}

// ContentHasher streams file content through a fixed-size buffer into the
// configured digest. Buffers and digest states are pooled.
type ContentHasher struct {
	fsmgr   FilesystemManager
	alg     Algorithm
	buffers sync.Pool
	digests sync.Pool
}

var _ Hasher = (*ContentHasher)(nil)

// NewContentHasher creates a ContentHasher reading through fsmgr.
// bufferSize <= 0 selects DefaultBufferSize.
func NewContentHasher(fsmgr FilesystemManager, alg Algorithm, bufferSize int) *ContentHasher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	h := &ContentHasher{fsmgr: fsmgr, alg: alg}
	h.buffers.New = func() any {
		b := make([]byte, bufferSize)
		return &b
	}
	h.digests.New = func() any {
		return alg.New()
	}
	return h
}

// Algorithm returns the digest algorithm in use.
func (h *ContentHasher) Algorithm() Algorithm {
	return h.alg
}

// Hash returns the digest of the entry's full content.
// Failures are returned as *IoError.
func (h *ContentHasher) Hash(e Entry) (Digest, error) {
	f, err := h.fsmgr.Open(e.Path())
	if err != nil {
		return nil, &IoError{Op: "open", Path: e.Path(), Err: err}
	}
	defer f.Close()

	d := h.digests.Get().(hash.Hash)
	d.Reset()
	defer h.digests.Put(d)

	bufPtr := h.buffers.Get().(*[]byte)
	defer h.buffers.Put(bufPtr)

	// *os.File implements io.WriterTo, so io.CopyBuffer would ignore buf.
	buf := *bufPtr
	for {
		n, err := f.Read(buf)
		if n > 0 {
			d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &IoError{Op: "read", Path: e.Path(), Err: err}
		}
	}

	return Digest(d.Sum(nil)), nil
}
