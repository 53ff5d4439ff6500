package dedup

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Service runs the duplicate-detection pipeline and the cleanup that
// consumes its result.
type Service struct {
	fsmgr    FilesystemManager
	hasher   Hasher
	logger   Logger
	observer Observer
	workers  int
}

// NewService creates a Service. workers <= 0 selects runtime.NumCPU().
// A nil observer is replaced by NopObserver.
func NewService(fsmgr FilesystemManager, hasher Hasher, logger Logger, observer Observer, workers int) *Service {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Service{
		fsmgr:    fsmgr,
		hasher:   hasher,
		logger:   logger,
		observer: observer,
		workers:  workers,
	}
}

// Stats counts what happened to entries at each stage of one run.
type Stats struct {
	FilesSeen      int64 // regular files yielded by enumeration
	FilesFiltered  int64 // rejected by the include/exclude filter
	WalkErrors     int64 // unreadable paths reported by enumeration
	MetadataErrors int64 // entries whose size could not be read
	SizeCandidates int64 // entries in size buckets with two or more members
	FilesHashed    int64
	HashErrors     int64
	Groups         int64
	Redundant      int64 // members that clean would remove
	Reclaimable    int64 // bytes freed by removing every redundant member
}

// Result is the output of FindDuplicates.
type Result struct {
	Groups []*DuplicateGroup
	Stats  Stats
}

// FindDuplicates validates roots, enumerates every regular file below them,
// and returns the groups of files with identical content.
//
// Roots are validated before any I/O. Per-file failures are counted and
// logged but never abort the run. If ctx is cancelled the run stops at the
// next bucket boundary and ctx.Err() is returned without any groups.
func (s *Service) FindDuplicates(ctx context.Context, roots []string, filter *Filter) (*Result, error) {
	if err := ValidateRoots(roots); err != nil {
		return nil, err
	}

	var stats Stats
	buckets := NewSizeBuckets()

	for _, root := range roots {
		s.logger.Debug("scanning root", "root", root)
		err := s.fsmgr.Walk(ctx, root, func(path string, e Entry, err error) error {
			if err != nil {
				stats.WalkErrors++
				s.logger.Warn("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			stats.FilesSeen++
			if !filter.Accept(e.Path()) {
				stats.FilesFiltered++
				return nil
			}
			if err := buckets.Add(e); err != nil {
				stats.MetadataErrors++
				s.logger.Debug("dropping entry", "path", e.Path(), "error", err)
			}
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	candidates := buckets.Candidates()
	for _, b := range candidates {
		stats.SizeCandidates += int64(len(b.Entries))
	}
	s.logger.Info("enumeration complete",
		"files", stats.FilesSeen,
		"filtered", stats.FilesFiltered,
		"candidates", stats.SizeCandidates,
		"buckets", len(candidates),
	)

	groups, err := s.hashBuckets(ctx, candidates, &stats)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		stats.Groups++
		stats.Redundant += int64(len(g.Members) - 1)
		stats.Reclaimable += g.Reclaimable()
	}
	s.logger.Info("grouping complete",
		"hashed", stats.FilesHashed,
		"hash_errors", stats.HashErrors,
		"groups", stats.Groups,
		"redundant", stats.Redundant,
	)

	return &Result{Groups: groups, Stats: stats}, nil
}

// bucketResult is what one worker sends back for one size bucket.
type bucketResult struct {
	hashed []HashedEntry
	failed int64
}

// hashBuckets hashes every candidate bucket on a bounded worker pool and
// groups the results by digest on the calling goroutine.
func (s *Service) hashBuckets(ctx context.Context, buckets []Bucket, stats *Stats) ([]*DuplicateGroup, error) {
	jobs := make(chan Bucket)
	results := make(chan bucketResult)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- s.hashBucket(b)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, b := range buckets {
			select {
			case jobs <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	grouper := NewGrouper()
	for res := range results {
		stats.HashErrors += res.failed
		for _, h := range res.hashed {
			stats.FilesHashed++
			grouper.Add(h)
		}
	}

	if err := ctx.Err(); err != nil {
		s.logger.Warn("run cancelled before grouping finished", "error", err)
		return nil, err
	}
	return grouper.Groups(), nil
}

// hashBucket hashes the members of one size bucket. Repeated paths are
// collapsed first; a bucket left with a single member is not hashed.
func (s *Service) hashBucket(b Bucket) bucketResult {
	var res bucketResult

	entries := DedupeByPath(b.Entries)
	if len(entries) < 2 {
		return res
	}

	for _, e := range entries {
		s.observer.Hashing(e.Path())
		d, err := s.hasher.Hash(e)
		if err != nil {
			res.failed++
			s.logger.Debug("dropping entry", "path", e.Path(), "error", err)
			continue
		}
		res.hashed = append(res.hashed, HashedEntry{Digest: d, Size: b.Size, Entry: e})
	}
	return res
}
