package dedup_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"dedup-go/internal/dedup"
	"dedup-go/internal/testutil"
)

func memberPaths(g *dedup.DuplicateGroup) []string {
	out := make([]string, len(g.Members))
	for i, e := range g.Members {
		out[i] = e.Path()
	}
	return out
}

// newTestService wires a Service over an in-memory filesystem with a
// hasher that counts invocations.
func newTestService(t *testing.T, fsmgr *testutil.MockFilesystemManager, workers int) (*dedup.Service, *testutil.CountingHasher) {
	t.Helper()
	hasher := &testutil.CountingHasher{
		Inner: dedup.NewContentHasher(fsmgr, mustAlgorithm(t, "sha1"), 0),
	}
	return dedup.NewService(fsmgr, hasher, dedup.NewNopLogger(), nil, workers), hasher
}

func TestService_FindDuplicates(t *testing.T) {
	t.Run("groups identical files and ignores unique ones", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/tree/x.txt", []byte("hello"))
		fsmgr.AddFile("/tree/y.txt", []byte("hello"))
		fsmgr.AddFile("/tree/z.txt", []byte("world"))
		svc, _ := newTestService(t, fsmgr, 2)

		res, err := svc.FindDuplicates(context.Background(), []string{"/tree"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 1 {
			t.Fatalf("len(Groups) = %d, want 1", len(res.Groups))
		}
		g := res.Groups[0]
		if got := memberPaths(g); !slices.Equal(got, []string{"/tree/x.txt", "/tree/y.txt"}) {
			t.Errorf("Members = %v", got)
		}
		if got, want := g.Digest.String(), testutil.SHA1Hex([]byte("hello")); got != want {
			t.Errorf("Digest = %s, want %s", got, want)
		}
		if res.Stats.FilesSeen != 3 || res.Stats.Groups != 1 || res.Stats.Redundant != 1 || res.Stats.Reclaimable != 5 {
			t.Errorf("Stats = %+v", res.Stats)
		}
	})

	t.Run("same size different content is not a group", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a", []byte("aaaa"))
		fsmgr.AddFile("/t/b", []byte("bbbb"))
		svc, hasher := newTestService(t, fsmgr, 1)

		res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 0 {
			t.Errorf("len(Groups) = %d, want 0", len(res.Groups))
		}
		if hasher.Calls() != 2 {
			t.Errorf("hash calls = %d, want 2", hasher.Calls())
		}
	})

	t.Run("zero-byte files are duplicates", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/empty1", nil)
		fsmgr.AddFile("/t/empty2", []byte{})
		svc, _ := newTestService(t, fsmgr, 1)

		res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 1 || len(res.Groups[0].Members) != 2 {
			t.Fatalf("Groups = %+v, want one group of two", res.Groups)
		}
		if res.Groups[0].Size != 0 {
			t.Errorf("Size = %d, want 0", res.Groups[0].Size)
		}
	})

	t.Run("unique sizes are never hashed", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/one", []byte("1"))
		fsmgr.AddFile("/t/two", []byte("22"))
		fsmgr.AddFile("/t/three", []byte("333"))
		fsmgr.AddFile("/t/dupA", []byte("four"))
		fsmgr.AddFile("/t/dupB", []byte("four"))
		svc, hasher := newTestService(t, fsmgr, 4)

		if _, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil); err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}

		got := hasher.Paths()
		slices.Sort(got)
		if !slices.Equal(got, []string{"/t/dupA", "/t/dupB"}) {
			t.Errorf("hashed paths = %v, want only the same-size pair", got)
		}
		for _, p := range []string{"/t/one", "/t/two", "/t/three"} {
			if fsmgr.Opens(p) != 0 {
				t.Errorf("%s was opened %d times, want 0", p, fsmgr.Opens(p))
			}
		}
	})

	t.Run("include matching nothing never hashes", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a.txt", []byte("same"))
		fsmgr.AddFile("/t/b.txt", []byte("same"))
		svc, hasher := newTestService(t, fsmgr, 2)

		filter, err := dedup.CompileFilter(`\.nomatch$`, "")
		if err != nil {
			t.Fatalf("CompileFilter() error = %v", err)
		}

		res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, filter)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 0 {
			t.Errorf("len(Groups) = %d, want 0", len(res.Groups))
		}
		if hasher.Calls() != 0 || fsmgr.TotalOpens() != 0 {
			t.Errorf("hash calls = %d, opens = %d, want 0", hasher.Calls(), fsmgr.TotalOpens())
		}
		if res.Stats.FilesFiltered != 2 {
			t.Errorf("FilesFiltered = %d, want 2", res.Stats.FilesFiltered)
		}
	})

	t.Run("filter applies before grouping", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a.txt", []byte("same"))
		fsmgr.AddFile("/t/tmp/b.txt", []byte("same"))
		fsmgr.AddFile("/t/c.txt", []byte("same"))
		fsmgr.AddFile("/t/d.md", []byte("same"))
		svc, _ := newTestService(t, fsmgr, 2)

		filter, _ := dedup.CompileFilter(`.*\.txt$`, `tmp`)
		res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, filter)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 1 {
			t.Fatalf("len(Groups) = %d, want 1", len(res.Groups))
		}
		if got := memberPaths(res.Groups[0]); !slices.Equal(got, []string{"/t/a.txt", "/t/c.txt"}) {
			t.Errorf("Members = %v", got)
		}
	})

	t.Run("groups span several roots", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/left/photo.jpg", []byte("jpeg-bytes"))
		fsmgr.AddFile("/right/backup/photo.jpg", []byte("jpeg-bytes"))
		svc, _ := newTestService(t, fsmgr, 2)

		res, err := svc.FindDuplicates(context.Background(), []string{"/left", "/right"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 1 {
			t.Fatalf("len(Groups) = %d, want 1", len(res.Groups))
		}
		if res.Groups[0].Survivor().Path() != "/left/photo.jpg" {
			t.Errorf("Survivor = %s", res.Groups[0].Survivor().Path())
		}
	})

	t.Run("revisited paths are collapsed before hashing", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/only", []byte("content"))
		fsmgr.AddFile("/t/other", []byte("xxxxxxx"))
		fsmgr.RepeatOnWalk("/t/only", 2)
		svc, hasher := newTestService(t, fsmgr, 2)

		res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 0 {
			t.Errorf("a file was reported as a duplicate of itself: %v", memberPaths(res.Groups[0]))
		}
		if fsmgr.Opens("/t/only") != 1 {
			t.Errorf("/t/only opened %d times, want 1", fsmgr.Opens("/t/only"))
		}
		if hasher.Calls() != 2 {
			t.Errorf("hash calls = %d, want 2", hasher.Calls())
		}
	})

	t.Run("repeated path alone in its bucket is not hashed", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/only", []byte("content"))
		fsmgr.RepeatOnWalk("/t/only", 1)
		svc, hasher := newTestService(t, fsmgr, 1)

		if _, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil); err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if hasher.Calls() != 0 {
			t.Errorf("hash calls = %d, want 0", hasher.Calls())
		}
	})

	t.Run("unreadable files are dropped", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a", []byte("same"))
		fsmgr.AddFile("/t/b", []byte("same"))
		fsmgr.AddFile("/t/c", []byte("same")).OpenErr = testutil.ErrInjected
		fsmgr.AddFile("/t/d", []byte("same")).StatErr = testutil.ErrInjected
		fsmgr.AddWalkError("/t/locked", testutil.ErrInjected)
		svc, _ := newTestService(t, fsmgr, 3)

		res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		if len(res.Groups) != 1 {
			t.Fatalf("len(Groups) = %d, want 1", len(res.Groups))
		}
		if got := memberPaths(res.Groups[0]); !slices.Equal(got, []string{"/t/a", "/t/b"}) {
			t.Errorf("Members = %v", got)
		}
		st := res.Stats
		if st.HashErrors != 1 || st.MetadataErrors != 1 || st.WalkErrors != 1 {
			t.Errorf("Stats = %+v", st)
		}
	})

	t.Run("overlapping roots fail before any I/O", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/a/b/f", []byte("x"))
		svc, hasher := newTestService(t, fsmgr, 1)

		_, err := svc.FindDuplicates(context.Background(), []string{"/a", "/a/b"}, nil)
		var overlap *dedup.OverlappingRootsError
		if !errors.As(err, &overlap) {
			t.Fatalf("FindDuplicates() error = %v, want *OverlappingRootsError", err)
		}
		if hasher.Calls() != 0 || fsmgr.TotalOpens() != 0 {
			t.Error("I/O happened before root validation failed")
		}
	})

	t.Run("member order is stable across runs", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		for _, p := range []string{"/t/bb", "/t/aa", "/t/c", "/t/sub/zz", "/t/dd"} {
			fsmgr.AddFile(p, []byte("identical"))
		}
		svc, _ := newTestService(t, fsmgr, 4)

		want := []string{"/t/c", "/t/aa", "/t/bb", "/t/dd", "/t/sub/zz"}
		for i := 0; i < 10; i++ {
			res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
			if err != nil {
				t.Fatalf("FindDuplicates() error = %v", err)
			}
			if got := memberPaths(res.Groups[0]); !slices.Equal(got, want) {
				t.Fatalf("run %d: Members = %v, want %v", i, got, want)
			}
		}
	})
}

func TestService_FindDuplicates_cancelled(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/t/a", []byte("same"))
	fsmgr.AddFile("/t/b", []byte("same"))
	svc, _ := newTestService(t, fsmgr, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.FindDuplicates(ctx, []string{"/t"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FindDuplicates() error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Errorf("FindDuplicates() result = %+v, want nil", res)
	}
}

func TestService_Clean(t *testing.T) {
	t.Run("removes all but the survivor", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/tree/x.txt", []byte("hello"))
		fsmgr.AddFile("/tree/y.txt", []byte("hello"))
		fsmgr.AddFile("/tree/z.txt", []byte("world"))
		svc, _ := newTestService(t, fsmgr, 2)

		res, err := svc.FindDuplicates(context.Background(), []string{"/tree"}, nil)
		if err != nil {
			t.Fatalf("FindDuplicates() error = %v", err)
		}
		report, err := svc.Clean(context.Background(), res.Groups)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}

		if !fsmgr.Exists("/tree/x.txt") {
			t.Error("survivor x.txt was removed")
		}
		if fsmgr.Exists("/tree/y.txt") {
			t.Error("duplicate y.txt was not removed")
		}
		if !fsmgr.Exists("/tree/z.txt") {
			t.Error("unique z.txt was removed")
		}
		if !slices.Equal(report.Removed, []string{"/tree/y.txt"}) {
			t.Errorf("Removed = %v", report.Removed)
		}
		if report.BytesReclaimed != 5 {
			t.Errorf("BytesReclaimed = %d, want 5", report.BytesReclaimed)
		}
	})

	t.Run("removes exactly members minus one per group", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		for _, p := range []string{"/t/a1", "/t/a22", "/t/a333"} {
			fsmgr.AddFile(p, []byte("AAAA"))
		}
		for _, p := range []string{"/t/b1", "/t/b22"} {
			fsmgr.AddFile(p, []byte("BBBBBBBB"))
		}
		svc, _ := newTestService(t, fsmgr, 2)

		res, _ := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
		report, err := svc.Clean(context.Background(), res.Groups)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}

		if len(report.Removed) != 3 {
			t.Errorf("removed %d files, want 3", len(report.Removed))
		}
		for _, keep := range []string{"/t/a1", "/t/b1"} {
			if !fsmgr.Exists(keep) {
				t.Errorf("survivor %s was removed", keep)
			}
		}
	})

	t.Run("a failed removal does not stop the rest", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a", []byte("same"))
		fsmgr.AddFile("/t/bb", []byte("same")).RemoveErr = testutil.ErrInjected
		fsmgr.AddFile("/t/ccc", []byte("same"))
		fsmgr.AddFile("/t/x", []byte("other!"))
		fsmgr.AddFile("/t/yy", []byte("other!"))
		svc, _ := newTestService(t, fsmgr, 1)

		res, _ := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
		report, err := svc.Clean(context.Background(), res.Groups)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}

		if !slices.Equal(fsmgr.Removed(), []string{"/t/ccc", "/t/yy"}) {
			t.Errorf("Removed = %v", fsmgr.Removed())
		}
		if len(report.Failed) != 1 || report.Failed[0].Path != "/t/bb" {
			t.Errorf("Failed = %+v", report.Failed)
		}
		if !errors.Is(report.Failed[0].Err, testutil.ErrInjected) {
			t.Errorf("Failed[0].Err = %v", report.Failed[0].Err)
		}
	})

	t.Run("clean is idempotent", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a", []byte("same"))
		fsmgr.AddFile("/t/b", []byte("same"))
		svc, _ := newTestService(t, fsmgr, 1)

		for i := 0; i < 2; i++ {
			res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
			if err != nil {
				t.Fatalf("FindDuplicates() error = %v", err)
			}
			if _, err := svc.Clean(context.Background(), res.Groups); err != nil {
				t.Fatalf("Clean() error = %v", err)
			}
		}
		if !fsmgr.Exists("/t/a") || fsmgr.Exists("/t/b") {
			t.Error("second clean changed the outcome")
		}
	})

	t.Run("cancelled context removes nothing", func(t *testing.T) {
		t.Parallel()
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/t/a", []byte("same"))
		fsmgr.AddFile("/t/b", []byte("same"))
		svc, _ := newTestService(t, fsmgr, 1)

		res, _ := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := svc.Clean(ctx, res.Groups)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Clean() error = %v, want context.Canceled", err)
		}
		if len(report.Removed) != 0 || len(fsmgr.Removed()) != 0 {
			t.Error("files were removed after cancellation")
		}
	})
}

// recordingObserver captures observer callbacks.
type recordingObserver struct {
	dedup.NopObserver
	removed []string
	failed  []string
}

func (o *recordingObserver) Removed(_ *dedup.DuplicateGroup, path string) {
	o.removed = append(o.removed, path)
}

func (o *recordingObserver) RemoveFailed(_ *dedup.DuplicateGroup, path string, _ error) {
	o.failed = append(o.failed, path)
}

func TestService_Clean_notifiesObserver(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/t/a", []byte("same"))
	fsmgr.AddFile("/t/bb", []byte("same"))
	fsmgr.AddFile("/t/ccc", []byte("same")).RemoveErr = testutil.ErrInjected

	obs := &recordingObserver{}
	hasher := dedup.NewContentHasher(fsmgr, mustAlgorithm(t, "sha1"), 0)
	svc := dedup.NewService(fsmgr, hasher, dedup.NewNopLogger(), obs, 1)

	res, err := svc.FindDuplicates(context.Background(), []string{"/t"}, nil)
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if _, err := svc.Clean(context.Background(), res.Groups); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if !slices.Equal(obs.removed, []string{"/t/bb"}) {
		t.Errorf("removed = %v", obs.removed)
	}
	if !slices.Equal(obs.failed, []string{"/t/ccc"}) {
		t.Errorf("failed = %v", obs.failed)
	}
}
