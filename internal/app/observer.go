package app

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"dedup-go/internal/dedup"
)

// progressEvery is how many hashed files pass between counter redraws.
const progressEvery = 64

// cliObserver turns pipeline events into the user-visible output of list
// and clean, and records every deletion attempt in the run history.
type cliObserver struct {
	mu       sync.Mutex
	out      io.Writer
	progress io.Writer // nil unless stderr is an interactive terminal
	verbose  bool
	hashed   int64
	drawn    bool

	db     dedup.Database // nil when history is disabled
	op     *Operation
	logger dedup.Logger
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newCLIObserver(stdout, stderr io.Writer, verbose bool, db dedup.Database, logger dedup.Logger) *cliObserver {
	o := &cliObserver{out: stdout, verbose: verbose, db: db, logger: logger}
	if !verbose && isTerminal(stderr) {
		o.progress = stderr
	}
	return o
}

// track sets the operation that removals are recorded against.
func (o *cliObserver) track(op *Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.op = op
}

func (o *cliObserver) Hashing(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.hashed++
	if o.verbose {
		fmt.Fprintf(o.out, "processing: %s\n", path)
		return
	}
	if o.progress != nil && (o.hashed == 1 || o.hashed%progressEvery == 0) {
		fmt.Fprintf(o.progress, "\rhashing: %d files", o.hashed)
		o.drawn = true
	}
}

func (o *cliObserver) Removed(g *dedup.DuplicateGroup, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.verbose {
		fmt.Fprintf(o.out, "removing: %s\n", path)
	}
	o.record(g, path, nil)
}

func (o *cliObserver) RemoveFailed(g *dedup.DuplicateGroup, path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.record(g, path, err)
}

// record must be called with o.mu held.
func (o *cliObserver) record(g *dedup.DuplicateGroup, path string, removeErr error) {
	if o.db == nil || o.op == nil || !o.op.Persisted() {
		return
	}
	r := &dedup.Removal{
		RunID:  o.op.ID,
		Path:   path,
		Digest: g.Digest.String(),
		Size:   g.Size,
	}
	if removeErr != nil {
		r.Error = removeErr.Error()
	}
	if err := o.db.RecordRemoval(r); err != nil {
		o.logger.Warn("failed to record removal", "path", path, "error", err)
	}
}

// clearProgress erases the progress counter so normal output starts on a
// clean line.
func (o *cliObserver) clearProgress() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.drawn {
		fmt.Fprint(o.progress, "\r\x1b[K")
		o.drawn = false
	}
}

var _ dedup.Observer = (*cliObserver)(nil)
