package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dedup-go/internal/config"
	"dedup-go/internal/database"
	"dedup-go/internal/dedup"
	"dedup-go/internal/fs"
)

// Options carries per-invocation settings from the CLI.
type Options struct {
	Verbose   bool
	Algorithm string // overrides scan.algorithm when non-empty
	Workers   int    // overrides scan.workers when positive

	Stdout io.Writer
	Stderr io.Writer
}

// ScanRequest names what to search.
type ScanRequest struct {
	Roots   []string
	Include string // regular expression, empty for none
	Exclude string // regular expression, empty for none
}

// DedupApp is the application layer between the CLI and dedup.Service.
// It constructs all dependencies from config, records each run in the
// history database, and releases everything on Close.
type DedupApp struct {
	cfg      *config.Config
	db       dedup.Database
	hasher   *dedup.ContentHasher
	service  *dedup.Service
	observer *cliObserver
	logger   dedup.Logger
	logFile  *os.File
	runID    string
	op       *Operation
}

// NewDedupApp creates a fully wired DedupApp from the given config.
// The caller must call Close when done.
func NewDedupApp(cfg *config.Config, opts Options) (*DedupApp, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	algName := cfg.Scan.Algorithm
	if opts.Algorithm != "" {
		algName = opts.Algorithm
	}
	alg, err := dedup.ParseAlgorithm(algName)
	if err != nil {
		return nil, err
	}

	workers := cfg.Scan.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	runID := dedup.UUIDGenerator{}.New()

	var mirror io.Writer
	if opts.Verbose {
		mirror = opts.Stderr
	}
	slogger, logFile, err := newLogger(cfg.LogDir, runID, mirror)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, dedup.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if sq, ok := db.(*database.SQLiteDatabase); ok {
		if err := sq.CheckMigrations(); err != nil {
			db.Close()
			logFile.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore, logger)
	hasher := dedup.NewContentHasher(fsmgr, alg, cfg.Scan.BufferSize)
	observer := newCLIObserver(opts.Stdout, opts.Stderr, opts.Verbose, db, logger)
	svc := dedup.NewService(fsmgr, hasher, logger, observer, workers)

	return &DedupApp{
		cfg:      cfg,
		db:       db,
		hasher:   hasher,
		service:  svc,
		observer: observer,
		logger:   logger,
		logFile:  logFile,
		runID:    runID,
	}, nil
}

// Algorithm returns the digest algorithm used for this run.
func (a *DedupApp) Algorithm() dedup.Algorithm {
	return a.hasher.Algorithm()
}

// prepare validates the request before any I/O and returns its filter.
// Roots are also compared in absolute form so "." and its absolute
// spelling are caught as the same root.
func (a *DedupApp) prepare(req ScanRequest) (*dedup.Filter, error) {
	abs := make([]string, len(req.Roots))
	for i, r := range req.Roots {
		p, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", r, err)
		}
		abs[i] = p
	}
	if err := dedup.ValidateRoots(abs); err != nil {
		return nil, err
	}
	return dedup.CompileFilter(req.Include, req.Exclude)
}

// begin creates the operation and, when history is enabled, persists it.
func (a *DedupApp) begin(command string, roots []string) *Operation {
	alg := a.Algorithm().Name
	op := NewOperation(a.runID, command, roots, alg)
	a.op = op
	a.observer.track(op)

	if a.db != nil {
		if err := a.db.CreateRun(&op.Run); err != nil {
			a.logger.Warn("failed to record run", "error", err)
		}
	}
	a.logger.Info("run started", "command", command, "roots", roots, "algorithm", alg)
	return op
}

func (a *DedupApp) find(ctx context.Context, command string, req ScanRequest) (*dedup.Result, error) {
	filter, err := a.prepare(req)
	if err != nil {
		return nil, err
	}

	op := a.begin(command, req.Roots)
	res, err := a.service.FindDuplicates(ctx, req.Roots, filter)
	a.observer.clearProgress()
	if err != nil {
		op.Fail()
		a.logger.Error("search failed", "error", err)
		return nil, err
	}
	op.ApplyStats(res.Stats)
	return res, nil
}

// List finds every duplicate group below the requested roots.
func (a *DedupApp) List(ctx context.Context, req ScanRequest) (*dedup.Result, error) {
	return a.find(ctx, "list", req)
}

// Clean finds duplicate groups and removes every member except the first
// of each group. Per-file removal failures are reported, not returned.
func (a *DedupApp) Clean(ctx context.Context, req ScanRequest) (*dedup.Result, *dedup.CleanReport, error) {
	res, err := a.find(ctx, "clean", req)
	if err != nil {
		return nil, nil, err
	}

	report, err := a.service.Clean(ctx, res.Groups)
	a.op.ApplyReport(report)
	if err != nil {
		a.op.Fail()
		a.logger.Error("clean interrupted", "error", err)
		return res, report, err
	}

	a.logger.Info("clean complete",
		"removed", len(report.Removed),
		"failed", len(report.Failed),
		"bytes", report.BytesReclaimed,
	)
	return res, report, nil
}

// History returns the most recent runs, newest first.
func (a *DedupApp) History(limit int) ([]*dedup.Run, error) {
	if a.db == nil {
		return nil, fmt.Errorf("run history is disabled (database type %q)", a.cfg.Database.Type)
	}
	return a.db.ListRuns(limit)
}

// Removals returns the deletion attempts recorded for a run.
func (a *DedupApp) Removals(runID int64) ([]*dedup.Removal, error) {
	if a.db == nil {
		return nil, fmt.Errorf("run history is disabled (database type %q)", a.cfg.Database.Type)
	}
	return a.db.ListRemovals(runID)
}

// BackupHistory copies the history database to destPath and returns the
// path of the database that was copied.
func (a *DedupApp) BackupHistory(destPath string) (string, error) {
	sq, ok := a.db.(*database.SQLiteDatabase)
	if !ok {
		return "", fmt.Errorf("history backup requires a sqlite database (database type %q)", a.cfg.Database.Type)
	}
	if err := sq.BackupTo(destPath); err != nil {
		return "", err
	}
	a.logger.Info("history backed up", "from", sq.Path(), "to", destPath)
	return sq.Path(), nil
}

// Close finalizes the run record and closes all resources.
func (a *DedupApp) Close() error {
	var firstErr error

	if a.op != nil {
		a.op.Finish()
		a.logger.Info("run finished", "status", a.op.Status)
	}

	if a.db != nil {
		if a.op != nil && a.op.Persisted() {
			if err := a.db.FinishRun(&a.op.Run); err != nil {
				firstErr = fmt.Errorf("finishing run: %w", err)
			}
		}
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
