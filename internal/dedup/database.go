package dedup

import (
	"database/sql"
	"time"
)

// Run status values.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Run is the history record of one list or clean invocation.
type Run struct {
	ID         int64
	UUID       string
	Command    string
	Roots      []string
	Algorithm  string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string

	FilesSeen        int64
	FilesHashed      int64
	Groups           int64
	Redundant        int64
	BytesReclaimable int64
	FilesRemoved     int64
}

// Removal records one deletion attempt made by clean.
// Error is empty when the file was removed.
type Removal struct {
	ID        int64
	RunID     int64
	Path      string
	Digest    string
	Size      int64
	Error     string
	CreatedAt time.Time
}

// Database stores run history.
type Database interface {
	// CreateRun inserts a new run and sets its ID.
	CreateRun(run *Run) error

	// FinishRun stores the final status, finish time and counters of a run.
	FinishRun(run *Run) error

	// RecordRemoval stores one deletion attempt and sets its ID.
	RecordRemoval(r *Removal) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// ListRemovals returns the deletion attempts of a run in insertion order.
	ListRemovals(runID int64) ([]*Removal, error)

	// Close closes the database connection.
	Close() error
}
