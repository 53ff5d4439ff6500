package app

import "dedup-go/internal/dedup"

// Operation tracks one list or clean invocation. It is created in memory
// with ID=0 and only gets an ID once written to the run-history database.
type Operation struct {
	dedup.Run
}

// NewOperation creates an in-memory operation in the running state. It
// stays running in the history database until Finish or Fail is called.
func NewOperation(uuid, command string, roots []string, algorithm string) *Operation {
	return &Operation{Run: dedup.Run{
		UUID:      uuid,
		Command:   command,
		Roots:     append([]string(nil), roots...),
		Algorithm: algorithm,
		Status:    dedup.RunStatusRunning,
	}}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Finish marks a still-running operation as successful.
func (op *Operation) Finish() {
	if op.Status == dedup.RunStatusRunning {
		op.Status = dedup.RunStatusSuccess
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = dedup.RunStatusError
}

// ApplyStats copies the counters of a completed search.
func (op *Operation) ApplyStats(s dedup.Stats) {
	op.FilesSeen = s.FilesSeen
	op.FilesHashed = s.FilesHashed
	op.Groups = s.Groups
	op.Redundant = s.Redundant
	op.BytesReclaimable = s.Reclaimable
}

// ApplyReport copies the outcome of a cleanup pass.
func (op *Operation) ApplyReport(r *dedup.CleanReport) {
	if r != nil {
		op.FilesRemoved = int64(len(r.Removed))
	}
}
