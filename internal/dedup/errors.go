package dedup

import "fmt"

// IoError reports a failure to read one file. The pipeline treats it as
// "drop this entry" and carries on with the rest of the run.
type IoError struct {
	Op   string // "open", "read" or "stat"
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
