package testutil

import (
	"sync"

	"dedup-go/internal/dedup"
)

// LogRecord is one call captured by RecordingLogger.
type LogRecord struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger is a dedup.Logger that keeps every call for inspection.
// It is safe for concurrent use.
type RecordingLogger struct {
	mu      sync.Mutex
	records []LogRecord
}

func (l *RecordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, LogRecord{Level: level, Msg: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }

// Records returns the captured calls at the given level, or every call
// when level is empty.
func (l *RecordingLogger) Records(level string) []LogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogRecord
	for _, r := range l.records {
		if level == "" || r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

var _ dedup.Logger = (*RecordingLogger)(nil)
