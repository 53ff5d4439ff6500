package database

import (
	"fmt"
	"os"
	"path/filepath"

	"dedup-go/internal/config"
	"dedup-go/internal/dedup"
)

// DatabaseFileName is the file created under data_dir for type "sqlite".
const DatabaseFileName = "dedup.db"

// NewDatabaseFromConfig creates the run-history database selected by cfg.
// Type "none" returns a nil Database and no error; callers skip recording.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock dedup.Clock) (dedup.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, DatabaseFileName), clock)
	case "memory":
		return open(":memory:", clock)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// open keeps a failed open from becoming a non-nil interface holding a nil pointer.
func open(path string, clock dedup.Clock) (dedup.Database, error) {
	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	return db, nil
}
