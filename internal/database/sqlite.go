package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"dedup-go/internal/dedup"
	"dedup-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements dedup.Database on SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock dedup.Clock
}

// NewSQLiteDatabase opens the database at path, applies pending migrations
// and returns it. path can be a file path or ":memory:".
// A nil clock selects dedup.RealClock.
func NewSQLiteDatabase(path string, clock dedup.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock dedup.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = dedup.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}
}

// OpenConnection opens a SQLite connection with foreign keys enabled.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// SQLite defaults foreign_keys to OFF
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Run operations

func (s *SQLiteDatabase) CreateRun(run *dedup.Run) error {
	roots, err := json.Marshal(run.Roots)
	if err != nil {
		return fmt.Errorf("encoding roots: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.clock.Now()
	}
	if run.Status == "" {
		run.Status = dedup.RunStatusRunning
	}

	res, err := s.db.Exec(`
		INSERT INTO runs (uuid, command, roots, algorithm, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.UUID, run.Command, string(roots), run.Algorithm, run.StartedAt.UTC(), run.Status,
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return nil
}

func (s *SQLiteDatabase) FinishRun(run *dedup.Run) error {
	if !run.FinishedAt.Valid {
		run.FinishedAt = sql.NullTime{Time: s.clock.Now(), Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?,
		    files_seen = ?, files_hashed = ?, groups_found = ?, redundant = ?,
		    bytes_reclaimable = ?, files_removed = ?
		WHERE id = ?`,
		run.FinishedAt.Time.UTC(), run.Status,
		run.FilesSeen, run.FilesHashed, run.Groups, run.Redundant,
		run.BytesReclaimable, run.FilesRemoved,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run: no run with id %d", run.ID)
	}
	return nil
}

func (s *SQLiteDatabase) ListRuns(limit int) ([]*dedup.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, uuid, command, roots, algorithm, started_at, finished_at, status,
		       files_seen, files_hashed, groups_found, redundant, bytes_reclaimable, files_removed
		FROM runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*dedup.Run
	for rows.Next() {
		var (
			r     dedup.Run
			roots string
		)
		err := rows.Scan(
			&r.ID, &r.UUID, &r.Command, &roots, &r.Algorithm, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.FilesSeen, &r.FilesHashed, &r.Groups, &r.Redundant, &r.BytesReclaimable, &r.FilesRemoved,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(roots), &r.Roots); err != nil {
			return nil, fmt.Errorf("decoding roots of run %d: %w", r.ID, err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Removal operations

func (s *SQLiteDatabase) RecordRemoval(r *dedup.Removal) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO removals (run_id, path, digest, size, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Path, r.Digest, r.Size, r.Error, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording removal of %s: %w", r.Path, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading removal id: %w", err)
	}
	r.ID = id
	return nil
}

func (s *SQLiteDatabase) ListRemovals(runID int64) ([]*dedup.Removal, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, path, digest, size, error, created_at
		FROM removals
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing removals: %w", err)
	}
	defer rows.Close()

	var out []*dedup.Removal
	for rows.Next() {
		var r dedup.Removal
		if err := rows.Scan(&r.ID, &r.RunID, &r.Path, &r.Digest, &r.Size, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning removal: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing removals: %w", err)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ dedup.Database = (*SQLiteDatabase)(nil)
