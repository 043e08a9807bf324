package storage

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/olegiv/burplog-go/internal/errors"
	"github.com/olegiv/burplog-go/internal/logging"
	"github.com/olegiv/burplog-go/internal/traffic"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = stderrors.New("export run not found")

// Storage persists filtered entries from pipeline runs.
type Storage struct {
	db  *sql.DB
	log *logging.SecureLogger
}

// Run describes one exported pipeline run.
type Run struct {
	ID           string
	CreatedAt    time.Time
	SourcePath   string
	Format       string
	TotalRecords int
	Matched      int
	Filter       string
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when the database is locked
	busyTimeoutMs = 5000
	// SQLite works best with a single connection
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 30 * time.Minute

	// fixed width, so stored timestamps sort as text
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// New opens (creating if needed) the export database at dbPath and brings
// its schema up to date. A nil log discards migration messages.
func New(dbPath string, log *logging.SecureLogger) (*Storage, error) {
	if log == nil {
		log = logging.Nop()
	}

	// 0700: exported traffic may hold credentials
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db, log: log}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 2

func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	return s.migrateSchema(s.getSchemaVersion())
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	if err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0
	}
	return version
}

func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	s.log.Debug().Int("from", currentVersion).Int("to", currentSchemaVersion).Msg("Migrating export schema")

	migrations := []func() error{s.migrateV1, s.migrateV2}
	for v := currentVersion; v < currentSchemaVersion; v++ {
		if err := migrations[v](); err != nil {
			return fmt.Errorf("migration v%d failed: %w", v+1, err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

// migrateV1 creates the export_runs table
func (s *Storage) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS export_runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		source_path TEXT NOT NULL,
		format TEXT NOT NULL,
		total_records INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		filter TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON export_runs(created_at);
	`)
	return err
}

// migrateV2 creates the entries table
func (s *Storage) migrateV2() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS entries (
		run_id TEXT NOT NULL REFERENCES export_runs(id),
		seq INTEGER NOT NULL,
		entry_id TEXT NOT NULL DEFAULT '',
		time TEXT NOT NULL DEFAULT '',
		tool TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL DEFAULT '',
		protocol TEXT NOT NULL DEFAULT '',
		host TEXT NOT NULL DEFAULT '',
		port TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		status_code INTEGER,
		length INTEGER,
		mime_type TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		decoded_request TEXT NOT NULL DEFAULT '',
		decoded_response TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status_code);
	`)
	return err
}

// SaveRun stores run and its entries in one transaction. An empty run.ID
// gets a new UUID, a zero CreatedAt gets the current time, and Matched is
// set to len(entries).
func (s *Storage) SaveRun(run *Run, entries []traffic.Entry) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Matched = len(entries)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO export_runs (id, created_at, source_path, format, total_records, matched, filter)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), run.SourcePath, run.Format,
		run.TotalRecords, run.Matched, run.Filter,
	); err != nil {
		return errors.Wrapf(err, "failed to insert run")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entries (
			run_id, seq, entry_id, time, tool, method, protocol, host, port, url,
			status_code, length, mime_type, comment, decoded_request, decoded_response
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		if _, err := stmt.Exec(
			run.ID, i, e.ID, e.Time, e.Tool, e.Method, e.Protocol, e.Host, e.Port, e.URL,
			nullInt(e.StatusCode), nullInt(e.Length), e.MIMEType, e.Comment,
			e.DecodedRequest, e.DecodedResponse,
		); err != nil {
			return errors.Wrapf(err, "failed to insert entry %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, source_path, format, total_records, matched, filter`

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (s *Storage) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM export_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Storage) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM export_runs ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetEntries returns the entries stored for runID in their original order.
func (s *Storage) GetEntries(runID string) ([]traffic.Entry, error) {
	rows, err := s.db.Query(`
		SELECT entry_id, time, tool, method, protocol, host, port, url,
		       status_code, length, mime_type, comment, decoded_request, decoded_response
		FROM entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []traffic.Entry{}
	for rows.Next() {
		var (
			e              traffic.Entry
			status, length sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID, &e.Time, &e.Tool, &e.Method, &e.Protocol, &e.Host, &e.Port, &e.URL,
			&status, &length, &e.MIMEType, &e.Comment, &e.DecodedRequest, &e.DecodedResponse,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to scan entry")
		}
		e.StatusCode = intPtr(status)
		e.Length = intPtr(length)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CleanupOldRuns deletes runs older than days, with their entries.
// It returns the number of runs removed.
func (s *Storage) CleanupOldRuns(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM entries WHERE run_id IN (SELECT id FROM export_runs WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to cleanup old entries: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM export_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old runs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return affected, nil
}

// GetStatistics returns run and entry totals plus the stored status code
// distribution. Entries without a status code are counted under 0.
func (s *Storage) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var runs, entries int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM export_runs`).Scan(&runs); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&entries); err != nil {
		return nil, err
	}
	stats["total_runs"] = runs
	stats["total_entries"] = entries

	rows, err := s.db.Query(`SELECT COALESCE(status_code, 0), COUNT(*) FROM entries GROUP BY 1`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	dist := make(map[int]int)
	for rows.Next() {
		var code, count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		dist[code] = count
	}
	stats["status_distribution"] = dist

	return stats, rows.Err()
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt string
	)
	if err := row.Scan(&run.ID, &createdAt, &run.SourcePath, &run.Format,
		&run.TotalRecords, &run.Matched, &run.Filter); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	run.CreatedAt = ts
	return &run, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
