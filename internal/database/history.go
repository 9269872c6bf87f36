package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/digestfetch/internal/model"
)

// FileName is the database file created inside the history directory.
const FileName = "history.db"

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores download runs and per-digest outcomes in SQLite.
// It is a ledger only: nothing reads it to decide what to download.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout lets a concurrent "history" call wait for a running download.
	dsn := dbPath + "?mode=rw&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		archive_url TEXT NOT NULL,
		out_dir TEXT NOT NULL,
		username TEXT NOT NULL,
		list_mode TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		error TEXT,
		stored INTEGER DEFAULT 0,
		missing INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		filtered INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS digests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		ref TEXT NOT NULL,
		status TEXT NOT NULL,
		path TEXT,
		size INTEGER DEFAULT 0,
		checksum TEXT,
		error TEXT,
		recorded_at TEXT NOT NULL,
		UNIQUE(run_id, ref)
	);

	CREATE INDEX IF NOT EXISTS idx_digests_ref ON digests(ref);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// BeginRun inserts the run row and sets report.ID.
func (h *HistoryDB) BeginRun(ctx context.Context, report *model.RunReport) error {
	res, err := h.db.ExecContext(ctx, `
	INSERT INTO runs (archive_url, out_dir, username, list_mode, started_at)
	VALUES (?, ?, ?, ?, ?)
	`,
		report.ArchiveURL,
		report.OutDir,
		report.Username,
		report.ListMode,
		formatTimestamp(report.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}
	report.ID = id
	return nil
}

// RecordOutcome stores the outcome of one digest.
// Recording the same reference twice for a run keeps the latest outcome.
func (h *HistoryDB) RecordOutcome(ctx context.Context, runID int64, o model.DigestOutcome) error {
	_, err := h.db.ExecContext(ctx, `
	INSERT INTO digests (run_id, ref, status, path, size, checksum, error, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, ref) DO UPDATE SET
		status = excluded.status,
		path = excluded.path,
		size = excluded.size,
		checksum = excluded.checksum,
		error = excluded.error,
		recorded_at = excluded.recorded_at
	`,
		runID,
		o.Ref,
		o.Status.String(),
		o.Path,
		o.Size,
		o.Checksum,
		o.Error,
		formatTimestamp(o.At),
	)
	if err != nil {
		return fmt.Errorf("failed to record digest %s: %w", o.Ref, err)
	}
	return nil
}

// FinishRun stores the end time, error and outcome counts of a run.
func (h *HistoryDB) FinishRun(ctx context.Context, report *model.RunReport) error {
	s := report.Summary()
	_, err := h.db.ExecContext(ctx, `
	UPDATE runs SET finished_at = ?, error = ?, stored = ?, missing = ?, failed = ?, filtered = ?, bytes = ?
	WHERE id = ?
	`,
		formatTimestamp(report.FinishedAt),
		report.Error,
		s.Stored, s.Missing, s.Failed, s.Filtered, s.Bytes,
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", report.ID, err)
	}
	return nil
}

// RunRecord is a run without its outcomes, as listed by ListRuns.
type RunRecord struct {
	ID         int64
	ArchiveURL string
	OutDir     string
	Username   string
	ListMode   string
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
	Summary    model.RunSummary
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, archive_url, out_dir, username, list_mode, started_at, finished_at, error,
		stored, missing, failed, filtered, bytes
	FROM runs
	ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		var (
			r                   RunRecord
			started             string
			finished, errorText sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ArchiveURL, &r.OutDir, &r.Username, &r.ListMode,
			&started, &finished, &errorText,
			&r.Summary.Stored, &r.Summary.Missing, &r.Summary.Failed, &r.Summary.Filtered, &r.Summary.Bytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished.String)
		r.Error = errorText.String
		r.Summary.Total = r.Summary.Stored + r.Summary.Missing + r.Summary.Failed + r.Summary.Filtered
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads a run with all its outcomes in reference order.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*model.RunReport, error) {
	var (
		report              model.RunReport
		started             string
		finished, errorText sql.NullString
	)
	err := h.db.QueryRowContext(ctx, `
	SELECT id, archive_url, out_dir, username, list_mode, started_at, finished_at, error
	FROM runs WHERE id = ?
	`, id).Scan(&report.ID, &report.ArchiveURL, &report.OutDir, &report.Username, &report.ListMode,
		&started, &finished, &errorText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}
	report.StartedAt = parseTimestamp(started)
	report.FinishedAt = parseTimestamp(finished.String)
	report.Error = errorText.String

	rows, err := h.db.QueryContext(ctx, `
	SELECT ref, status, path, size, checksum, error, recorded_at
	FROM digests WHERE run_id = ?
	ORDER BY ref
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get digests of run %d: %w", id, err)
	}
	defer rows.Close()

	report.Outcomes = make([]model.DigestOutcome, 0)
	for rows.Next() {
		var (
			o                          model.DigestOutcome
			status, at                 string
			path, checksum, outcomeErr sql.NullString
		)
		if err := rows.Scan(&o.Ref, &status, &path, &o.Size, &checksum, &outcomeErr, &at); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		if o.Status, err = model.ParseOutcomeStatus(status); err != nil {
			return nil, err
		}
		o.Path = path.String
		o.Checksum = checksum.String
		o.Error = outcomeErr.String
		o.At = parseTimestamp(at)
		report.Outcomes = append(report.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &report, nil
}

// formatTimestamp stores times as UTC RFC 3339 with nanoseconds.
// Zero times are stored as empty strings.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp. Unparsable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
