package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFileName is the history database file inside the data directory
const DBFileName = "filesync-history.db"

// Run statuses
const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Manager persists the history of sync runs
type Manager struct {
	db *sql.DB
}

// RunRecord is one sync invocation
type RunRecord struct {
	ID          int64
	Direction   string
	Source      string
	Destination string
	StartTime   time.Time
	EndTime     time.Time
	Status      string
	ScanOnly    bool
	New         int
	Modified    int
	Deleted     int
	Copied      int
	Removed     int
	Kept        int
	Failed      int
	Error       string
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// NewManager opens (or creates) the history database in dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer avoids "database is locked"
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	m := &Manager{db: db}
	if err := m.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return m, nil
}

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		scan_only INTEGER NOT NULL DEFAULT 0,
		new_files INTEGER DEFAULT 0,
		modified_files INTEGER DEFAULT 0,
		deleted_files INTEGER DEFAULT 0,
		copied INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		kept INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pair_time ON runs(source, destination, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

func validStatus(s string) bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// SaveRun records a sync run and returns its ID
func (m *Manager) SaveRun(record RunRecord) (int64, error) {
	if !validStatus(record.Status) {
		return 0, fmt.Errorf("invalid status: %s", record.Status)
	}
	if record.Direction == "" {
		return 0, fmt.Errorf("direction cannot be empty")
	}

	res, err := m.db.Exec(`
		INSERT INTO runs (direction, source, destination, start_time, end_time, status, scan_only,
			new_files, modified_files, deleted_files, copied, removed, kept, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Direction,
		record.Source,
		record.Destination,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.ScanOnly,
		record.New,
		record.Modified,
		record.Deleted,
		record.Copied,
		record.Removed,
		record.Kept,
		record.Failed,
		record.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run record: %w", err)
	}

	return res.LastInsertId()
}

const selectRuns = `
	SELECT id, direction, source, destination, start_time, end_time, status, scan_only,
		new_files, modified_files, deleted_files, copied, removed, kept, failed, error
	FROM runs`

// History returns the most recent runs across all pairs, newest first
func (m *Manager) History(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return m.query(selectRuns+` ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
}

// PairHistory returns the most recent runs between source and destination
func (m *Manager) PairHistory(source, destination string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return m.query(selectRuns+`
		WHERE source = ? AND destination = ?
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, source, destination, limit)
}

// LastSuccess returns the newest successful run for the pair, or nil
func (m *Manager) LastSuccess(source, destination string) (*RunRecord, error) {
	records, err := m.query(selectRuns+`
		WHERE source = ? AND destination = ? AND status = ? AND scan_only = 0
		ORDER BY start_time DESC, id DESC
		LIMIT 1`, source, destination, StatusSuccess)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (m *Manager) query(query string, args ...any) ([]RunRecord, error) {
	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var errText sql.NullString
		if err := rows.Scan(
			&r.ID,
			&r.Direction,
			&r.Source,
			&r.Destination,
			&r.StartTime,
			&r.EndTime,
			&r.Status,
			&r.ScanOnly,
			&r.New,
			&r.Modified,
			&r.Deleted,
			&r.Copied,
			&r.Removed,
			&r.Kept,
			&r.Failed,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Error = errText.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
