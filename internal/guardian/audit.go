package guardian

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ckg/internal/logging"
	"ckg/internal/storage"
)

// Status is the lifecycle state of a tracked commit.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusVerified            Status = "VERIFIED"
	StatusBypassed            Status = "BYPASSED"
	StatusVerifiedRetroactive Status = "VERIFIED_RETROACTIVE"
)

// CheckResult is one expected gate check on a commit and whether it
// actually ran.
type CheckResult struct {
	Name     string `json:"name"`
	Executed bool   `json:"executed"`
}

// CommitRecord is the audit entry for one commit. Checks lists the
// gate checks configured when the commit was recorded, in manifest
// order.
type CommitRecord struct {
	Hash       string        `json:"hash"`
	TreeHash   string        `json:"treeHash"`
	Status     Status        `json:"status"`
	Bypassed   bool          `json:"bypassed"`
	Checks     []CheckResult `json:"checks,omitempty"`
	Message    string        `json:"message,omitempty"`
	Note       string        `json:"note,omitempty"`
	RecordedAt time.Time     `json:"recordedAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

const auditSchemaVersion = 2

const auditSchema = `
CREATE TABLE commit_records (
	hash        TEXT PRIMARY KEY,
	tree_hash   TEXT NOT NULL,
	status      TEXT NOT NULL,
	bypassed    INTEGER NOT NULL DEFAULT 0,
	checks      TEXT NOT NULL DEFAULT '[]',
	message     TEXT NOT NULL DEFAULT '',
	note        TEXT NOT NULL DEFAULT '',
	recorded_at INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX idx_records_status ON commit_records(status);
`

// AuditStore persists commit records in their own database, alongside
// the append-only bypass log.
type AuditStore struct {
	db         *storage.DB
	bypassPath string
}

// OpenAuditStore opens the audit database and binds the bypass log.
func OpenAuditStore(dbPath, bypassLogPath string, logger *logging.Logger) (*AuditStore, error) {
	db, err := storage.Open(dbPath, auditSchema, auditSchemaVersion, logger)
	if err != nil {
		return nil, err
	}
	return &AuditStore{db: db, bypassPath: bypassLogPath}, nil
}

// Close closes the store.
func (s *AuditStore) Close() error { return s.db.Close() }

// SaveRecord inserts or updates a commit record.
func (s *AuditStore) SaveRecord(r *CommitRecord) error {
	bypassed := 0
	if r.Bypassed {
		bypassed = 1
	}
	checks := []byte("[]")
	if len(r.Checks) > 0 {
		var err error
		checks, err = json.Marshal(r.Checks)
		if err != nil {
			return fmt.Errorf("failed to encode check results for %s: %w", r.Hash, err)
		}
	}
	_, err := s.db.Conn().Exec(`INSERT OR REPLACE INTO commit_records
		(hash, tree_hash, status, bypassed, checks, message, note, recorded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Hash, r.TreeHash, string(r.Status), bypassed, string(checks), r.Message, r.Note,
		r.RecordedAt.UnixNano(), r.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save commit record %s: %w", r.Hash, err)
	}
	return nil
}

// GetRecord returns the record for a commit, or nil if untracked.
func (s *AuditStore) GetRecord(hash string) (*CommitRecord, error) {
	row := s.db.Conn().QueryRow(`SELECT hash, tree_hash, status, bypassed,
		checks, message, note, recorded_at, updated_at FROM commit_records WHERE hash = ?`, hash)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListRecords returns all records, newest first.
func (s *AuditStore) ListRecords() ([]CommitRecord, error) {
	return s.queryRecords(`SELECT hash, tree_hash, status, bypassed, checks,
		message, note, recorded_at, updated_at FROM commit_records
		ORDER BY recorded_at DESC, hash`)
}

// ListByStatus returns records in the given state, oldest first, so
// reconciliation works through the backlog in order.
func (s *AuditStore) ListByStatus(status Status) ([]CommitRecord, error) {
	return s.queryRecords(`SELECT hash, tree_hash, status, bypassed, checks,
		message, note, recorded_at, updated_at FROM commit_records
		WHERE status = ? ORDER BY recorded_at, hash`, string(status))
}

func (s *AuditStore) queryRecords(q string, args ...interface{}) ([]CommitRecord, error) {
	rows, err := s.db.Conn().Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit records: %w", err)
	}
	defer rows.Close()

	var out []CommitRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*CommitRecord, error) {
	var r CommitRecord
	var status, checks string
	var bypassed int
	var recorded, updated int64
	err := row.Scan(&r.Hash, &r.TreeHash, &status, &bypassed, &checks,
		&r.Message, &r.Note, &recorded, &updated)
	if err != nil {
		return nil, err
	}
	if checks != "" && checks != "[]" {
		if err := json.Unmarshal([]byte(checks), &r.Checks); err != nil {
			return nil, fmt.Errorf("corrupt check results for %s: %w", r.Hash, err)
		}
	}
	r.Status = Status(status)
	r.Bypassed = bypassed != 0
	r.RecordedAt = time.Unix(0, recorded).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return &r, nil
}

// BypassEvent is one line of the append-only bypass log.
type BypassEvent struct {
	Hash       string    `json:"hash"`
	TreeHash   string    `json:"treeHash"`
	Message    string    `json:"message,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// AppendBypass appends one event to the bypass log. The log is only
// ever appended to; reconciliation rewrites records, never the log.
func (s *AuditStore) AppendBypass(ev BypassEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.bypassPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open bypass log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append bypass log: %w", err)
	}
	return nil
}

// ReadBypassLog returns all logged bypass events in append order.
func (s *AuditStore) ReadBypassLog() ([]BypassEvent, error) {
	data, err := os.ReadFile(s.bypassPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read bypass log: %w", err)
	}
	var events []BypassEvent
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if i > start {
				var ev BypassEvent
				if err := json.Unmarshal(data[start:i], &ev); err != nil {
					return nil, fmt.Errorf("corrupt bypass log line: %w", err)
				}
				events = append(events, ev)
			}
			start = i + 1
		}
	}
	return events, nil
}
