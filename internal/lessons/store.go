package lessons

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ckg/internal/logging"
	"ckg/internal/storage"
)

const lessonSchemaVersion = 1

const lessonSchema = `
CREATE TABLE lessons (
	id          TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	tags        TEXT NOT NULL,
	files       TEXT NOT NULL,
	score       REAL NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1,
	source      TEXT NOT NULL,
	commit_hash TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX idx_lessons_active ON lessons(active, score);
CREATE INDEX idx_lessons_commit ON lessons(commit_hash);

CREATE TABLE test_runs (
	id     TEXT PRIMARY KEY,
	passed INTEGER NOT NULL,
	files  TEXT NOT NULL,
	run_at INTEGER NOT NULL
);
`

// Store persists lessons and test runs in their own database file.
type Store struct {
	db *storage.DB
}

// OpenStore opens the lesson database at dbPath.
func OpenStore(dbPath string, logger *logging.Logger) (*Store, error) {
	db, err := storage.Open(dbPath, lessonSchema, lessonSchemaVersion, logger)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces a lesson.
func (s *Store) Save(l *Lesson) error {
	tags, _ := json.Marshal(l.Tags)
	files, _ := json.Marshal(l.Files)
	active := 0
	if l.Active {
		active = 1
	}
	_, err := s.db.Conn().Exec(`INSERT OR REPLACE INTO lessons
		(id, text, tags, files, score, active, source, commit_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Text, string(tags), string(files), l.Score, active,
		l.Source, l.CommitHash, l.CreatedAt.UnixNano(), l.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save lesson %s: %w", l.ID, err)
	}
	return nil
}

// Get returns the lesson with the given ID, or nil if absent.
func (s *Store) Get(id string) (*Lesson, error) {
	row := s.db.Conn().QueryRow(`SELECT id, text, tags, files, score, active,
		source, commit_hash, created_at, updated_at FROM lessons WHERE id = ?`, id)
	l, err := scanLesson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// List returns all lessons, active first, then by descending score.
// Inactive lessons are retained for audit and listed last.
func (s *Store) List() ([]Lesson, error) {
	return s.query(`SELECT id, text, tags, files, score, active, source,
		commit_hash, created_at, updated_at FROM lessons
		ORDER BY active DESC, score DESC, created_at DESC`)
}

// Active returns active lessons by descending score. A deterministic
// secondary order on creation time keeps injection stable.
func (s *Store) Active() ([]Lesson, error) {
	return s.query(`SELECT id, text, tags, files, score, active, source,
		commit_hash, created_at, updated_at FROM lessons
		WHERE active = 1 ORDER BY score DESC, created_at DESC, id`)
}

// ByCommit returns the lesson extracted from the given commit, if any.
func (s *Store) ByCommit(hash string) (*Lesson, error) {
	row := s.db.Conn().QueryRow(`SELECT id, text, tags, files, score, active,
		source, commit_hash, created_at, updated_at FROM lessons
		WHERE commit_hash = ? LIMIT 1`, hash)
	l, err := scanLesson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// RecordTestRun appends one test outcome.
func (s *Store) RecordTestRun(id string, passed bool, files []string, at time.Time) error {
	blob, _ := json.Marshal(files)
	p := 0
	if passed {
		p = 1
	}
	_, err := s.db.Conn().Exec(`INSERT INTO test_runs (id, passed, files, run_at)
		VALUES (?, ?, ?, ?)`, id, p, string(blob), at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record test run: %w", err)
	}
	return nil
}

// LastTestRun returns the most recent test outcome for overlap with the
// given files, or nil when none exists.
func (s *Store) LastTestRun() (passed bool, files []string, ok bool, err error) {
	row := s.db.Conn().QueryRow(`SELECT passed, files FROM test_runs
		ORDER BY run_at DESC LIMIT 1`)
	var p int
	var blob string
	if err := row.Scan(&p, &blob); err != nil {
		if err == sql.ErrNoRows {
			return false, nil, false, nil
		}
		return false, nil, false, err
	}
	if err := json.Unmarshal([]byte(blob), &files); err != nil {
		return false, nil, false, err
	}
	return p != 0, files, true, nil
}

func (s *Store) query(q string, args ...interface{}) ([]Lesson, error) {
	rows, err := s.db.Conn().Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLesson(row rowScanner) (*Lesson, error) {
	var l Lesson
	var tags, files string
	var active int
	var created, updated int64
	err := row.Scan(&l.ID, &l.Text, &tags, &files, &l.Score, &active,
		&l.Source, &l.CommitHash, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &l.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode lesson tags: %w", err)
	}
	if err := json.Unmarshal([]byte(files), &l.Files); err != nil {
		return nil, fmt.Errorf("failed to decode lesson files: %w", err)
	}
	l.Active = active != 0
	l.CreatedAt = time.Unix(0, created).UTC()
	l.UpdatedAt = time.Unix(0, updated).UTC()
	return &l, nil
}
