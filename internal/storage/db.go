// Package storage provides the durable SQLite stores. Graph, lessons,
// and audit state live in separate database files keyed by stable
// identifiers, so losing one store never invalidates the others.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"ckg/internal/errors"
	"ckg/internal/logging"
)

// DB is a SQLite connection with transaction helpers.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	path   string
}

// Open opens or creates the SQLite database at dbPath and ensures the
// given schema is applied. The parent directory is created if needed.
func Open(dbPath, schema string, schemaVersion int, logger *logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, path: dbPath}
	if err := db.ensureSchema(schema, schemaVersion); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying sql.DB.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ensureSchema applies the schema on a fresh database and verifies the
// stored version on an existing one. A version mismatch is a corrupt
// store: the caller keeps serving its prior snapshot instead.
func (db *DB) ensureSchema(schema string, version int) error {
	_, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err = db.conn.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		return db.WithTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(schema); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
				return fmt.Errorf("failed to record schema version: %w", err)
			}
			db.logger.Debug("initialized store", map[string]interface{}{
				"path":    db.path,
				"version": version,
			})
			return nil
		})
	}
	if err != nil {
		return errors.Wrap(errors.StoreCorrupt, "failed to read schema version", err)
	}
	if current != version {
		return errors.New(errors.StoreCorrupt,
			fmt.Sprintf("store %s has schema version %d, expected %d", db.path, current, version))
	}
	return nil
}
