package storage

import (
	"database/sql"
	"fmt"
	"time"

	"ckg/internal/chunk"
	"ckg/internal/logging"
	"ckg/internal/signal"
)

const graphSchemaVersion = 1

const graphSchema = `
CREATE TABLE units (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	symbol      TEXT NOT NULL DEFAULT '',
	language    TEXT NOT NULL,
	hash        TEXT NOT NULL,
	vector      BLOB,
	degraded    INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL,
	mod_time    INTEGER NOT NULL
);
CREATE INDEX idx_units_path ON units(path);
CREATE INDEX idx_units_hash ON units(hash);

CREATE TABLE edges (
	from_id TEXT NOT NULL,
	to_id   TEXT NOT NULL,
	kind    TEXT NOT NULL,
	weight  REAL NOT NULL,
	PRIMARY KEY (from_id, to_id, kind)
);
CREATE INDEX idx_edges_kind ON edges(kind);

CREATE TABLE snapshot_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// GraphStore persists the unit set and the raw per-kind edges. The
// fused graph itself is not stored: fusion is deterministic, so the
// snapshot is rebuilt from raw signals on load.
type GraphStore struct {
	db *DB
}

// OpenGraphStore opens the graph database at dbPath.
func OpenGraphStore(dbPath string, logger *logging.Logger) (*GraphStore, error) {
	db, err := Open(dbPath, graphSchema, graphSchemaVersion, logger)
	if err != nil {
		return nil, err
	}
	return &GraphStore{db: db}, nil
}

// Close closes the store.
func (s *GraphStore) Close() error { return s.db.Close() }

// SaveSnapshot replaces the persisted unit set and raw edges in one
// transaction, so readers of the file never see a half-written state.
func (s *GraphStore) SaveSnapshot(units []chunk.Unit, edges []signal.Edge) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM units`); err != nil {
			return fmt.Errorf("failed to clear units: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM edges`); err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}

		unitStmt, err := tx.Prepare(`INSERT INTO units
			(id, path, start_line, end_line, symbol, language, hash, vector, degraded, source, mod_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer unitStmt.Close()
		for _, u := range units {
			degraded := 0
			if u.Degraded {
				degraded = 1
			}
			_, err := unitStmt.Exec(u.ID, u.Path, u.StartLine, u.EndLine, u.Symbol,
				string(u.Language), u.Hash, EncodeVector(u.Vector), degraded,
				u.Source, u.ModTime.UnixNano())
			if err != nil {
				return fmt.Errorf("failed to insert unit %s: %w", u.ID, err)
			}
		}

		edgeStmt, err := tx.Prepare(`INSERT OR REPLACE INTO edges
			(from_id, to_id, kind, weight) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer edgeStmt.Close()
		for _, e := range edges {
			if _, err := edgeStmt.Exec(e.From, e.To, string(e.Kind), e.Weight); err != nil {
				return fmt.Errorf("failed to insert edge %s->%s: %w", e.From, e.To, err)
			}
		}

		_, err = tx.Exec(`INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES ('saved_at', ?)`,
			time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

// LoadUnits returns all persisted units ordered by ID.
func (s *GraphStore) LoadUnits() ([]chunk.Unit, error) {
	rows, err := s.db.conn.Query(`SELECT id, path, start_line, end_line, symbol,
		language, hash, vector, degraded, source, mod_time FROM units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []chunk.Unit
	for rows.Next() {
		var u chunk.Unit
		var lang string
		var blob []byte
		var degraded int
		var modNanos int64
		if err := rows.Scan(&u.ID, &u.Path, &u.StartLine, &u.EndLine, &u.Symbol,
			&lang, &u.Hash, &blob, &degraded, &u.Source, &modNanos); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		u.Language = chunk.Language(lang)
		u.Degraded = degraded != 0
		u.ModTime = time.Unix(0, modNanos).UTC()
		if u.Vector, err = DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("failed to decode vector for %s: %w", u.ID, err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// LoadEdges returns all persisted raw edges grouped by signal kind.
func (s *GraphStore) LoadEdges() (map[signal.Kind][]signal.Edge, error) {
	rows, err := s.db.conn.Query(`SELECT from_id, to_id, kind, weight
		FROM edges ORDER BY kind, from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[signal.Kind][]signal.Edge)
	for rows.Next() {
		var e signal.Edge
		var kind string
		if err := rows.Scan(&e.From, &e.To, &kind, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Kind = signal.Kind(kind)
		edges[e.Kind] = append(edges[e.Kind], e)
	}
	return edges, rows.Err()
}

// VectorCache returns the hash->vector map used to skip embedding calls
// for unchanged fragments on the next index pass.
func (s *GraphStore) VectorCache() (map[string][]float32, error) {
	rows, err := s.db.conn.Query(`SELECT hash, vector FROM units WHERE degraded = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[string][]float32)
	for rows.Next() {
		var hash string
		var blob []byte
		if err := rows.Scan(&hash, &blob); err != nil {
			return nil, err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		cache[hash] = vec
	}
	return cache, rows.Err()
}
