package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"constitution/internal/artifact"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// SqlStore implements Store with SQLite. Payloads are the artifact's JSON
// encoding; the (kind, id) pair is the primary identity.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist. The path ":memory:"
// opens a private in-memory database.
func Open(path string) (*SqlStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" to a single database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create v1 schema: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

func (s *SqlStore) Put(a artifact.Artifact) (string, error) {
	if err := checkKey(a); err != nil {
		return "", err
	}
	payload, err := artifact.Encode(a)
	if err != nil {
		return "", err
	}
	ts := nowUTC()
	_, err = s.db.Exec(`
		INSERT INTO artifacts(kind, id, payload, created_at, updated_at) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(a.ArtifactKind()), a.ArtifactID(), payload, ts, ts)
	if err != nil {
		return "", fmt.Errorf("put %s %s: %w", a.ArtifactKind(), a.ArtifactID(), err)
	}
	return a.ArtifactID(), nil
}

func (s *SqlStore) Get(kind artifact.Kind, id string) (artifact.Artifact, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM artifacts WHERE kind = ? AND id = ?", string(kind), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return artifact.Decode(kind, payload)
}

func (s *SqlStore) Has(kind artifact.Kind, id string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM artifacts WHERE kind = ? AND id = ?", string(kind), id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has %s %s: %w", kind, id, err)
	}
	return n > 0, nil
}

func (s *SqlStore) ListIDs(kind artifact.Kind) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM artifacts WHERE kind = ? ORDER BY seq", string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SqlStore) ResolveMany(kind artifact.Kind, ids []string) ([]artifact.Artifact, []ResolveError, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(kind))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.Query("SELECT id, payload FROM artifacts WHERE kind = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", kind, err)
	}
	defer rows.Close()

	byID := make(map[string]artifact.Artifact, len(ids))
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		a, err := artifact.Decode(kind, payload)
		if err != nil {
			return nil, nil, err
		}
		byID[id] = a
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", kind, err)
	}

	var found []artifact.Artifact
	var missing []ResolveError
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			found = append(found, a)
			continue
		}
		missing = append(missing, ResolveError{ArtifactType: kind, ArtifactID: id})
	}
	return found, missing, nil
}
