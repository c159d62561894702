// Package workspace persists checkpoint manifests across sessions in
// a SQLite database, so a named save point survives process restarts
// even though the overlay state itself is session-local.
package workspace

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrManifestNotFound indicates the requested manifest doesn't exist.
var ErrManifestNotFound = errors.New("manifest not found")

// Manifest records what a checkpoint covered: which classes were
// replaced and deleted when it was taken.
type Manifest struct {
	Name     string    `json:"name"`
	Archive  string    `json:"archive"`
	Created  time.Time `json:"created"`
	Replaced []string  `json:"replaced,omitempty"`
	Deleted  []string  `json:"deleted,omitempty"`
}

// Store handles SQLite storage for checkpoint manifests.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the manifest database at dbPath, creating
// parent directories as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS manifests (
		archive TEXT NOT NULL,
		name TEXT NOT NULL,
		created TEXT NOT NULL,
		data JSON NOT NULL,
		PRIMARY KEY (archive, name)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save upserts a manifest keyed by archive path and checkpoint name.
func (s *Store) Save(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO manifests (archive, name, created, data) VALUES (?, ?, ?, ?)`,
		m.Archive, m.Name, m.Created.UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return fmt.Errorf("saving manifest %s: %w", m.Name, err)
	}
	return nil
}

// Load returns the manifest for a checkpoint name under an archive.
func (s *Store) Load(archive, name string) (*Manifest, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM manifests WHERE archive = ? AND name = ?`,
		archive, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, ErrManifestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading manifest %s: %w", name, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", name, err)
	}
	return &m, nil
}

// List returns all manifests for an archive, oldest first.
func (s *Store) List(archive string) ([]*Manifest, error) {
	rows, err := s.db.Query(
		`SELECT data FROM manifests WHERE archive = ? ORDER BY created, name`,
		archive,
	)
	if err != nil {
		return nil, fmt.Errorf("listing manifests: %w", err)
	}
	defer rows.Close()

	var out []*Manifest
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning manifest: %w", err)
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding manifest: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Delete removes a manifest, reporting whether it existed.
func (s *Store) Delete(archive, name string) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM manifests WHERE archive = ? AND name = ?`,
		archive, name,
	)
	if err != nil {
		return false, fmt.Errorf("deleting manifest %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
