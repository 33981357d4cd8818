// Package store persists the working document, named settings profiles and
// the history of computed jobs in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Simplici0/printcost/internal/settings"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// New returns a Store backed by db. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// CurrentDocument returns the working document.
func (s *Store) CurrentDocument() (settings.Document, error) {
	var raw string
	err := s.db.QueryRow(`SELECT document_json FROM documents WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Document{}, ErrNotFound
	}
	if err != nil {
		return settings.Document{}, fmt.Errorf("query current document: %w", err)
	}
	return decodeDocument(raw)
}

// SaveDocument replaces the working document.
func (s *Store) SaveDocument(doc settings.Document) error {
	return saveDocument(s.db, doc)
}

func saveDocument(ex execer, doc settings.Document) error {
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = ex.Exec(`
		INSERT INTO documents (id, document_json, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			document_json = excluded.document_json,
			updated_at = CURRENT_TIMESTAMP
	`, raw)
	if err != nil {
		return fmt.Errorf("save current document: %w", err)
	}
	return nil
}

// Profile is a named settings document.
type Profile struct {
	ID        int64
	Name      string
	UpdatedAt string
}

// ListProfiles returns all profiles ordered by name.
func (s *Store) ListProfiles() ([]Profile, error) {
	rows, err := s.db.Query(`
		SELECT id, name, updated_at
		FROM profiles
		ORDER BY name COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// SaveProfile creates or replaces the profile called name.
func (s *Store) SaveProfile(name string, doc settings.Document) error {
	if name == "" {
		return errors.New("profile name is required")
	}

	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO profiles (name, document_json)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document_json = excluded.document_json,
			updated_at = CURRENT_TIMESTAMP
	`, name, raw)
	if err != nil {
		return fmt.Errorf("save profile %q: %w", name, err)
	}
	return nil
}

// LoadProfile returns the document stored under name.
func (s *Store) LoadProfile(name string) (settings.Document, error) {
	var raw string
	err := s.db.QueryRow(`SELECT document_json FROM profiles WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Document{}, ErrNotFound
	}
	if err != nil {
		return settings.Document{}, fmt.Errorf("query profile %q: %w", name, err)
	}
	return decodeDocument(raw)
}

// DeleteProfile removes the profile called name.
func (s *Store) DeleteProfile(name string) error {
	result, err := s.db.Exec(`DELETE FROM profiles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeDocument(doc settings.Document) (string, error) {
	if doc.Spools == nil {
		doc.Spools = []settings.Spool{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(raw), nil
}

func decodeDocument(raw string) (settings.Document, error) {
	var doc settings.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return settings.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
