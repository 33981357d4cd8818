package seed

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Simplici0/printcost/internal/settings"
)

// DefaultProfileName is the profile created on first start.
const DefaultProfileName = "Default"

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	defaults, err := json.Marshal(settings.Default())
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, fmt.Errorf("encode default document: %w", err)
	}

	if err := ensureCurrentDocument(tx, string(defaults), &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDefaultProfile(tx, string(defaults), &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureCurrentDocument(tx *sql.Tx, raw string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM documents WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check current document existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO documents (id, document_json) VALUES (1, ?)`, raw); err != nil {
		return fmt.Errorf("insert current document: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureDefaultProfile(tx *sql.Tx, raw string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM profiles WHERE name = ? LIMIT 1)`, DefaultProfileName).Scan(&exists); err != nil {
		return fmt.Errorf("check default profile existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO profiles (name, document_json) VALUES (?, ?)`, DefaultProfileName, raw); err != nil {
		return fmt.Errorf("insert default profile: %w", err)
	}
	stats.Inserts++
	return nil
}
