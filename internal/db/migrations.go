package db

import (
	"database/sql"
	"fmt"
)

// migration brings a database created by an older build up to date. Each
// migration must be idempotent. Append new migrations at the end.
type migration struct {
	name string
	run  func(db *sql.DB) error
}

var migrations = []migration{
	// Databases from before claims recorded when they were decided.
	{"claims.decided_at", addColumn("claims", "decided_at", "TEXT")},
	// Databases from before items carried a category.
	{"items.category", addColumn("items", "category", "TEXT NOT NULL DEFAULT ''")},
	// At most one pending claim per claimant and item, and at most one
	// approved claim per item. Creation fails if existing rows violate
	// either rule, which must then be resolved by hand.
	{"claims.unique_pending", exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_pending_per_claimant
		     ON claims(item_id, claimed_by) WHERE status = 'pending'`)},
	{"claims.unique_approved", exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_approved_per_item
		     ON claims(item_id) WHERE status = 'approved'`)},
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	for i, m := range migrations {
		if err := m.run(db); err != nil {
			return fmt.Errorf("running migration %d (%s): %w", i+1, m.name, err)
		}
	}
	return nil
}

func exec(stmt string) func(db *sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.Exec(stmt)
		return err
	}
}

// addColumn adds a column unless the table already has it.
func addColumn(table, column, decl string) func(db *sql.DB) error {
	return func(db *sql.DB) error {
		exists, err := hasColumn(db, table, column)
		if err != nil || exists {
			return err
		}
		_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
		return err
	}
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
