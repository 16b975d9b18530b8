package booking

import (
	"database/sql"
	"fmt"
)

// Migrations are embedded and applied in order at Open; the
// schema_migrations table makes reopening a store a no-op.
var migrations = []struct {
	version string
	sql     string
}{
	{
		version: "001_appointments",
		sql: `
CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	contact_number TEXT NOT NULL,
	user_name TEXT NOT NULL,
	slot_time TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'confirmed' CHECK (status IN ('confirmed', 'cancelled')),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_appointments_contact ON appointments(contact_number);

CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_confirmed_slot
	ON appointments(slot_time) WHERE status = 'confirmed';
`,
	},
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("booking: create migrations table: %w", err)
	}

	for _, migration := range migrations {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", migration.version).Scan(&count); err != nil {
			return fmt.Errorf("booking: check migration %s: %w", migration.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.Exec(migration.sql); err != nil {
			return fmt.Errorf("booking: apply migration %s: %w", migration.version, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			return fmt.Errorf("booking: record migration %s: %w", migration.version, err)
		}
	}
	return nil
}
