package store

import "fmt"

// currentSchemaVersion tracks applied migrations. Bump it and append to
// migrations when the schema changes.
const currentSchemaVersion = 1

// migrate creates the schema_version table and applies any migrations the
// database has not seen yet. Safe to run on every startup.
func (s *Store) migrate() error {
	const versionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);`
	if _, err := s.db.Exec(versionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := version + 1; v <= currentSchemaVersion; v++ {
		stmts, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration registered for version %d", v)
		}
		for _, stmt := range stmts {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("migration %d: %w", v, err)
			}
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))", v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
	}
	return nil
}

var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS passcodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			passcode TEXT NOT NULL UNIQUE,
			machine_id TEXT,
			validity_months INTEGER NOT NULL,
			expiry_date TEXT,
			is_used INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			activated_at TEXT,
			last_validated TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			passcode TEXT NOT NULL REFERENCES passcodes (passcode),
			machine_id TEXT NOT NULL,
			session_token TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS validation_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			passcode TEXT,
			machine_id TEXT,
			status TEXT,
			ip_address TEXT,
			timestamp TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_passcodes_passcode ON passcodes (passcode);`,
		`CREATE INDEX IF NOT EXISTS idx_passcodes_machine_id ON passcodes (machine_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions (session_token);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_passcode ON sessions (passcode);`,
		`CREATE INDEX IF NOT EXISTS idx_validation_logs_passcode ON validation_logs (passcode);`,
	},
}
