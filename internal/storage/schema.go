package storage

import (
	"database/sql"
	"fmt"
)

// createSchema creates the ledger table if it does not exist yet. The DDL is
// portable between SQLite and PostgreSQL.
func createSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS bulk_jobs (
    id           TEXT PRIMARY KEY,
    external_id  TEXT NOT NULL DEFAULT '',
    state        TEXT NOT NULL,
    phase        INTEGER NOT NULL,
    records      INTEGER NOT NULL DEFAULT 0,
    source       TEXT NOT NULL DEFAULT '',
    submitted_at BIGINT NOT NULL,
    updated_at   BIGINT NOT NULL,
    expires_at   BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bulk_jobs_phase ON bulk_jobs(phase, expires_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
