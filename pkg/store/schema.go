package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current ledger schema version.
const SchemaVersion = 1

// CreateSchema creates the SQLite ledger schema if it doesn't exist.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if err := createSchemaVersionTable(ctx, db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}
	if err := createPublicationsTable(ctx, db); err != nil {
		return fmt.Errorf("creating publications table: %w", err)
	}
	return nil
}

func createSchemaVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

func createPublicationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			url TEXT NOT NULL,
			backend TEXT NOT NULL,
			source TEXT,
			published_at INTEGER NOT NULL,
			expires_at INTEGER
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_publications_path ON publications(path)
	`)
	return err
}

// postgresSchema is the PostgreSQL equivalent of CreateSchema.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`INSERT INTO schema_version (version)
		SELECT $1::integer WHERE NOT EXISTS (SELECT 1 FROM schema_version)`,
	`CREATE TABLE IF NOT EXISTS publications (
		id BIGSERIAL PRIMARY KEY,
		path TEXT NOT NULL,
		url TEXT NOT NULL,
		backend TEXT NOT NULL,
		source TEXT,
		published_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_publications_path ON publications(path)`,
}
