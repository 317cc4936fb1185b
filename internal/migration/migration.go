package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"goinsight/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the dataset store schema. Statements are written in
// the subset of SQL shared by SQLite and PostgreSQL.
type MigrationRunner struct {
	version string
}

var _ Migrator = (*MigrationRunner)(nil)

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createDatasetVersionsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create dataset_versions table", err)
	}

	if err := r.createDatasetProfilesTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create dataset_profiles table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createDatasetVersionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_versions (
			id VARCHAR(64) PRIMARY KEY,
			file_name VARCHAR(255) NOT NULL,
			file_path TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'processing',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createDatasetProfilesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_profiles (
			dataset_version_id VARCHAR(64) PRIMARY KEY,
			profile_json TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_dataset_versions_created_at ON dataset_versions (created_at)
	`)
	return err
}
