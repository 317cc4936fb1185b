package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/internal/migration"
	"goinsight/ports"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQLStore keeps versions and profiles in SQLite or PostgreSQL. Queries are
// written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.DatasetRepository = (*SQLStore)(nil)

// OpenSQL connects, applies the schema and returns the store
func OpenSQL(ctx context.Context, driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to "+driver, err)
	}
	if driver == DriverSQLite {
		// a second connection to :memory: would see an empty database
		db.SetMaxOpenConns(1)
	}
	s := NewSQLStore(db, logger)
	if err := s.migrate(ctx, migration.NewRunner()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context, m migration.Migrator) error {
	if err := m.Run(ctx, s.db); err != nil {
		return err
	}
	s.logger.Debug("schema ready", zap.String("schema_version", m.Version()))
	return nil
}

// NewSQLStore wraps an already migrated connection
func NewSQLStore(db *sqlx.DB, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, logger: logger.Named("sql_store")}
}

// Close releases the connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Create inserts a new version
func (s *SQLStore) Create(ctx context.Context, v *dataset.Version) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`INSERT INTO dataset_versions (
		id, file_name, file_path, status, error_message, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.FileName, v.FilePath, v.Status, v.ErrorMessage, v.CreatedAt,
	)
	if err != nil {
		return errors.DatabaseError("failed to create dataset version", err)
	}

	s.logger.Debug("dataset version created", zap.String("dataset_version_id", v.ID.String()))
	return nil
}

// GetByID retrieves a version by its ID
func (s *SQLStore) GetByID(ctx context.Context, id core.DatasetVersionID) (*dataset.Version, error) {
	query := s.db.Rebind(`SELECT
		id, file_name, file_path, status, error_message, created_at
	FROM dataset_versions WHERE id = ?`)

	var v dataset.Version
	if err := s.db.GetContext(ctx, &v, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("dataset version " + id.String())
		}
		return nil, errors.DatabaseError("failed to get dataset version", err)
	}
	return &v, nil
}

// List returns versions newest first
func (s *SQLStore) List(ctx context.Context, limit, offset int) ([]*dataset.Version, error) {
	query := s.db.Rebind(`SELECT
		id, file_name, file_path, status, error_message, created_at
	FROM dataset_versions
	ORDER BY created_at DESC, id
	LIMIT ? OFFSET ?`)

	versions := []*dataset.Version{}
	if err := s.db.SelectContext(ctx, &versions, query, limit, offset); err != nil {
		return nil, errors.DatabaseError("failed to list dataset versions", err)
	}
	return versions, nil
}

// UpdateStatus updates only the status and error message of a version
func (s *SQLStore) UpdateStatus(ctx context.Context, id core.DatasetVersionID, status dataset.VersionStatus, errorMsg string) error {
	query := s.db.Rebind(`UPDATE dataset_versions SET status = ?, error_message = ? WHERE id = ?`)

	result, err := s.db.ExecContext(ctx, query, status, errorMsg, id)
	if err != nil {
		return errors.DatabaseError("failed to update dataset version status", err)
	}
	return s.expectOne(result, id)
}

// Delete removes a version and its cached profile
func (s *SQLStore) Delete(ctx context.Context, id core.DatasetVersionID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM dataset_profiles WHERE dataset_version_id = ?`), id); err != nil {
		return errors.DatabaseError("failed to delete dataset profile", err)
	}
	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM dataset_versions WHERE id = ?`), id)
	if err != nil {
		return errors.DatabaseError("failed to delete dataset version", err)
	}
	if err := s.expectOne(result, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit delete", err)
	}
	return nil
}

// SaveProfile stores the profile as JSON, replacing any earlier one
func (s *SQLStore) SaveProfile(ctx context.Context, profile *dataset.DatasetProfile) error {
	if profile == nil {
		return errors.InvalidInput("profile is nil")
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return errors.Wrap(err, "failed to marshal profile")
	}

	query := s.db.Rebind(`INSERT INTO dataset_profiles (dataset_version_id, profile_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (dataset_version_id) DO UPDATE SET
		profile_json = excluded.profile_json,
		updated_at = excluded.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, profile.DatasetVersionID, string(profileJSON), time.Now().UTC()); err != nil {
		return errors.DatabaseError("failed to save dataset profile", err)
	}
	return nil
}

// GetProfile returns the cached profile for a version
func (s *SQLStore) GetProfile(ctx context.Context, id core.DatasetVersionID) (*dataset.DatasetProfile, error) {
	query := s.db.Rebind(`SELECT profile_json FROM dataset_profiles WHERE dataset_version_id = ?`)

	var profileJSON string
	if err := s.db.GetContext(ctx, &profileJSON, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("profile for dataset version " + id.String())
		}
		return nil, errors.DatabaseError("failed to get dataset profile", err)
	}

	var profile dataset.DatasetProfile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal profile")
	}
	return &profile, nil
}

func (s *SQLStore) expectOne(result sql.Result, id core.DatasetVersionID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound("dataset version " + id.String())
	}
	return nil
}
