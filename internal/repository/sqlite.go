package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a new SQLite repository.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// One writer at a time; snapshot saves from concurrent monitors queue
	// here instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ping verifies database connectivity, used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations runs database migrations.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap *models.DeploymentSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	row, err := toSnapshotRow(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO snapshots (id, service, strategy, captured_at, active_variant, replicas, resource_blob, healthy, pod_usages)
		VALUES (:id, :service, :strategy, :captured_at, :active_variant, :replicas, :resource_blob, :healthy, :pod_usages)
		ON CONFLICT (service, strategy) DO UPDATE SET
			id = excluded.id,
			captured_at = excluded.captured_at,
			active_variant = excluded.active_variant,
			replicas = excluded.replicas,
			resource_blob = excluded.resource_blob,
			healthy = excluded.healthy,
			pod_usages = excluded.pod_usages
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save snapshot for %s/%s: %w", snap.Service, snap.Strategy, err)
	}
	return nil
}

func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, service string, strategy models.Strategy) (*models.DeploymentSnapshot, error) {
	var row snapshotRow
	query := `SELECT * FROM snapshots WHERE service = ? AND strategy = ?`
	if err := r.db.GetContext(ctx, &row, query, service, string(strategy)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSnapshotNotFound, service, strategy)
		}
		return nil, fmt.Errorf("failed to load snapshot for %s/%s: %w", service, strategy, err)
	}
	return row.toModel()
}

func (r *SQLiteRepository) RecordOutcome(ctx context.Context, outcome *models.RollbackOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	query := `
		INSERT INTO rollback_outcomes (id, service, strategy, source, success, duration_ns, active_variant, failure_kind, error, executed_at)
		VALUES (:id, :service, :strategy, :source, :success, :duration_ns, :active_variant, :failure_kind, :error, :executed_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, toOutcomeRow(outcome)); err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", outcome.Service, err)
	}
	return nil
}

func (r *SQLiteRepository) ListOutcomes(ctx context.Context, service string, limit int) ([]*models.RollbackOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outcomeRow
	var err error
	if service == "" {
		query := `SELECT * FROM rollback_outcomes ORDER BY executed_at DESC LIMIT ?`
		err = r.db.SelectContext(ctx, &rows, query, limit)
	} else {
		query := `SELECT * FROM rollback_outcomes WHERE service = ? ORDER BY executed_at DESC LIMIT ?`
		err = r.db.SelectContext(ctx, &rows, query, service, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	outcomes := make([]*models.RollbackOutcome, 0, len(rows))
	for i := range rows {
		outcomes = append(outcomes, rows[i].toModel())
	}
	return outcomes, nil
}

var _ Repository = (*SQLiteRepository)(nil)
