package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping verifies database connectivity, used by the readiness probe.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations runs database migrations.
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

func (r *PostgresRepository) SaveSnapshot(ctx context.Context, snap *models.DeploymentSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	row, err := toSnapshotRow(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO snapshots (id, service, strategy, captured_at, active_variant, replicas, resource_blob, healthy, pod_usages)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (service, strategy) DO UPDATE SET
			id = excluded.id,
			captured_at = excluded.captured_at,
			active_variant = excluded.active_variant,
			replicas = excluded.replicas,
			resource_blob = excluded.resource_blob,
			healthy = excluded.healthy,
			pod_usages = excluded.pod_usages
	`
	_, err = r.db.ExecContext(ctx, query,
		row.ID, row.Service, row.Strategy, row.CapturedAt, row.ActiveVariant,
		row.Replicas, row.ResourceBlob, row.Healthy, row.PodUsages,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s/%s: %w", snap.Service, snap.Strategy, err)
	}
	return nil
}

func (r *PostgresRepository) LoadSnapshot(ctx context.Context, service string, strategy models.Strategy) (*models.DeploymentSnapshot, error) {
	var row snapshotRow
	query := `SELECT * FROM snapshots WHERE service = $1 AND strategy = $2`
	if err := r.db.GetContext(ctx, &row, query, service, string(strategy)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSnapshotNotFound, service, strategy)
		}
		return nil, fmt.Errorf("failed to load snapshot for %s/%s: %w", service, strategy, err)
	}
	return row.toModel()
}

func (r *PostgresRepository) RecordOutcome(ctx context.Context, outcome *models.RollbackOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	row := toOutcomeRow(outcome)
	query := `
		INSERT INTO rollback_outcomes (id, service, strategy, source, success, duration_ns, active_variant, failure_kind, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		row.ID, row.Service, row.Strategy, row.Source, row.Success,
		row.DurationNS, row.ActiveVariant, row.FailureKind, row.Error, row.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", outcome.Service, err)
	}
	return nil
}

func (r *PostgresRepository) ListOutcomes(ctx context.Context, service string, limit int) ([]*models.RollbackOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outcomeRow
	var err error
	if service == "" {
		query := `SELECT * FROM rollback_outcomes ORDER BY executed_at DESC LIMIT $1`
		err = r.db.SelectContext(ctx, &rows, query, limit)
	} else {
		query := `SELECT * FROM rollback_outcomes WHERE service = $1 ORDER BY executed_at DESC LIMIT $2`
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

var _ Repository = (*PostgresRepository)(nil)
