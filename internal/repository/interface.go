// Package repository persists deployment snapshots and rollback outcomes.
// Two implementations exist: SQLite (default, single-binary deployments) and
// PostgreSQL (shared controller instances).
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists for the
// (service, strategy) key. Strategies that need prior state must surface
// this, never synthesize a default.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository stores the latest snapshot per (service, strategy) key.
// Save is a full last-writer-wins overwrite, never a merge; writes to
// distinct keys never conflict.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snap *models.DeploymentSnapshot) error
	LoadSnapshot(ctx context.Context, service string, strategy models.Strategy) (*models.DeploymentSnapshot, error)
}

// OutcomeRepository records completed rollback executions.
type OutcomeRepository interface {
	RecordOutcome(ctx context.Context, outcome *models.RollbackOutcome) error
	// ListOutcomes returns outcomes newest first; empty service means all.
	ListOutcomes(ctx context.Context, service string, limit int) ([]*models.RollbackOutcome, error)
}

// Repository is the full persistence surface the controller wires at startup.
type Repository interface {
	SnapshotRepository
	OutcomeRepository
	Ping(ctx context.Context) error
	RunMigrations(migrationSQL string) error
	Close() error
}

// snapshotRow is the flat DB shape of a DeploymentSnapshot; map-valued fields
// are stored as JSON text so the schema stays portable across drivers.
type snapshotRow struct {
	ID            string    `db:"id"`
	Service       string    `db:"service"`
	Strategy      string    `db:"strategy"`
	CapturedAt    time.Time `db:"captured_at"`
	ActiveVariant string    `db:"active_variant"`
	Replicas      string    `db:"replicas"`
	ResourceBlob  string    `db:"resource_blob"`
	Healthy       bool      `db:"healthy"`
	PodUsages     string    `db:"pod_usages"`
}

func toSnapshotRow(snap *models.DeploymentSnapshot) (*snapshotRow, error) {
	replicas, err := json.Marshal(snap.Replicas)
	if err != nil {
		return nil, fmt.Errorf("marshal replicas: %w", err)
	}
	usages, err := json.Marshal(snap.PodUsages)
	if err != nil {
		return nil, fmt.Errorf("marshal pod usages: %w", err)
	}
	return &snapshotRow{
		ID:            snap.ID,
		Service:       snap.Service,
		Strategy:      string(snap.Strategy),
		CapturedAt:    snap.CapturedAt.UTC(),
		ActiveVariant: snap.ActiveVariant,
		Replicas:      string(replicas),
		ResourceBlob:  string(snap.ResourceBlob),
		Healthy:       snap.Healthy,
		PodUsages:     string(usages),
	}, nil
}

func (r *snapshotRow) toModel() (*models.DeploymentSnapshot, error) {
	snap := &models.DeploymentSnapshot{
		ID:            r.ID,
		Service:       r.Service,
		Strategy:      models.Strategy(r.Strategy),
		CapturedAt:    r.CapturedAt,
		ActiveVariant: r.ActiveVariant,
		ResourceBlob:  []byte(r.ResourceBlob),
		Healthy:       r.Healthy,
	}
	if err := json.Unmarshal([]byte(r.Replicas), &snap.Replicas); err != nil {
		return nil, fmt.Errorf("unmarshal replicas: %w", err)
	}
	if r.PodUsages != "" {
		if err := json.Unmarshal([]byte(r.PodUsages), &snap.PodUsages); err != nil {
			return nil, fmt.Errorf("unmarshal pod usages: %w", err)
		}
	}
	return snap, nil
}

// outcomeRow is the flat DB shape of a RollbackOutcome.
type outcomeRow struct {
	ID            string    `db:"id"`
	Service       string    `db:"service"`
	Strategy      string    `db:"strategy"`
	Source        string    `db:"source"`
	Success       bool      `db:"success"`
	DurationNS    int64     `db:"duration_ns"`
	ActiveVariant string    `db:"active_variant"`
	FailureKind   string    `db:"failure_kind"`
	Error         string    `db:"error"`
	ExecutedAt    time.Time `db:"executed_at"`
}

func toOutcomeRow(o *models.RollbackOutcome) *outcomeRow {
	return &outcomeRow{
		ID:            o.ID,
		Service:       o.Service,
		Strategy:      string(o.Strategy),
		Source:        string(o.Source),
		Success:       o.Success,
		DurationNS:    int64(o.Duration),
		ActiveVariant: o.ActiveVariant,
		FailureKind:   string(o.FailureKind),
		Error:         o.Error,
		ExecutedAt:    o.ExecutedAt.UTC(),
	}
}

func (r *outcomeRow) toModel() *models.RollbackOutcome {
	return &models.RollbackOutcome{
		ID:            r.ID,
		Service:       r.Service,
		Strategy:      models.Strategy(r.Strategy),
		Source:        models.TriggerSource(r.Source),
		Success:       r.Success,
		Duration:      time.Duration(r.DurationNS),
		ActiveVariant: r.ActiveVariant,
		FailureKind:   models.FailureKind(r.FailureKind),
		Error:         r.Error,
		ExecutedAt:    r.ExecutedAt,
	}
}
