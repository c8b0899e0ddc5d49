package rollback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
	"github.com/blackkolly/rollback-controller/internal/repository"
)

// Snapshotter captures a service's deployed state before monitoring begins,
// so snapshot-dependent strategies have a known-good reference to restore.
type Snapshotter struct {
	orch     orchestrator.Client
	repo     repository.SnapshotRepository
	verifier Verifier
	logger   *slog.Logger
}

// NewSnapshotter creates a snapshotter.
func NewSnapshotter(orch orchestrator.Client, repo repository.SnapshotRepository, verifier Verifier, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{orch: orch, repo: repo, verifier: verifier, logger: logger}
}

// Capture reads the service's current resource definitions, active variant,
// and health, then persists the snapshot under its (service, strategy) key,
// replacing any prior value.
func (s *Snapshotter) Capture(ctx context.Context, target models.ServiceTarget) (*models.DeploymentSnapshot, error) {
	snap := &models.DeploymentSnapshot{
		ID:         uuid.New().String(),
		Service:    target.Name,
		Strategy:   target.Strategy,
		CapturedAt: time.Now().UTC(),
		Replicas:   make(map[string]int32),
	}

	// Active variant comes from the service's traffic selector.
	if svc, err := s.orch.GetResource(ctx, orchestrator.KindService, target.Name); err == nil {
		snap.ActiveVariant = svc.Selector[orchestrator.SelectorLabel]
	} else if !errors.Is(err, orchestrator.ErrNotFound) {
		return nil, fmt.Errorf("capture service state: %w", err)
	}

	var blobs []json.RawMessage
	for _, name := range s.deploymentNames(target) {
		state, err := s.orch.GetResource(ctx, orchestrator.KindDeployment, name)
		if err != nil {
			if errors.Is(err, orchestrator.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("capture deployment %q: %w", name, err)
		}
		snap.Replicas[state.Name] = state.Replicas
		blobs = append(blobs, json.RawMessage(state.Raw))
	}
	if len(blobs) == 0 {
		return nil, fmt.Errorf("capture snapshot for %q: %w: no deployments found", target.Name, orchestrator.ErrNotFound)
	}
	blob, err := json.Marshal(blobs)
	if err != nil {
		return nil, fmt.Errorf("serialize resource blob: %w", err)
	}
	snap.ResourceBlob = blob

	snap.Healthy = s.verifier.Probe(ctx, target).Success

	// Best effort; absent metrics server means no usage data, not a failure.
	if usages, err := s.orch.PodUsage(ctx, "app="+target.Name); err == nil {
		snap.PodUsages = usages
	}

	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	s.logger.Info("snapshot captured",
		"service", target.Name,
		"strategy", target.Strategy,
		"active_variant", snap.ActiveVariant,
		"deployments", len(snap.Replicas),
		"healthy", snap.Healthy,
	)
	return snap, nil
}

// deploymentNames lists the deployments that make up the target under its
// strategy, base deployment first.
func (s *Snapshotter) deploymentNames(target models.ServiceTarget) []string {
	switch target.Strategy {
	case models.StrategyBlueGreen:
		return []string{
			variantDeployment(target.Name, variantBlue),
			variantDeployment(target.Name, variantGreen),
		}
	case models.StrategyCanary:
		return []string{
			variantDeployment(target.Name, variantStable),
			variantDeployment(target.Name, variantCanary),
		}
	}
	return []string{target.Name}
}
