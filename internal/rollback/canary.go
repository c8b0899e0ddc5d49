package rollback

import (
	"context"
	"fmt"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
)

// executeCanary runs ZERO_CANARY_TRAFFIC → SCALE_DOWN(canary) →
// SCALE_UP(stable, pre-canary count) → WAIT_AVAILABLE → VERIFY. The
// pre-canary replica count comes from the snapshot taken before the canary
// was introduced; without that snapshot the rollback hard-fails rather than
// guessing a count.
func (e *Executor) executeCanary(ctx context.Context, target models.ServiceTarget) (string, models.FailureKind, error) {
	stable := variantDeployment(target.Name, variantStable)
	canary := variantDeployment(target.Name, variantCanary)

	snap, err := e.snapshots.LoadSnapshot(ctx, target.Name, models.StrategyCanary)
	if err != nil {
		return "", models.FailureSnapshotMissing,
			fmt.Errorf("pre-canary state unavailable: %w", err)
	}
	replicas, ok := snap.Replicas[stable]
	if !ok || replicas < 1 {
		return "", models.FailureSnapshotMissing,
			fmt.Errorf("snapshot for %q has no replica count for stable deployment %q", target.Name, stable)
	}

	// ZERO_CANARY_TRAFFIC: point the whole selector at stable.
	if err := e.orch.PatchSelector(ctx, target.Name, variantStable); err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("zero canary traffic: %w", err)
	}

	// SCALE_DOWN the canary.
	if err := e.orch.ScaleDeployment(ctx, canary, 0); err != nil {
		return variantStable, models.FailureOrchestrator, fmt.Errorf("scale down canary: %w", err)
	}

	// SCALE_UP stable to its pre-canary count.
	if err := e.orch.ScaleDeployment(ctx, stable, replicas); err != nil {
		return variantStable, models.FailureOrchestrator,
			fmt.Errorf("scale stable back to %d replicas: %w", replicas, err)
	}

	// WAIT_AVAILABLE
	if err := e.orch.WaitForCondition(ctx, stable, orchestrator.ConditionAvailable, e.waitTimeout); err != nil {
		return variantStable, models.FailureOrchestrator, fmt.Errorf("wait for stable availability: %w", err)
	}

	// VERIFY
	if result := e.verify(ctx, target); !result.Success {
		return variantStable, models.FailureVerification,
			fmt.Errorf("verification failed after canary drain: %s", result.Detail)
	}
	return variantStable, models.FailureNone, nil
}
