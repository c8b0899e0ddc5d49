package rollback

import (
	"context"
	"fmt"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// executeFeatureFlag disables every flag in the service's flag set
// (enabled=false, rollout=0) through a typed deserialize → mutate →
// serialize round trip. There is no VERIFY step: flag mutation is treated as
// instantaneous and side-effect-free at the control layer.
func (e *Executor) executeFeatureFlag(ctx context.Context, target models.ServiceTarget) (string, models.FailureKind, error) {
	set, err := e.orch.GetFlagConfig(ctx, target.Name)
	if err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("read flag config: %w", err)
	}
	if len(set.Flags) == 0 {
		return "", models.FailureOrchestrator, fmt.Errorf("flag config for %q holds no flags", target.Name)
	}

	set.DisableAll()

	if err := e.orch.UpdateFlagConfig(ctx, target.Name, set); err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("write flag config: %w", err)
	}

	e.logger.Info("feature flags disabled", "service", target.Name, "flags", len(set.Flags))
	return "flags-disabled", models.FailureNone, nil
}
