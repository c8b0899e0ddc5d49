package rollback

import (
	"context"
	"fmt"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
)

const (
	variantBlue   = "blue"
	variantGreen  = "green"
	variantStable = "stable"
	variantCanary = "canary"
)

func errUnknownStrategy(s models.Strategy) error {
	return fmt.Errorf("no executor for strategy %q", s)
}

// variantDeployment maps (service, variant) to the deployment name. The
// stable variant is the base deployment; colored/canary variants are
// suffixed.
func variantDeployment(service, variant string) string {
	if variant == variantStable {
		return service
	}
	return service + "-" + variant
}

// executeBlueGreen runs INSPECT_ACTIVE → SWITCH_TRAFFIC → SCALE_DOWN →
// VERIFY. The switch is a single atomic selector patch, so clients never see
// a half-switched state. A VERIFY failure is terminal: no auto-retry and no
// revert, because a post-switch failure may be a router-level fault that a
// second switch would only mask.
func (e *Executor) executeBlueGreen(ctx context.Context, target models.ServiceTarget) (string, models.FailureKind, error) {
	// INSPECT_ACTIVE
	svc, err := e.orch.GetResource(ctx, orchestrator.KindService, target.Name)
	if err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("inspect active variant: %w", err)
	}
	active := svc.Selector[orchestrator.SelectorLabel]
	var inactive string
	switch active {
	case variantBlue:
		inactive = variantGreen
	case variantGreen:
		inactive = variantBlue
	default:
		return "", models.FailureOrchestrator,
			fmt.Errorf("service %q selector %s=%q is not a blue/green variant", target.Name, orchestrator.SelectorLabel, active)
	}

	e.logger.Info("switching traffic", "service", target.Name, "from", active, "to", inactive)

	// SWITCH_TRAFFIC
	if err := e.orch.PatchSelector(ctx, target.Name, inactive); err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("switch traffic to %q: %w", inactive, err)
	}

	// SCALE_DOWN the failed variant so it stops consuming capacity.
	if err := e.orch.ScaleDeployment(ctx, variantDeployment(target.Name, active), 0); err != nil {
		return inactive, models.FailureOrchestrator, fmt.Errorf("scale down %q variant: %w", active, err)
	}

	// VERIFY against the now-active variant.
	if result := e.verify(ctx, target); !result.Success {
		return inactive, models.FailureVerification,
			fmt.Errorf("verification failed after switch to %q: %s", inactive, result.Detail)
	}
	return inactive, models.FailureNone, nil
}
