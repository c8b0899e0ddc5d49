package rollback

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
)

// DetectStrategy identifies the strategy a service is actually deployed
// with, by enum-tagged lookups of strategy-specific resources. Each probe is
// an explicit GetResource against the orchestrator, never a string match on
// error text.
//
// Detection order matters: colored variants imply blue-green even when the
// base deployment also exists, a canary deployment implies canary, a plain
// deployment implies rolling, and a flag ConfigMap alone implies
// feature-flag.
func DetectStrategy(ctx context.Context, orch orchestrator.Client, service string) (models.Strategy, error) {
	type lookup struct {
		kind     orchestrator.Kind
		name     string
		strategy models.Strategy
	}
	lookups := []lookup{
		{orchestrator.KindDeployment, variantDeployment(service, variantBlue), models.StrategyBlueGreen},
		{orchestrator.KindDeployment, variantDeployment(service, variantGreen), models.StrategyBlueGreen},
		{orchestrator.KindDeployment, variantDeployment(service, variantCanary), models.StrategyCanary},
		{orchestrator.KindDeployment, service, models.StrategyRolling},
		{orchestrator.KindConfigMap, orchestrator.FlagConfigName(service), models.StrategyFeatureFlag},
	}

	for _, l := range lookups {
		_, err := orch.GetResource(ctx, l.kind, l.name)
		if err == nil {
			return l.strategy, nil
		}
		if !errors.Is(err, orchestrator.ErrNotFound) {
			return "", fmt.Errorf("detect strategy for %q: %w", service, err)
		}
	}
	return "", fmt.Errorf("detect strategy for %q: no strategy-specific resources found: %w",
		service, orchestrator.ErrNotFound)
}

// DetectStrategy reports the strategy the service is currently deployed
// with, using the executor's orchestrator client. The trigger API uses it
// when the caller omits the strategy.
func (e *Executor) DetectStrategy(ctx context.Context, service string) (models.Strategy, error) {
	return DetectStrategy(ctx, e.orch, service)
}

// ExecuteAll performs a system-wide rollback: each target's deployed
// strategy is auto-detected and the matching executor dispatched. Failures
// are isolated per service; one failing rollback never aborts the others.
func (e *Executor) ExecuteAll(ctx context.Context, targets []models.ServiceTarget, source models.TriggerSource, reason string) []*models.RollbackOutcome {
	outcomes := make([]*models.RollbackOutcome, 0, len(targets))
	for _, target := range targets {
		detected, err := DetectStrategy(ctx, e.orch, target.Name)
		if err != nil {
			e.logger.Warn("strategy detection failed, using configured strategy",
				"service", target.Name,
				"configured", target.Strategy,
				"error", err,
			)
		} else if detected != target.Strategy {
			e.logger.Info("detected strategy differs from configuration",
				"service", target.Name,
				"configured", target.Strategy,
				"detected", detected,
			)
			target.Strategy = detected
		}

		outcomes = append(outcomes, e.Execute(ctx, Request{
			Target: target,
			Source: source,
			Reason: reason,
		}))
	}
	return outcomes
}
