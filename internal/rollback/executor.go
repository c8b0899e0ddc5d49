// Package rollback implements the per-strategy recovery state machines. All
// executions, monitor-triggered or externally requested, flow through one
// Executor under a per-service lock.
package rollback

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
	"github.com/blackkolly/rollback-controller/internal/pkg/metrics"
	"github.com/blackkolly/rollback-controller/internal/pkg/tracing"
	"github.com/blackkolly/rollback-controller/internal/repository"
)

// Verifier is the post-rollback health check. Satisfied by *probe.Prober.
type Verifier interface {
	Probe(ctx context.Context, target models.ServiceTarget) models.ProbeResult
}

// Request asks for one rollback execution.
type Request struct {
	Target models.ServiceTarget
	Source models.TriggerSource
	Reason string
}

// Executor runs rollback state machines against the orchestrator.
type Executor struct {
	orch      orchestrator.Client
	snapshots repository.SnapshotRepository
	outcomes  repository.OutcomeRepository
	verifier  Verifier

	// waitTimeout caps WAIT_AVAILABLE and WAIT_ROLLOUT inside a rollback.
	waitTimeout time.Duration

	locks  *keyedMutex
	logger *slog.Logger
}

// NewExecutor creates the shared executor.
func NewExecutor(
	orch orchestrator.Client,
	snapshots repository.SnapshotRepository,
	outcomes repository.OutcomeRepository,
	verifier Verifier,
	waitTimeout time.Duration,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		orch:        orch,
		snapshots:   snapshots,
		outcomes:    outcomes,
		verifier:    verifier,
		waitTimeout: waitTimeout,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

// Execute runs the strategy's state machine and returns the completed
// outcome. It never returns early on context cancellation: once started, a
// rollback runs to completion, because a half-applied rollback is worse than
// a slow shutdown. Every step is individually bounded, so completion is too.
func (e *Executor) Execute(ctx context.Context, req Request) *models.RollbackOutcome {
	unlock := e.locks.Lock(req.Target.Name)
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.StartSpanWithAttributes(ctx, "rollback.execute",
		attribute.String("service", req.Target.Name),
		attribute.String("strategy", string(req.Target.Strategy)),
		attribute.String("source", string(req.Source)),
	)
	defer span.End()

	e.logger.Info("rollback starting",
		"service", req.Target.Name,
		"strategy", req.Target.Strategy,
		"source", req.Source,
		"reason", req.Reason,
	)

	start := time.Now()
	var variant string
	var kind models.FailureKind
	var err error

	switch req.Target.Strategy {
	case models.StrategyBlueGreen:
		variant, kind, err = e.executeBlueGreen(ctx, req.Target)
	case models.StrategyCanary:
		variant, kind, err = e.executeCanary(ctx, req.Target)
	case models.StrategyRolling:
		variant, kind, err = e.executeRolling(ctx, req.Target)
	case models.StrategyFeatureFlag:
		variant, kind, err = e.executeFeatureFlag(ctx, req.Target)
	default:
		kind = models.FailureOrchestrator
		err = errUnknownStrategy(req.Target.Strategy)
	}

	outcome := &models.RollbackOutcome{
		ID:            uuid.New().String(),
		Service:       req.Target.Name,
		Strategy:      req.Target.Strategy,
		Source:        req.Source,
		Success:       err == nil,
		Duration:      time.Since(start),
		ActiveVariant: variant,
		FailureKind:   models.FailureNone,
		ExecutedAt:    start.UTC(),
	}
	if err != nil {
		outcome.FailureKind = kind
		outcome.Error = err.Error()
	}

	e.record(ctx, outcome)
	return outcome
}

// RecordManualIntervention persists the outcome for a trigger that fired
// while auto-rollback was disabled: nothing was mutated, an operator must
// issue the rollback explicitly.
func (e *Executor) RecordManualIntervention(ctx context.Context, target models.ServiceTarget, reason string) *models.RollbackOutcome {
	outcome := &models.RollbackOutcome{
		ID:          uuid.New().String(),
		Service:     target.Name,
		Strategy:    target.Strategy,
		Source:      models.TriggerMonitor,
		Success:     false,
		FailureKind: models.FailureManualIntervention,
		Error:       "auto-rollback disabled, manual intervention required: " + reason,
		ExecutedAt:  time.Now().UTC(),
	}
	e.record(ctx, outcome)
	return outcome
}

func (e *Executor) record(ctx context.Context, outcome *models.RollbackOutcome) {
	result := "failure"
	if outcome.Success {
		result = "success"
	}
	metrics.RollbackTotal.WithLabelValues(string(outcome.Strategy), result).Inc()
	if outcome.FailureKind != models.FailureManualIntervention {
		metrics.RollbackDurationSeconds.WithLabelValues(string(outcome.Strategy)).Observe(outcome.Duration.Seconds())
	}

	if outcome.Success {
		e.logger.Info("rollback completed",
			"service", outcome.Service,
			"strategy", outcome.Strategy,
			"active_variant", outcome.ActiveVariant,
			"duration", outcome.Duration,
		)
	} else {
		e.logger.Error("rollback failed",
			"service", outcome.Service,
			"strategy", outcome.Strategy,
			"failure_kind", outcome.FailureKind,
			"error", outcome.Error,
		)
	}

	if e.outcomes != nil {
		if err := e.outcomes.RecordOutcome(ctx, outcome); err != nil {
			e.logger.Error("failed to persist rollback outcome", "service", outcome.Service, "error", err)
		}
	}
}

// verify probes the service after the mutating steps. A failure here is a
// VerificationFailure: the rollback mechanics worked but the target is still
// unhealthy, which needs escalation rather than another rollback.
func (e *Executor) verify(ctx context.Context, target models.ServiceTarget) models.ProbeResult {
	return e.verifier.Probe(ctx, target)
}
