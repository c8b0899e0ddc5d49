package rollback

import (
	"context"
	"fmt"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
)

// executeRolling runs CHECK_REVISION_HISTORY → UNDO → WAIT_ROLLOUT → VERIFY.
// With fewer than two revisions there is nothing to undo, so the machine
// fails fast before any mutation.
func (e *Executor) executeRolling(ctx context.Context, target models.ServiceTarget) (string, models.FailureKind, error) {
	// CHECK_REVISION_HISTORY
	revisions, err := e.orch.ListRevisions(ctx, target.Name)
	if err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("list revision history: %w", err)
	}
	if len(revisions) < 2 {
		return "", models.FailureOrchestrator,
			fmt.Errorf("deployment %q has %d revision(s), need at least 2 to undo", target.Name, len(revisions))
	}
	previous := revisions[len(revisions)-2]

	e.logger.Info("undoing rollout",
		"service", target.Name,
		"to_revision", previous.Number,
	)

	// UNDO
	if err := e.orch.UndoRollout(ctx, target.Name); err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("undo rollout: %w", err)
	}

	// WAIT_ROLLOUT
	if err := e.orch.WaitForCondition(ctx, target.Name, orchestrator.ConditionRolledOut, e.waitTimeout); err != nil {
		return "", models.FailureOrchestrator, fmt.Errorf("wait for rollout: %w", err)
	}

	// VERIFY
	if result := e.verify(ctx, target); !result.Success {
		return "", models.FailureVerification,
			fmt.Errorf("verification failed after undo to revision %d: %s", previous.Number, result.Detail)
	}
	return fmt.Sprintf("revision-%d", previous.Number), models.FailureNone, nil
}
