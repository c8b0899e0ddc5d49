package monitor

import (
	"fmt"
	"time"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// Verdict is the decision engine's output for one tick.
type Verdict int

const (
	// Continue means the window is within thresholds; keep monitoring.
	Continue Verdict = iota
	// Trigger means a threshold was breached; dispatch a rollback.
	Trigger
)

// Decision carries the verdict and, on Trigger, the breach reason.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Engine evaluates monitoring windows against fixed thresholds. Thresholds
// are set at construction from the immutable config; there are no ambient
// globals to flip at runtime.
type Engine struct {
	errorThreshold         int // percent; breach when error_rate strictly exceeds
	criticalErrorThreshold int // consecutive failures; breach when strictly exceeded
}

// NewEngine creates a decision engine with the given thresholds.
func NewEngine(errorThreshold, criticalErrorThreshold int) *Engine {
	return &Engine{
		errorThreshold:         errorThreshold,
		criticalErrorThreshold: criticalErrorThreshold,
	}
}

// Evaluate inspects one window snapshot. The two conditions are OR-combined
// on purpose: the failure streak catches a sudden total outage while the
// check count is still too small for a percentage to mean anything, and the
// rate catches sustained partial degradation that never builds a streak.
func (e *Engine) Evaluate(snap models.WindowSnapshot) Decision {
	if snap.ConsecutiveFailures > e.criticalErrorThreshold {
		return Decision{
			Verdict: Trigger,
			Reason: fmt.Sprintf("%d consecutive failures exceed critical threshold %d",
				snap.ConsecutiveFailures, e.criticalErrorThreshold),
		}
	}
	if snap.ErrorRate > e.errorThreshold {
		return Decision{
			Verdict: Trigger,
			Reason: fmt.Sprintf("error rate %d%% exceeds threshold %d%% (%d/%d checks failed)",
				snap.ErrorRate, e.errorThreshold, snap.ErrorCount, snap.CheckCount),
		}
	}
	return Decision{Verdict: Continue}
}

// NewDecisionRecord builds the loggable record for a triggered decision.
func NewDecisionRecord(service, reason string) models.RollbackDecision {
	return models.RollbackDecision{
		Service:   service,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}
