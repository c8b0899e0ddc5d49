package models

import "time"

// TriggerSource records which entry point requested a rollback.
type TriggerSource string

const (
	TriggerMonitor TriggerSource = "monitor"
	TriggerAPI     TriggerSource = "api"
)

// FailureKind classifies why a rollback failed, because remediation differs:
// a failed orchestrator call means the rollback mechanics broke, while a
// verification failure means the rolled-back target is itself unhealthy.
type FailureKind string

const (
	FailureNone FailureKind = "none"
	// FailureOrchestrator is a failed mutating call against the orchestrator.
	FailureOrchestrator FailureKind = "orchestrator"
	// FailureVerification means all mutating steps succeeded but the
	// post-rollback health check still fails. Escalate, don't re-rollback.
	FailureVerification FailureKind = "verification"
	// FailureSnapshotMissing means the strategy needed prior state and no
	// snapshot existed for its key.
	FailureSnapshotMissing FailureKind = "snapshot-missing"
	// FailureManualIntervention is recorded when auto-rollback is disabled
	// and a trigger fired: nothing was mutated, an operator must act.
	FailureManualIntervention FailureKind = "manual-intervention-required"
)

// RollbackDecision is emitted by the decision engine when a window breaches
// a threshold. Ephemeral; only logged and streamed.
type RollbackDecision struct {
	Service   string    `json:"service"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RollbackOutcome is the result of one rollback execution.
type RollbackOutcome struct {
	ID            string        `json:"id"             db:"id"`
	Service       string        `json:"service"        db:"service"`
	Strategy      Strategy      `json:"strategy"       db:"strategy"`
	Source        TriggerSource `json:"source"         db:"source"`
	Success       bool          `json:"success"        db:"success"`
	Duration      time.Duration `json:"duration"       db:"duration_ns"`
	ActiveVariant string        `json:"active_variant" db:"active_variant"`
	FailureKind   FailureKind   `json:"failure_kind"   db:"failure_kind"`
	Error         string        `json:"error,omitempty" db:"error"`
	ExecutedAt    time.Time     `json:"executed_at"    db:"executed_at"`
}
