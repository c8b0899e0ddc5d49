package models

import "time"

// MonitorEventType labels events on the live stream.
type MonitorEventType string

const (
	EventWindowTick         MonitorEventType = "window-tick"
	EventTrigger            MonitorEventType = "trigger"
	EventRollbackCompleted  MonitorEventType = "rollback-completed"
	EventManualIntervention MonitorEventType = "manual-intervention-required"
)

// MonitorEvent is broadcast to WebSocket subscribers as monitoring progresses.
type MonitorEvent struct {
	Type      MonitorEventType `json:"type"`
	Service   string           `json:"service"`
	Timestamp time.Time        `json:"timestamp"`
	Window    *WindowSnapshot  `json:"window,omitempty"`
	Decision  *RollbackDecision `json:"decision,omitempty"`
	Outcome   *RollbackOutcome `json:"outcome,omitempty"`
}
