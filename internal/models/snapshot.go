package models

import "time"

// PodUsage is a best-effort CPU/memory reading from the metrics server,
// captured alongside snapshots for post-incident triage.
type PodUsage struct {
	Pod    string `json:"pod"`
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

// DeploymentSnapshot is a restorable description of a service's deployed
// state, captured before monitoring begins. Snapshots are keyed by
// (service, strategy); a save replaces the prior value for that key.
type DeploymentSnapshot struct {
	ID         string    `json:"id"          db:"id"`
	Service    string    `json:"service"     db:"service"`
	Strategy   Strategy  `json:"strategy"    db:"strategy"`
	CapturedAt time.Time `json:"captured_at" db:"captured_at"`

	// ActiveVariant is the traffic-serving deployment identity at capture
	// time (e.g. "blue", "stable").
	ActiveVariant string `json:"active_variant" db:"active_variant"`

	// Replicas maps deployment name to its replica count at capture time.
	Replicas map[string]int32 `json:"replicas" db:"-"`

	// ResourceBlob is the serialized deployment specs, opaque to the
	// controller. Kept so an operator can diff what was running.
	ResourceBlob []byte `json:"-" db:"resource_blob"`

	// Healthy records the probe result at capture time.
	Healthy bool `json:"healthy" db:"healthy"`

	// PodUsages is best-effort; empty when no metrics server is installed.
	PodUsages []PodUsage `json:"pod_usages,omitempty" db:"-"`
}
