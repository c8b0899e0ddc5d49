package models

// ProbeScheme selects how a target's health endpoint is checked.
type ProbeScheme string

const (
	// ProbeHTTP issues GET <health_path> and requires a 2xx status.
	ProbeHTTP ProbeScheme = "http"
	// ProbeGRPC calls grpc.health.v1.Health/Check and requires SERVING.
	ProbeGRPC ProbeScheme = "grpc"
)

// ServiceTarget is the static configuration for one monitored service.
// Targets are loaded at process start and never mutated afterwards.
type ServiceTarget struct {
	Name      string   `json:"name"      mapstructure:"name"`
	Namespace string   `json:"namespace" mapstructure:"namespace"`
	Strategy  Strategy `json:"strategy"  mapstructure:"strategy"`

	// HealthPath is the probed path, usually /health. UI-only targets that
	// have no health endpoint use /.
	HealthPath string      `json:"health_path" mapstructure:"health_path"`
	Scheme     ProbeScheme `json:"scheme"      mapstructure:"scheme"`

	// Address pins the probe to a static host:port. When empty the address
	// is resolved through the orchestrator before every probe, because pod
	// and service IPs are not stable across rollouts.
	Address string `json:"address,omitempty" mapstructure:"address"`
}
