// Package orchestrator defines the client boundary to the cluster
// orchestrator. The rollback controller only decides and recovers; every
// mutation of compute resources goes through this interface.
package orchestrator

import (
	"context"
	"time"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// Kind names the resource kinds the controller reads.
type Kind string

const (
	KindDeployment Kind = "deployment"
	KindService    Kind = "service"
	KindConfigMap  Kind = "configmap"
)

// Condition names the awaitable deployment conditions.
type Condition string

const (
	// ConditionAvailable waits until the deployment's replicas are ready and available.
	ConditionAvailable Condition = "available"
	// ConditionRolledOut waits until the deployment's observed generation has
	// fully rolled out.
	ConditionRolledOut Condition = "rolled-out"
)

// ResourceState is a read-only view of one orchestrator resource.
type ResourceState struct {
	Kind   Kind              `json:"kind"`
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	// Selector is the service's traffic selector; only set for services.
	Selector map[string]string `json:"selector,omitempty"`
	// Replicas is the desired replica count; only set for deployments.
	Replicas int32 `json:"replicas,omitempty"`
	// Raw is the serialized resource, kept opaque for snapshot blobs.
	Raw []byte `json:"-"`
}

// Revision is one entry of a deployment's rollout history.
type Revision struct {
	Number    int       `json:"number"`
	Name      string    `json:"name"` // backing ReplicaSet
	CreatedAt time.Time `json:"created_at"`
	Replicas  int32     `json:"replicas"`
}

// Client is the orchestrator collaborator. All calls are synchronous and
// surface distinguishable ErrNotFound / ErrTimeout / ErrRejected kinds.
// Mutating calls are never retried internally; a failed mutation aborts the
// caller's current step.
type Client interface {
	// GetResource reads one resource. ErrNotFound when absent.
	GetResource(ctx context.Context, kind Kind, name string) (*ResourceState, error)

	// PatchSelector atomically updates the variant label of a service's
	// traffic selector. Clients never observe a half-switched state.
	PatchSelector(ctx context.Context, service, variant string) error

	// ScaleDeployment sets the deployment's replica count.
	ScaleDeployment(ctx context.Context, name string, replicas int32) error

	// UndoRollout re-applies the previous revision's pod template, the
	// equivalent of `kubectl rollout undo`.
	UndoRollout(ctx context.Context, name string) error

	// WaitForCondition blocks until the condition holds or the timeout
	// elapses (ErrTimeout).
	WaitForCondition(ctx context.Context, name string, cond Condition, timeout time.Duration) error

	// ListRevisions returns the deployment's rollout history, oldest first.
	ListRevisions(ctx context.Context, name string) ([]Revision, error)

	// ResolveAddress returns a reachable host:port for a cluster service.
	// Resolved per probe; pod and service IPs are not stable.
	ResolveAddress(ctx context.Context, service string) (string, error)

	// GetFlagConfig reads a service's feature-flag set from its config resource.
	GetFlagConfig(ctx context.Context, name string) (*models.FeatureFlagSet, error)

	// UpdateFlagConfig writes the full flag set back. Last writer wins.
	UpdateFlagConfig(ctx context.Context, name string, set *models.FeatureFlagSet) error

	// PodUsage returns best-effort CPU/memory usage for pods matching the
	// label selector. An absent metrics server yields an empty slice.
	PodUsage(ctx context.Context, selector string) ([]models.PodUsage, error)
}
