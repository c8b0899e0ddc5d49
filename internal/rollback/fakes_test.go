package rollback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
	"github.com/blackkolly/rollback-controller/internal/repository"
)

// fakeOrchestrator is an in-memory orchestrator.Client. Tests preload
// resources and inspect the recorded mutation order afterwards.
type fakeOrchestrator struct {
	mu sync.Mutex

	resources map[string]*orchestrator.ResourceState // keyed kind/name
	revisions map[string][]orchestrator.Revision
	flags     map[string]*models.FeatureFlagSet

	// calls records every mutating call in order, e.g. "PatchSelector(web,green)".
	calls []string

	failPatchSelector error
	failScale         map[string]error
	failUndo          error
	failWait          error

	// stepDelay slows mutating calls down so interleaving tests have a
	// window to observe a violation.
	stepDelay time.Duration
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		resources: make(map[string]*orchestrator.ResourceState),
		revisions: make(map[string][]orchestrator.Revision),
		flags:     make(map[string]*models.FeatureFlagSet),
		failScale: make(map[string]error),
	}
}

func key(kind orchestrator.Kind, name string) string {
	return string(kind) + "/" + name
}

func (f *fakeOrchestrator) addService(name, variant string) {
	f.resources[key(orchestrator.KindService, name)] = &orchestrator.ResourceState{
		Kind:     orchestrator.KindService,
		Name:     name,
		Selector: map[string]string{orchestrator.SelectorLabel: variant},
	}
}

func (f *fakeOrchestrator) addDeployment(name string, replicas int32) {
	f.resources[key(orchestrator.KindDeployment, name)] = &orchestrator.ResourceState{
		Kind:     orchestrator.KindDeployment,
		Name:     name,
		Replicas: replicas,
	}
}

func (f *fakeOrchestrator) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.stepDelay > 0 {
		time.Sleep(f.stepDelay)
	}
}

func (f *fakeOrchestrator) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeOrchestrator) GetResource(_ context.Context, kind orchestrator.Kind, name string) (*orchestrator.ResourceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[key(kind, name)]; ok {
		return r, nil
	}
	return nil, orchestrator.ErrNotFound
}

func (f *fakeOrchestrator) PatchSelector(_ context.Context, service, variant string) error {
	if f.failPatchSelector != nil {
		return f.failPatchSelector
	}
	f.record("PatchSelector(" + service + "," + variant + ")")
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[key(orchestrator.KindService, service)]; ok {
		r.Selector[orchestrator.SelectorLabel] = variant
		return nil
	}
	return orchestrator.ErrNotFound
}

func (f *fakeOrchestrator) ScaleDeployment(_ context.Context, name string, replicas int32) error {
	if err := f.failScale[name]; err != nil {
		return err
	}
	f.record("ScaleDeployment(" + name + ")")
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[key(orchestrator.KindDeployment, name)]; ok {
		r.Replicas = replicas
		return nil
	}
	return orchestrator.ErrNotFound
}

func (f *fakeOrchestrator) UndoRollout(_ context.Context, name string) error {
	if f.failUndo != nil {
		return f.failUndo
	}
	f.record("UndoRollout(" + name + ")")
	return nil
}

func (f *fakeOrchestrator) WaitForCondition(_ context.Context, name string, cond orchestrator.Condition, _ time.Duration) error {
	if f.failWait != nil {
		return f.failWait
	}
	f.record("WaitForCondition(" + name + "," + string(cond) + ")")
	return nil
}

func (f *fakeOrchestrator) ListRevisions(_ context.Context, name string) ([]orchestrator.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	revs, ok := f.revisions[name]
	if !ok {
		return nil, orchestrator.ErrNotFound
	}
	return revs, nil
}

func (f *fakeOrchestrator) ResolveAddress(_ context.Context, service string) (string, error) {
	return service + ":8080", nil
}

func (f *fakeOrchestrator) GetFlagConfig(_ context.Context, name string) (*models.FeatureFlagSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.flags[name]
	if !ok {
		return nil, orchestrator.ErrNotFound
	}
	return set, nil
}

func (f *fakeOrchestrator) UpdateFlagConfig(_ context.Context, name string, set *models.FeatureFlagSet) error {
	f.record("UpdateFlagConfig(" + name + ")")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[name] = set
	return nil
}

func (f *fakeOrchestrator) PodUsage(context.Context, string) ([]models.PodUsage, error) {
	return nil, nil
}

var _ orchestrator.Client = (*fakeOrchestrator)(nil)

// fakeSnapshotRepo is an in-memory snapshot store keyed like the SQL one.
type fakeSnapshotRepo struct {
	mu    sync.Mutex
	snaps map[string]*models.DeploymentSnapshot
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{snaps: make(map[string]*models.DeploymentSnapshot)}
}

func (r *fakeSnapshotRepo) SaveSnapshot(_ context.Context, snap *models.DeploymentSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps[snap.Service+"/"+string(snap.Strategy)] = snap
	return nil
}

func (r *fakeSnapshotRepo) LoadSnapshot(_ context.Context, service string, strategy models.Strategy) (*models.DeploymentSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[service+"/"+string(strategy)]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return snap, nil
}

// fakeOutcomeRepo records persisted outcomes.
type fakeOutcomeRepo struct {
	mu       sync.Mutex
	outcomes []*models.RollbackOutcome
}

func (r *fakeOutcomeRepo) RecordOutcome(_ context.Context, outcome *models.RollbackOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *fakeOutcomeRepo) ListOutcomes(_ context.Context, service string, _ int) ([]*models.RollbackOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RollbackOutcome
	for _, o := range r.outcomes {
		if service == "" || o.Service == service {
			out = append(out, o)
		}
	}
	return out, nil
}

// staticVerifier returns a fixed probe result.
type staticVerifier struct {
	success bool
	detail  string
}

func (v staticVerifier) Probe(context.Context, models.ServiceTarget) models.ProbeResult {
	return models.ProbeResult{
		Timestamp: time.Now(),
		Success:   v.success,
		Detail:    v.detail,
	}
}

var errBoom = errors.New("boom")
