package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/time/rate"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/pkg/metrics"
)

const (
	// SelectorLabel is the service-selector label that carries the traffic
	// variant ("blue", "green", "stable", "canary").
	SelectorLabel = "version"

	revisionAnnotation   = "deployment.kubernetes.io/revision"
	podTemplateHashLabel = "pod-template-hash"

	// flagConfigSuffix names the ConfigMap holding a service's flag set.
	flagConfigSuffix = "-feature-flags"
	// flagConfigKey is the data key inside that ConfigMap.
	flagConfigKey = "flags.json"

	waitPollInterval = 5 * time.Second
)

// FlagConfigName returns the ConfigMap name holding a service's flag set.
func FlagConfigName(service string) string {
	return service + flagConfigSuffix
}

// KubeClient implements Client against a Kubernetes cluster.
type KubeClient struct {
	clientset kubernetes.Interface
	metrics   metricsclient.Interface // nil when no metrics server access
	namespace string

	// timeout bounds each outbound call; 0 means request context only.
	timeout time.Duration
	// limiter optionally rate-limits outbound API calls. Nil = no limit.
	limiter *rate.Limiter
}

// Options configures the Kubernetes client.
type Options struct {
	KubeconfigPath string
	Context        string
	Namespace      string
	Timeout        time.Duration
	RatePerSec     float64
	RateBurst      int
}

// New creates a Kubernetes-backed orchestrator client. In-cluster config is
// tried first, then the kubeconfig path (or ~/.kube/config).
func New(opts Options) (*KubeClient, error) {
	var config *rest.Config
	var err error

	kubeconfigPath := opts.KubeconfigPath
	if kubeconfigPath == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			homeDir, _ := os.UserHomeDir()
			if homeDir != "" {
				kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
			}
		}
	}
	if config == nil {
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
			&clientcmd.ConfigOverrides{CurrentContext: opts.Context},
		).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	// Metrics client is optional; snapshot capture degrades gracefully.
	mc, err := metricsclient.NewForConfig(config)
	if err != nil {
		mc = nil
	}

	c := &KubeClient{
		clientset: clientset,
		metrics:   mc,
		namespace: opts.Namespace,
		timeout:   opts.Timeout,
	}
	if opts.RatePerSec > 0 && opts.RateBurst > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RateBurst)
	}
	return c, nil
}

// NewWithClientset wraps existing clientsets; used by tests (fake clientset)
// and by callers that manage their own config.
func NewWithClientset(clientset kubernetes.Interface, mc metricsclient.Interface, namespace string) *KubeClient {
	return &KubeClient{clientset: clientset, metrics: mc, namespace: namespace}
}

// callCtx applies rate limiting and the per-call timeout.
func (c *KubeClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	if c.timeout > 0 {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		return cctx, cancel, nil
	}
	return ctx, func() {}, nil
}

func record(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.OrchestratorCallsTotal.WithLabelValues(method, result).Inc()
}

func (c *KubeClient) GetResource(ctx context.Context, kind Kind, name string) (*ResourceState, error) {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	state, err := doWithRetryValue(cctx, defaultRetryAttempts, func() (*ResourceState, error) {
		return c.getResource(cctx, kind, name)
	})
	record("GetResource", err)
	if err != nil {
		return nil, classify(fmt.Sprintf("get %s %q", kind, name), err)
	}
	return state, nil
}

func (c *KubeClient) getResource(ctx context.Context, kind Kind, name string) (*ResourceState, error) {
	switch kind {
	case KindDeployment:
		dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		raw, _ := json.Marshal(dep)
		replicas := int32(0)
		if dep.Spec.Replicas != nil {
			replicas = *dep.Spec.Replicas
		}
		return &ResourceState{
			Kind:     KindDeployment,
			Name:     dep.Name,
			Labels:   dep.Labels,
			Replicas: replicas,
			Raw:      raw,
		}, nil
	case KindService:
		svc, err := c.clientset.CoreV1().Services(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		raw, _ := json.Marshal(svc)
		return &ResourceState{
			Kind:     KindService,
			Name:     svc.Name,
			Labels:   svc.Labels,
			Selector: svc.Spec.Selector,
			Raw:      raw,
		}, nil
	case KindConfigMap:
		cm, err := c.clientset.CoreV1().ConfigMaps(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return nil, err
		}
		raw, _ := json.Marshal(cm)
		return &ResourceState{
			Kind:   KindConfigMap,
			Name:   cm.Name,
			Labels: cm.Labels,
			Raw:    raw,
		}, nil
	}
	return nil, fmt.Errorf("unsupported kind %q", kind)
}

// PatchSelector issues a single merge patch on the service's selector, so
// traffic flips atomically; other selector keys are preserved.
func (c *KubeClient) PatchSelector(ctx context.Context, service, variant string) error {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	patch := fmt.Sprintf(`{"spec":{"selector":{"%s":%q}}}`, SelectorLabel, variant)
	_, err = c.clientset.CoreV1().Services(c.namespace).Patch(
		cctx, service, types.MergePatchType, []byte(patch), metav1.PatchOptions{})
	record("PatchSelector", err)
	return classify(fmt.Sprintf("patch selector of service %q", service), err)
}

func (c *KubeClient) ScaleDeployment(ctx context.Context, name string, replicas int32) error {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	patch := fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas)
	_, err = c.clientset.AppsV1().Deployments(c.namespace).Patch(
		cctx, name, types.MergePatchType, []byte(patch), metav1.PatchOptions{})
	record("ScaleDeployment", err)
	return classify(fmt.Sprintf("scale deployment %q to %d", name, replicas), err)
}

// UndoRollout re-applies the previous revision's pod template onto the
// deployment, the same patch `kubectl rollout undo` issues.
func (c *KubeClient) UndoRollout(ctx context.Context, name string) error {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	replicaSets, err := c.ownedReplicaSets(cctx, name)
	if err != nil {
		record("UndoRollout", err)
		return classify(fmt.Sprintf("undo rollout of %q", name), err)
	}
	if len(replicaSets) < 2 {
		err = fmt.Errorf("deployment %q has no rollout history to undo", name)
		record("UndoRollout", err)
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	// Previous revision = second-highest revision number.
	previous := replicaSets[len(replicaSets)-2]
	template := previous.Spec.Template.DeepCopy()
	delete(template.Labels, podTemplateHashLabel)

	patchObj := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": template,
		},
	}
	patch, err := json.Marshal(patchObj)
	if err != nil {
		record("UndoRollout", err)
		return fmt.Errorf("undo rollout of %q: marshal patch: %w", name, err)
	}
	_, err = c.clientset.AppsV1().Deployments(c.namespace).Patch(
		cctx, name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	record("UndoRollout", err)
	return classify(fmt.Sprintf("undo rollout of %q", name), err)
}

func (c *KubeClient) WaitForCondition(ctx context.Context, name string, cond Condition, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, waitPollInterval, timeout, true,
		func(pollCtx context.Context) (bool, error) {
			dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(pollCtx, name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					return false, err
				}
				// Transient read errors: keep polling until the deadline.
				return false, nil
			}
			return conditionMet(dep, cond), nil
		})
	record("WaitForCondition", err)
	if err != nil {
		if wait.Interrupted(err) {
			return fmt.Errorf("wait for %s of %q: %w", cond, name, ErrTimeout)
		}
		return classify(fmt.Sprintf("wait for %s of %q", cond, name), err)
	}
	return nil
}

func conditionMet(dep *appsv1.Deployment, cond Condition) bool {
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	switch cond {
	case ConditionAvailable:
		return dep.Status.ReadyReplicas >= desired && dep.Status.AvailableReplicas >= desired
	case ConditionRolledOut:
		return dep.Status.ObservedGeneration >= dep.Generation &&
			dep.Status.UpdatedReplicas == desired &&
			dep.Status.AvailableReplicas >= desired
	}
	return false
}

func (c *KubeClient) ListRevisions(ctx context.Context, name string) ([]Revision, error) {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	replicaSets, err := doWithRetryValue(cctx, defaultRetryAttempts, func() ([]appsv1.ReplicaSet, error) {
		return c.ownedReplicaSets(cctx, name)
	})
	record("ListRevisions", err)
	if err != nil {
		return nil, classify(fmt.Sprintf("list revisions of %q", name), err)
	}

	revisions := make([]Revision, 0, len(replicaSets))
	for _, rs := range replicaSets {
		rev := revisionOf(&rs)
		replicas := int32(0)
		if rs.Spec.Replicas != nil {
			replicas = *rs.Spec.Replicas
		}
		revisions = append(revisions, Revision{
			Number:    rev,
			Name:      rs.Name,
			CreatedAt: rs.CreationTimestamp.Time,
			Replicas:  replicas,
		})
	}
	return revisions, nil
}

// ownedReplicaSets returns the ReplicaSets owned by the deployment, sorted
// by revision number ascending.
func (c *KubeClient) ownedReplicaSets(ctx context.Context, name string) ([]appsv1.ReplicaSet, error) {
	dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	list, err := c.clientset.AppsV1().ReplicaSets(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}

	var owned []appsv1.ReplicaSet
	for _, rs := range list.Items {
		for _, owner := range rs.OwnerReferences {
			if owner.Kind == "Deployment" && owner.Name == name && owner.UID == dep.UID {
				owned = append(owned, rs)
				break
			}
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return revisionOf(&owned[i]) < revisionOf(&owned[j])
	})
	return owned, nil
}

func revisionOf(rs *appsv1.ReplicaSet) int {
	var rev int
	fmt.Sscanf(rs.Annotations[revisionAnnotation], "%d", &rev)
	return rev
}

func (c *KubeClient) ResolveAddress(ctx context.Context, service string) (string, error) {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	svc, err := doWithRetryValue(cctx, defaultRetryAttempts, func() (*ResourceState, error) {
		return c.getResource(cctx, KindService, service)
	})
	record("ResolveAddress", err)
	if err != nil {
		return "", classify(fmt.Sprintf("resolve address of %q", service), err)
	}

	var spec struct {
		Spec struct {
			ClusterIP string `json:"clusterIP"`
			Ports     []struct {
				Port int32 `json:"port"`
			} `json:"ports"`
		} `json:"spec"`
	}
	if err := json.Unmarshal(svc.Raw, &spec); err != nil {
		return "", fmt.Errorf("resolve address of %q: %w", service, err)
	}
	port := int32(80)
	if len(spec.Spec.Ports) > 0 {
		port = spec.Spec.Ports[0].Port
	}
	host := spec.Spec.ClusterIP
	if host == "" || host == "None" {
		// Headless service: fall back to the cluster DNS name.
		host = fmt.Sprintf("%s.%s.svc.cluster.local", service, c.namespace)
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

func (c *KubeClient) GetFlagConfig(ctx context.Context, name string) (*models.FeatureFlagSet, error) {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	cmName := FlagConfigName(name)
	cm, err := c.clientset.CoreV1().ConfigMaps(c.namespace).Get(cctx, cmName, metav1.GetOptions{})
	record("GetFlagConfig", err)
	if err != nil {
		return nil, classify(fmt.Sprintf("get flag config %q", cmName), err)
	}

	payload, ok := cm.Data[flagConfigKey]
	if !ok {
		return nil, fmt.Errorf("get flag config %q: %w: missing key %q", cmName, ErrRejected, flagConfigKey)
	}
	var set models.FeatureFlagSet
	if err := json.Unmarshal([]byte(payload), &set); err != nil {
		return nil, fmt.Errorf("get flag config %q: %w: %v", cmName, ErrRejected, err)
	}
	return &set, nil
}

func (c *KubeClient) UpdateFlagConfig(ctx context.Context, name string, set *models.FeatureFlagSet) error {
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("update flag config for %q: %w", name, err)
	}
	cmName := FlagConfigName(name)
	patchObj := map[string]interface{}{
		"data": map[string]string{flagConfigKey: string(payload)},
	}
	patch, _ := json.Marshal(patchObj)
	_, err = c.clientset.CoreV1().ConfigMaps(c.namespace).Patch(
		cctx, cmName, types.MergePatchType, patch, metav1.PatchOptions{})
	record("UpdateFlagConfig", err)
	return classify(fmt.Sprintf("update flag config %q", cmName), err)
}

// PodUsage is best-effort: a missing metrics server yields an empty result,
// never an error, because snapshots must not fail on absent telemetry.
func (c *KubeClient) PodUsage(ctx context.Context, selector string) ([]models.PodUsage, error) {
	if c.metrics == nil {
		return nil, nil
	}
	cctx, cancel, err := c.callCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	list, err := c.metrics.MetricsV1beta1().PodMetricses(c.namespace).List(cctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	record("PodUsage", err)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, classify("pod usage", err)
	}

	usages := make([]models.PodUsage, 0, len(list.Items))
	for _, pm := range list.Items {
		var cpuMilli, memBytes int64
		for _, container := range pm.Containers {
			cpuMilli += container.Usage.Cpu().MilliValue()
			memBytes += container.Usage.Memory().Value()
		}
		usages = append(usages, models.PodUsage{
			Pod:    pm.Name,
			CPU:    fmt.Sprintf("%dm", cpuMilli),
			Memory: fmt.Sprintf("%dMi", memBytes/(1024*1024)),
		})
	}
	return usages, nil
}

var _ Client = (*KubeClient)(nil)
