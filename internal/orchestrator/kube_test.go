package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"
)

func int32ptr(n int32) *int32 { return &n }

func testDeployment(name string, replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			UID:       types.UID("uid-" + name),
		},
		Spec: appsv1.DeploymentSpec{Replicas: int32ptr(replicas)},
	}
}

func testService(name string, selector map[string]string, clusterIP string, port int32) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: corev1.ServiceSpec{
			Selector:  selector,
			ClusterIP: clusterIP,
			Ports:     []corev1.ServicePort{{Port: port}},
		},
	}
}

func testReplicaSet(name, owner, revision string) *appsv1.ReplicaSet {
	return &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   "default",
			Annotations: map[string]string{revisionAnnotation: revision},
			OwnerReferences: []metav1.OwnerReference{{
				Kind: "Deployment",
				Name: owner,
				UID:  types.UID("uid-" + owner),
			}},
		},
		Spec: appsv1.ReplicaSetSpec{
			Replicas: int32ptr(1),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"app":                "web",
						podTemplateHashLabel: name,
					},
				},
			},
		},
	}
}

func TestGetResource(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("web", 3),
		testService("web", map[string]string{SelectorLabel: "blue", "app": "web"}, "10.0.0.1", 8080),
	)
	c := NewWithClientset(clientset, nil, "default")
	ctx := context.Background()

	dep, err := c.GetResource(ctx, KindDeployment, "web")
	require.NoError(t, err)
	assert.Equal(t, int32(3), dep.Replicas)

	svc, err := c.GetResource(ctx, KindService, "web")
	require.NoError(t, err)
	assert.Equal(t, "blue", svc.Selector[SelectorLabel])

	_, err = c.GetResource(ctx, KindDeployment, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchSelectorPreservesOtherKeys(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testService("web", map[string]string{SelectorLabel: "blue", "app": "web"}, "10.0.0.1", 8080),
	)
	c := NewWithClientset(clientset, nil, "default")

	require.NoError(t, c.PatchSelector(context.Background(), "web", "green"))

	svc, err := clientset.CoreV1().Services("default").Get(context.Background(), "web", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "green", svc.Spec.Selector[SelectorLabel])
	assert.Equal(t, "web", svc.Spec.Selector["app"], "merge patch keeps unrelated selector keys")
}

func TestScaleDeployment(t *testing.T) {
	clientset := fake.NewSimpleClientset(testDeployment("web-blue", 3))
	c := NewWithClientset(clientset, nil, "default")

	require.NoError(t, c.ScaleDeployment(context.Background(), "web-blue", 0))

	dep, err := clientset.AppsV1().Deployments("default").Get(context.Background(), "web-blue", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), *dep.Spec.Replicas)

	assert.ErrorIs(t, c.ScaleDeployment(context.Background(), "ghost", 0), ErrNotFound)
}

func TestListRevisionsSortedAscending(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("web", 3),
		testReplicaSet("web-ccc", "web", "3"),
		testReplicaSet("web-aaa", "web", "1"),
		testReplicaSet("web-bbb", "web", "2"),
		testReplicaSet("other-rs", "other", "9"),
	)
	c := NewWithClientset(clientset, nil, "default")

	revs, err := c.ListRevisions(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, revs, 3, "only owned replicasets count")
	assert.Equal(t, []int{1, 2, 3}, []int{revs[0].Number, revs[1].Number, revs[2].Number})
}

func TestListRevisionsRequiresMatchingOwnerUID(t *testing.T) {
	// A ReplicaSet naming the deployment as owner but with a stale UID
	// belongs to a deleted-and-recreated deployment, not this one.
	stray := testReplicaSet("web-stray", "web", "4")
	stray.OwnerReferences[0].UID = "uid-previous-incarnation"
	clientset := fake.NewSimpleClientset(
		testDeployment("web", 3),
		testReplicaSet("web-aaa", "web", "1"),
		stray,
	)
	c := NewWithClientset(clientset, nil, "default")

	revs, err := c.ListRevisions(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, 1, revs[0].Number)
}

func TestUndoRolloutRequiresHistory(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("web", 3),
		testReplicaSet("web-only", "web", "1"),
	)
	c := NewWithClientset(clientset, nil, "default")

	err := c.UndoRollout(context.Background(), "web")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestResolveAddress(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testService("web", nil, "10.0.0.1", 8080),
		testService("headless", nil, "None", 9090),
	)
	c := NewWithClientset(clientset, nil, "default")

	addr, err := c.ResolveAddress(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", addr)

	addr, err = c.ResolveAddress(context.Background(), "headless")
	require.NoError(t, err)
	assert.Equal(t, "headless.default.svc.cluster.local:9090", addr)
}

func TestFlagConfigRoundTrip(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: FlagConfigName("checkout"), Namespace: "default"},
		Data: map[string]string{
			flagConfigKey: `{"flags":{"beta":{"enabled":true,"rollout":50}}}`,
		},
	})
	c := NewWithClientset(clientset, nil, "default")
	ctx := context.Background()

	set, err := c.GetFlagConfig(ctx, "checkout")
	require.NoError(t, err)
	require.Contains(t, set.Flags, "beta")
	assert.True(t, set.Flags["beta"].Enabled)

	set.DisableAll()
	require.NoError(t, c.UpdateFlagConfig(ctx, "checkout", set))

	reloaded, err := c.GetFlagConfig(ctx, "checkout")
	require.NoError(t, err)
	assert.False(t, reloaded.Flags["beta"].Enabled)
	assert.Zero(t, reloaded.Flags["beta"].Rollout)
}

func TestGetFlagConfigMissingKeyIsRejected(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: FlagConfigName("checkout"), Namespace: "default"},
		Data:       map[string]string{"unrelated": "x"},
	})
	c := NewWithClientset(clientset, nil, "default")

	_, err := c.GetFlagConfig(context.Background(), "checkout")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestWaitForCondition(t *testing.T) {
	dep := testDeployment("web", 2)
	dep.Status = appsv1.DeploymentStatus{
		ReadyReplicas:     2,
		AvailableReplicas: 2,
	}
	clientset := fake.NewSimpleClientset(dep)
	c := NewWithClientset(clientset, nil, "default")

	assert.NoError(t, c.WaitForCondition(context.Background(), "web", ConditionAvailable, time.Second))
}

func TestWaitForConditionTimeout(t *testing.T) {
	clientset := fake.NewSimpleClientset(testDeployment("web", 2))
	c := NewWithClientset(clientset, nil, "default")

	err := c.WaitForCondition(context.Background(), "web", ConditionAvailable, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestPodUsageWithoutMetricsServer(t *testing.T) {
	c := NewWithClientset(fake.NewSimpleClientset(), nil, "default")
	usages, err := c.PodUsage(context.Background(), "app=web")
	require.NoError(t, err)
	assert.Nil(t, usages)
}

func TestFlagConfigName(t *testing.T) {
	assert.Equal(t, "checkout-feature-flags", FlagConfigName("checkout"))
}
