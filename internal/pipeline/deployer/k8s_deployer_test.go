package deployer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type testCase struct {
	name       string
	build      types.BuildResult
	setupMocks func(*testing.T, *fakeCluster)
	validate   func(*testing.T, *fakeCluster, types.StrategyResult, error)
}

func k8sBuild(image string, replicas int32) types.BuildResult {
	return types.BuildResult{
		Target: types.BuildTarget{
			Name:       "web",
			DeployKind: types.DeployKubernetes,
			Deploy: types.DeployConfig{
				Kubernetes: &types.KubernetesConfig{
					Namespace: "default",
					Name:      "test-app",
					Image:     image,
					Port:      8080,
					Replicas:  replicas,
				},
			},
		},
		OutputPath: "/srv/checkouts/app_1/web",
	}
}

func TestK8sDeployer_Deploy(t *testing.T) {
	tests := []testCase{
		{
			name:  "successful deployment",
			build: k8sBuild("", 2),
			validate: func(t *testing.T, client *fakeCluster, result types.StrategyResult, err error) {
				require.NoError(t, err)
				assert.False(t, result.IsError)

				deployment, err := client.GetDeployment(context.TODO(), "default", "test-app")
				require.NoError(t, err)
				assert.Equal(t, int32(2), *deployment.Spec.Replicas)
				container := deployment.Spec.Template.Spec.Containers[0]
				assert.Equal(t, "nginx:alpine", container.Image)
				assert.Equal(t, servingRoot, container.VolumeMounts[0].MountPath)
				assert.Equal(t, "/srv/checkouts/app_1/web", deployment.Spec.Template.Spec.Volumes[0].HostPath.Path)

				svc, err := client.GetService(context.TODO(), "default", "test-app")
				require.NoError(t, err)
				assert.Equal(t, int32(8080), svc.Spec.Ports[0].Port)
				assert.Equal(t, int32(80), svc.Spec.Ports[0].TargetPort.IntVal)
			},
		},
		{
			name:  "update existing deployment",
			build: k8sBuild("test-image:v2", 1),
			setupMocks: func(t *testing.T, client *fakeCluster) {
				_, err := client.CreateDeployment(context.TODO(), "default", createTestDeployment("test-app", "test-image:v1"))
				require.NoError(t, err)
				_, err = client.CreateService(context.TODO(), "default", &corev1.Service{
					ObjectMeta: metav1.ObjectMeta{Name: "test-app", Namespace: "default"},
					Spec:       corev1.ServiceSpec{ClusterIP: "10.0.0.12"},
				})
				require.NoError(t, err)
			},
			validate: func(t *testing.T, client *fakeCluster, result types.StrategyResult, err error) {
				require.NoError(t, err)
				assert.False(t, result.IsError)

				deployment, err := client.GetDeployment(context.TODO(), "default", "test-app")
				require.NoError(t, err)
				assert.Equal(t, "test-image:v2", deployment.Spec.Template.Spec.Containers[0].Image)

				svc, err := client.GetService(context.TODO(), "default", "test-app")
				require.NoError(t, err)
				assert.Equal(t, "10.0.0.12", svc.Spec.ClusterIP)
				assert.Equal(t, int32(8080), svc.Spec.Ports[0].Port)
			},
		},
		{
			name:  "invalid deploy config",
			build: k8sBuild("", 0),
			validate: func(t *testing.T, client *fakeCluster, result types.StrategyResult, err error) {
				require.NoError(t, err)
				assert.True(t, result.IsError)

				list, err := client.GetClientset().AppsV1().Deployments("default").List(context.TODO(), metav1.ListOptions{})
				require.NoError(t, err)
				assert.Empty(t, list.Items)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testClient := newFakeCluster()
			deployer := NewK8sDeployer(&config.KubernetesConfig{}, testClient, zap.NewNop())

			if tt.setupMocks != nil {
				tt.setupMocks(t, testClient)
			}

			result, err := deployer.Deploy(context.TODO(), tt.build, runlog.New(zap.NewNop()))
			tt.validate(t, testClient, result, err)
		})
	}
}

func TestK8sDeployer_DeployTwice(t *testing.T) {
	testClient := newFakeCluster()
	deployer := NewK8sDeployer(&config.KubernetesConfig{DefaultImage: "httpd:2.4"}, testClient, zap.NewNop())
	log := runlog.New(zap.NewNop())

	for i := 0; i < 2; i++ {
		result, err := deployer.Deploy(context.TODO(), k8sBuild("", 1), log)
		require.NoError(t, err)
		assert.False(t, result.IsError)
	}

	deployment, err := testClient.GetDeployment(context.TODO(), "default", "test-app")
	require.NoError(t, err)
	assert.Equal(t, "httpd:2.4", deployment.Spec.Template.Spec.Containers[0].Image)
	assert.Contains(t, log.Snapshot(), "Deployment default/test-app updated")
}

func createTestDeployment(name, image string) *appsv1.Deployment {
	replicas := int32(1)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Annotations: map[string]string{},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{
					"app": name,
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"app": name,
					},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  name,
							Image: image,
							Ports: []corev1.ContainerPort{
								{
									ContainerPort: 80,
								},
							},
						},
					},
				},
			},
		},
	}
}
