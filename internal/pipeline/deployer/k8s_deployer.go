package deployer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const (
	defaultServingImage = "nginx:alpine"
	servingRoot         = "/usr/share/nginx/html"
	containerPort       = 80

	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "corona-deployments"
	changeCauseKey = "kubernetes.io/change-cause"
)

// K8sDeployer serves a build output from a Deployment that mounts the output
// directory from the node, fronted by a Service.
type K8sDeployer struct {
	defaultImage string
	logger       *zap.Logger
	k8sClient    K8sClient
}

func NewK8sDeployer(cfg *config.KubernetesConfig, client K8sClient, logger *zap.Logger) *K8sDeployer {
	image := cfg.DefaultImage
	if image == "" {
		image = defaultServingImage
	}
	return &K8sDeployer{
		defaultImage: image,
		logger:       logger,
		k8sClient:    client,
	}
}

func (d *K8sDeployer) Kind() types.DeployKind {
	return types.DeployKubernetes
}

func (d *K8sDeployer) Deploy(ctx context.Context, build types.BuildResult, log *runlog.Log) (types.StrategyResult, error) {
	if !validate(build, log) {
		return types.StrategyResult{IsError: true}, nil
	}
	cfg := build.Target.Deploy.Kubernetes

	image := cfg.Image
	if image == "" {
		image = d.defaultImage
	}

	d.logger.Info("deploying to kubernetes",
		zap.String("namespace", cfg.Namespace),
		zap.String("name", cfg.Name),
		zap.String("image", image))

	deployment := d.buildDeployment(cfg, image, build)
	action, err := d.upsertDeployment(ctx, cfg.Namespace, deployment)
	if err != nil {
		return types.StrategyResult{IsError: true}, err
	}
	log.Infof("Deployment %s/%s %s", cfg.Namespace, cfg.Name, action)

	service := buildService(cfg)
	action, err = d.upsertService(ctx, cfg.Namespace, service)
	if err != nil {
		return types.StrategyResult{IsError: true}, err
	}
	log.Infof("Service %s/%s %s (port %d)", cfg.Namespace, cfg.Name, action, cfg.Port)

	return types.StrategyResult{
		Output:  fmt.Sprintf("%s/%s serving %s", cfg.Namespace, cfg.Name, build.OutputPath),
		IsError: false,
	}, nil
}

func (d *K8sDeployer) buildDeployment(cfg *types.KubernetesConfig, image string, build types.BuildResult) *appsv1.Deployment {
	labels := map[string]string{"app": cfg.Name}
	replicas := cfg.Replicas
	hostPathType := corev1.HostPathDirectory

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Labels: map[string]string{
				"app":          cfg.Name,
				managedByLabel: managedByValue,
			},
			Annotations: map[string]string{
				changeCauseKey: fmt.Sprintf("Deployed %s from %s", build.Target.Name, build.OutputPath),
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: labels,
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  cfg.Name,
							Image: image,
							Ports: []corev1.ContainerPort{
								{
									ContainerPort: containerPort,
								},
							},
							VolumeMounts: []corev1.VolumeMount{
								{
									Name:      "content",
									MountPath: servingRoot,
									ReadOnly:  true,
								},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "content",
							VolumeSource: corev1.VolumeSource{
								HostPath: &corev1.HostPathVolumeSource{
									Path: build.OutputPath,
									Type: &hostPathType,
								},
							},
						},
					},
				},
			},
		},
	}
}

func buildService(cfg *types.KubernetesConfig) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Labels: map[string]string{
				"app":          cfg.Name,
				managedByLabel: managedByValue,
			},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{
				"app": cfg.Name,
			},
			Ports: []corev1.ServicePort{
				{
					Port:       int32(cfg.Port),
					TargetPort: intstr.FromInt32(containerPort),
				},
			},
			Type: corev1.ServiceTypeClusterIP,
		},
	}
}

func (d *K8sDeployer) upsertDeployment(ctx context.Context, namespace string, deployment *appsv1.Deployment) (string, error) {
	_, err := d.k8sClient.CreateDeployment(ctx, namespace, deployment)
	if err == nil {
		return "created", nil
	}
	if !k8serrors.IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to create deployment: %w", err)
	}

	existing, err := d.k8sClient.GetDeployment(ctx, namespace, deployment.Name)
	if err != nil {
		return "", fmt.Errorf("failed to get deployment: %w", err)
	}
	deployment.ResourceVersion = existing.ResourceVersion

	if _, err := d.k8sClient.UpdateDeployment(ctx, namespace, deployment); err != nil {
		return "", fmt.Errorf("failed to update deployment: %w", err)
	}
	return "updated", nil
}

func (d *K8sDeployer) upsertService(ctx context.Context, namespace string, service *corev1.Service) (string, error) {
	_, err := d.k8sClient.CreateService(ctx, namespace, service)
	if err == nil {
		return "created", nil
	}
	if !k8serrors.IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to create service: %w", err)
	}

	existing, err := d.k8sClient.GetService(ctx, namespace, service.Name)
	if err != nil {
		return "", fmt.Errorf("failed to get service: %w", err)
	}
	service.ResourceVersion = existing.ResourceVersion
	service.Spec.ClusterIP = existing.Spec.ClusterIP
	service.Spec.ClusterIPs = existing.Spec.ClusterIPs

	if _, err := d.k8sClient.UpdateService(ctx, namespace, service); err != nil {
		return "", fmt.Errorf("failed to update service: %w", err)
	}
	return "updated", nil
}
