package deployer

import (
	"context"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
	"github.com/elskow/corona-deployments/internal/pipeline/strategy"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// Deployer publishes a successful build. Deploying the same target twice
// updates the existing deployment in place.
type Deployer interface {
	Kind() types.DeployKind
	Deploy(ctx context.Context, build types.BuildResult, log *runlog.Log) (types.StrategyResult, error)
}

type Registry = strategy.Registry[types.DeployKind, Deployer]

// NewRegistry wires the deploy strategies available on this host. Kubernetes
// is registered only when enabled and a cluster configuration can be loaded.
func NewRegistry(cfg *config.PipelineConfig, runner shell.Runner, logger *zap.Logger) (*Registry, error) {
	deployers := []Deployer{
		NewIISDeployer(NewAppCmdSiteManager(&cfg.Deploy.IIS, runner), logger),
		NewStaticDeployer(&cfg.Deploy.Static, logger),
	}

	if cfg.Deploy.Kubernetes.Enabled {
		client, err := NewK8sClientFromConfig(cfg.Deploy.Kubernetes.Kubeconfig)
		if err != nil {
			logger.Warn("kubernetes deploy strategy disabled", zap.Error(err))
		} else {
			deployers = append(deployers, NewK8sDeployer(&cfg.Deploy.Kubernetes, client, logger))
		}
	}

	return strategy.NewRegistry[types.DeployKind, Deployer](deployers...)
}

// validate checks the target's deploy payload. Invalid payloads are reported
// in the log and turned into a failed result.
func validate(build types.BuildResult, log *runlog.Log) bool {
	if err := build.Target.Deploy.Validate(build.Target.DeployKind); err != nil {
		log.Errorf("Invalid deploy configuration for %s: %v", build.Target.Name, err)
		return false
	}
	return true
}
