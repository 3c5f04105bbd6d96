package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/deployer"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type DeployManager struct {
	deployers *deployer.Registry
	metrics   *MetricsCollector
	logger    *zap.Logger
}

func NewDeployManager(deployers *deployer.Registry, metrics *MetricsCollector, logger *zap.Logger) *DeployManager {
	return &DeployManager{
		deployers: deployers,
		metrics:   metrics,
		logger:    logger,
	}
}

// DeployAll deploys build results one after another with the same per-target
// independence as BuildAll.
func (m *DeployManager) DeployAll(ctx context.Context, builds []types.BuildResult, log *runlog.Log) []types.DeployResult {
	results := make([]types.DeployResult, 0, len(builds))

	for _, b := range builds {
		t := b.Target
		log.Infof("Deploying Target: %s %s %s", t.DeployKind, t.Name, b.OutputPath)

		strategy, err := m.deployers.Resolve(t.DeployKind)
		if err != nil {
			log.Errorf("Unknown deploy target type: %s", t.DeployKind)
			continue
		}

		start := time.Now()
		var out types.StrategyResult
		err = guard(m.logger, "deploy "+t.Name, func() error {
			var deployErr error
			out, deployErr = strategy.Deploy(ctx, b, log)
			return deployErr
		})
		if err != nil {
			log.Err(err)
			out.IsError = true
		}

		logStrategyOutput(log, out)
		results = append(results, types.DeployResult{Build: b, Output: out.Output, HasErrors: out.IsError})
		m.metrics.ObserveTarget(PhaseDeploy, string(t.DeployKind), !out.IsError, time.Since(start))
	}

	return results
}
