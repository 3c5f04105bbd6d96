package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline"
	pipelineconfig "github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(metrics *pipeline.MetricsCollector) Metrics {
				return metrics
			},
			newActionFactory,
			NewSupervisor,
		),
		fx.Invoke(registerHooks),
	)
}

func newActionFactory(
	jobs JobStore,
	p *pipeline.Pipeline,
	cfg *Config,
	pipelineCfg *pipelineconfig.PipelineConfig,
	logger *zap.Logger,
) ActionFactory {
	var opts []runlog.Option
	if pipelineCfg.LogMaxBytes > 0 {
		opts = append(opts, runlog.WithMaxBytes(pipelineCfg.LogMaxBytes))
	}
	base := runlog.New(logger, opts...)

	return func(project types.Project) Action {
		log := base.With(zap.String("project", project.Name))
		return NewJobAction(project.ID, jobs, p, cfg.PollInterval, log, logger)
	}
}

func registerHooks(
	lifecycle fx.Lifecycle,
	supervisor *Supervisor,
	cleanup *pipeline.CleanupManager,
	cfg *Config,
	pipelineCfg *pipelineconfig.PipelineConfig,
	metrics Metrics,
	logger *zap.Logger,
) {
	var cleanupRunner *Runner
	if pipelineCfg.Cleanup.Enabled {
		cleanupRunner = NewRunner("cleanup", cleanup, cfg.CleanupInterval, metrics, logger)
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			supervisor.Start()
			if cleanupRunner != nil {
				cleanupRunner.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping scheduler...")
			if cleanupRunner != nil {
				cleanupRunner.Stop()
			}
			supervisor.Stop()
			return nil
		},
	})
}
