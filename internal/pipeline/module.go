package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/builder"
	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/deployer"
	"github.com/elskow/corona-deployments/internal/pipeline/importer"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
	"github.com/elskow/corona-deployments/internal/pipeline/validator"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				shell.NewExecRunner,
				fx.As(new(shell.Runner)),
			),
			fx.Annotate(
				validator.NewTargetValidator,
				fx.As(new(validator.Validator)),
			),
			func(config *config.PipelineConfig) (*importer.Workspace, error) {
				return importer.NewWorkspace(config.BaseDirectory)
			},
			importer.NewRegistry,
			builder.NewRegistry,
			deployer.NewRegistry,
			func(reg prometheus.Registerer) (*MetricsCollector, error) {
				return NewMetricsCollector(reg)
			},
			NewImportManager,
			NewBuildManager,
			NewDeployManager,
			NewPipeline,
			func(config *config.PipelineConfig, workspace *importer.Workspace, logger *zap.Logger) *CleanupManager {
				return NewCleanupManager(&config.Cleanup, workspace, logger)
			},
		),
	)
}
