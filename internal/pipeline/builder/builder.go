package builder

import (
	"context"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
	"github.com/elskow/corona-deployments/internal/pipeline/strategy"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// Builder compiles one build target. The returned result carries the
// strategy's own verdict on the tool output; an error means the tool could
// not be driven at all.
type Builder interface {
	Kind() types.BuildKind
	Build(ctx context.Context, target types.BuildTarget, sourcePath, outPath string, log *runlog.Log) (types.StrategyResult, error)
}

type Registry = strategy.Registry[types.BuildKind, Builder]

// NewRegistry wires the build strategies available on this host. A Docker
// daemon that cannot be reached leaves the docker kind unregistered.
func NewRegistry(cfg *config.PipelineConfig, runner shell.Runner, logger *zap.Logger) (*Registry, error) {
	builders := []Builder{NewDotNetBuilder(&cfg.Build.DotNet, runner, logger)}

	if cfg.Build.Docker.Enabled {
		api, err := NewDockerClient()
		if err != nil {
			logger.Warn("docker build strategy disabled", zap.Error(err))
		} else {
			builders = append(builders, NewDockerBuilder(&cfg.Build.Docker, api, logger))
		}
	}

	return strategy.NewRegistry[types.BuildKind, Builder](builders...)
}
