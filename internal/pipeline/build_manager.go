package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/builder"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
	"github.com/elskow/corona-deployments/internal/pipeline/validator"
)

type BuildManager struct {
	builders  *builder.Registry
	validator validator.Validator
	metrics   *MetricsCollector
	logger    *zap.Logger
}

func NewBuildManager(builders *builder.Registry, validator validator.Validator, metrics *MetricsCollector, logger *zap.Logger) *BuildManager {
	return &BuildManager{
		builders:  builders,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// BuildAll builds targets one after another in list order. Targets with an
// unregistered build kind are logged and left out of the result; every other
// target yields exactly one result whatever its siblings did.
func (m *BuildManager) BuildAll(ctx context.Context, checkoutPath string, targets []types.BuildTarget, log *runlog.Log) []types.BuildResult {
	results := make([]types.BuildResult, 0, len(targets))

	for _, t := range targets {
		log.Infof("Building Target: %s %s %s", t.BuildKind, t.Name, t.RelativePath)

		strategy, err := m.builders.Resolve(t.BuildKind)
		if err != nil {
			log.Errorf("Unknown build target type: %s", t.BuildKind)
			continue
		}

		sourcePath := filepath.Join(checkoutPath, t.RelativePath)
		outPath := filepath.Join(checkoutPath, t.Name)
		result := types.BuildResult{Target: t, OutputPath: outPath}

		if err := m.validator.ValidateBuildTarget(t, checkoutPath); err != nil {
			log.Err(err)
			result.HasErrors = true
			results = append(results, result)
			m.metrics.ObserveTarget(PhaseBuild, string(t.BuildKind), false, 0)
			continue
		}

		start := time.Now()
		var out types.StrategyResult
		err = guard(m.logger, "build "+t.Name, func() error {
			var buildErr error
			out, buildErr = strategy.Build(ctx, t, sourcePath, outPath, log)
			return buildErr
		})
		if err != nil {
			log.Err(err)
			out.IsError = true
		}

		logStrategyOutput(log, out)
		result.HasErrors = out.IsError
		results = append(results, result)
		m.metrics.ObserveTarget(PhaseBuild, string(t.BuildKind), !out.IsError, time.Since(start))
	}

	return results
}

func logStrategyOutput(log *runlog.Log, out types.StrategyResult) {
	if out.IsError {
		log.Errorf("Output: IsError: %t", out.IsError)
		if out.Output != "" {
			log.Error(out.Output)
		}
		return
	}
	log.Infof("Output: IsError: %t", out.IsError)
	if out.Output != "" {
		log.Info(out.Output)
	}
}
