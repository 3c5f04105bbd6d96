package builder

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const (
	defaultDotNetBinary        = "dotnet"
	defaultDotNetConfiguration = "Release"
	defaultDotNetRuntime       = "win-x64"

	dotNetErrorMarker = ": error"
)

type DotNetBuilder struct {
	binary        string
	configuration string
	runtime       string
	runner        shell.Runner
	logger        *zap.Logger
}

func NewDotNetBuilder(cfg *config.DotNetConfig, runner shell.Runner, logger *zap.Logger) *DotNetBuilder {
	b := &DotNetBuilder{
		binary:        cfg.Binary,
		configuration: cfg.Configuration,
		runtime:       cfg.Runtime,
		runner:        runner,
		logger:        logger,
	}
	if b.binary == "" {
		b.binary = defaultDotNetBinary
	}
	if b.configuration == "" {
		b.configuration = defaultDotNetConfiguration
	}
	if b.runtime == "" {
		b.runtime = defaultDotNetRuntime
	}
	return b
}

func (b *DotNetBuilder) Kind() types.BuildKind {
	return types.BuildDotNetCore
}

func (b *DotNetBuilder) Build(ctx context.Context, target types.BuildTarget, sourcePath, outPath string, log *runlog.Log) (types.StrategyResult, error) {
	args := []string{
		"publish", sourcePath,
		"-c", b.configuration,
		"--self-contained",
		"-r", b.runtime,
		"-o", outPath,
	}
	log.Info(b.binary + " " + strings.Join(args, " "))

	b.logger.Info("starting dotnet publish",
		zap.String("target", target.Name),
		zap.String("source", sourcePath))

	output, err := b.runner.Run(ctx, "", b.binary, args...)
	isError := err != nil ||
		strings.TrimSpace(output) == "" ||
		strings.Contains(output, dotNetErrorMarker)

	if err != nil && !shell.IsExitError(err) {
		return types.StrategyResult{Output: output, IsError: true}, err
	}

	return types.StrategyResult{Output: output, IsError: isError}, nil
}
