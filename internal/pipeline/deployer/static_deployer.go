package deployer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const defaultStaticRoot = "/var/www/html"

// StaticDeployer publishes a build output as <root>/<site>, a symlink that is
// swapped atomically on every deploy.
type StaticDeployer struct {
	root   string
	logger *zap.Logger
}

func NewStaticDeployer(cfg *config.StaticConfig, logger *zap.Logger) *StaticDeployer {
	root := cfg.Root
	if root == "" {
		logger.Warn("static root not configured, using default", zap.String("root", defaultStaticRoot))
		root = defaultStaticRoot
	}
	return &StaticDeployer{
		root:   root,
		logger: logger,
	}
}

func (d *StaticDeployer) Kind() types.DeployKind {
	return types.DeployStatic
}

func (d *StaticDeployer) Deploy(_ context.Context, build types.BuildResult, log *runlog.Log) (types.StrategyResult, error) {
	if !validate(build, log) {
		return types.StrategyResult{IsError: true}, nil
	}

	info, err := os.Stat(build.OutputPath)
	if err != nil || !info.IsDir() {
		log.Errorf("Build output %s is not a directory", build.OutputPath)
		return types.StrategyResult{IsError: true}, nil
	}

	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return types.StrategyResult{IsError: true}, fmt.Errorf("failed to create static root: %w", err)
	}

	site := build.Target.Deploy.Static.SiteName
	link := filepath.Join(d.root, site)

	action := "created"
	if current, err := os.Readlink(link); err == nil {
		action = "updated"
		log.Infof("Site %s currently points to %s", site, current)
	} else if _, statErr := os.Lstat(link); statErr == nil {
		log.Errorf("%s exists and is not a symlink", link)
		return types.StrategyResult{IsError: true}, nil
	}

	d.logger.Info("deploying to static directory",
		zap.String("site", site),
		zap.String("target", build.OutputPath))

	if err := swapSymlink(build.OutputPath, link); err != nil {
		return types.StrategyResult{IsError: true}, err
	}

	log.Infof("Site %s %s: %s -> %s", site, action, link, build.OutputPath)
	return types.StrategyResult{Output: link, IsError: false}, nil
}

// swapSymlink points link at target by renaming a fresh symlink over it.
func swapSymlink(target, link string) error {
	tmp := fmt.Sprintf("%s.tmp-%d", link, time.Now().UnixNano())
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", link, err)
	}
	return nil
}
