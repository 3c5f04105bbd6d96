package deployer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type IISDeployer struct {
	sites  SiteManager
	logger *zap.Logger
}

func NewIISDeployer(sites SiteManager, logger *zap.Logger) *IISDeployer {
	return &IISDeployer{
		sites:  sites,
		logger: logger,
	}
}

func (d *IISDeployer) Kind() types.DeployKind {
	return types.DeployIIS
}

// Deploy adds the site when it is absent. An existing site is stopped,
// repointed at the new output and started again.
func (d *IISDeployer) Deploy(ctx context.Context, build types.BuildResult, log *runlog.Log) (types.StrategyResult, error) {
	if !validate(build, log) {
		return types.StrategyResult{IsError: true}, nil
	}
	cfg := build.Target.Deploy.IIS

	sites, err := d.sites.ListSites(ctx)
	if err != nil {
		return types.StrategyResult{IsError: true}, err
	}

	log.Info("Current sites installed:")
	exists := false
	for _, s := range sites {
		log.Info(s.Name)
		if s.Name == cfg.SiteName {
			exists = true
		}
	}

	d.logger.Info("deploying to iis",
		zap.String("site", cfg.SiteName),
		zap.Bool("exists", exists),
		zap.String("path", build.OutputPath))

	if !exists {
		if err := d.sites.AddSite(ctx, cfg.SiteName, build.OutputPath, cfg.Port); err != nil {
			return types.StrategyResult{IsError: true}, err
		}
		log.Infof("Site %s created on port %d", cfg.SiteName, cfg.Port)
		return types.StrategyResult{Output: fmt.Sprintf("created %s", cfg.SiteName)}, nil
	}

	if err := d.sites.StopSite(ctx, cfg.SiteName); err != nil {
		return types.StrategyResult{IsError: true}, err
	}
	if err := d.sites.SetPhysicalPath(ctx, cfg.SiteName, build.OutputPath); err != nil {
		return types.StrategyResult{IsError: true}, err
	}
	if err := d.sites.StartSite(ctx, cfg.SiteName); err != nil {
		return types.StrategyResult{IsError: true}, err
	}

	log.Infof("Site %s now serves %s", cfg.SiteName, build.OutputPath)
	return types.StrategyResult{Output: fmt.Sprintf("updated %s", cfg.SiteName)}, nil
}
