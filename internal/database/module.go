package database

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/config"
	"github.com/elskow/corona-deployments/internal/server"
)

func Module() fx.Option {
	return fx.Module("database",
		fx.Provide(
			newManager,
			(*Manager).DB,
			fx.Annotate(healthCheck, fx.ResultTags(`group:"health"`)),
		),
	)
}

func newManager(lc fx.Lifecycle, cfg *config.AppConfig, logger *zap.Logger) (*Manager, error) {
	manager, err := Open(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(manager.Close))
	return manager, nil
}

func healthCheck(manager *Manager) server.HealthCheck {
	return server.HealthCheck{Name: "database", Check: manager.Ping}
}
