package app

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/auth"
	"github.com/elskow/corona-deployments/internal/commitcache"
	"github.com/elskow/corona-deployments/internal/config"
	"github.com/elskow/corona-deployments/internal/database"
	"github.com/elskow/corona-deployments/internal/migration"
	"github.com/elskow/corona-deployments/internal/pipeline"
	pipelineconfig "github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/project"
	"github.com/elskow/corona-deployments/internal/scheduler"
	"github.com/elskow/corona-deployments/internal/server"
)

// Module combines all application modules of the daemon
func Module() fx.Option {
	return fx.Options(
		Core(),

		// Schema
		migration.Module(),

		// Supervisor, runners and cleanup
		scheduler.Module(),

		// Metrics and health endpoints
		fx.Provide(server.NewServer),
		fx.Invoke(registerHooks),
	)
}

// Core provides configuration, persistence and the pipeline without starting
// any background work.
func Core() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(
			server.LoadConfig,
			func(cfg *config.AppConfig) *pipelineconfig.PipelineConfig {
				return &cfg.Pipeline
			},
			func(cfg *config.AppConfig) *scheduler.Config {
				return &cfg.Scheduler
			},
		),

		// Metrics registry
		fx.Provide(newRegistry),

		database.Module(),
		project.Module(),
		auth.NewModule(),
		pipeline.Module(),
		commitcache.Module(),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

type registryResult struct {
	fx.Out

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

func newRegistry() registryResult {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registryResult{Registerer: reg, Gatherer: reg}
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			return srv.Stop(ctx)
		},
	})
}
