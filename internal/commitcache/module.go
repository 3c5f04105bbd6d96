package commitcache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/config"
	"github.com/elskow/corona-deployments/internal/pipeline"
	"github.com/elskow/corona-deployments/internal/server"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(config *config.AppConfig) (*redis.Client, error) {
				return NewClient(&config.Redis)
			},
			func(client *redis.Client, p *pipeline.Pipeline, config *config.AppConfig, logger *zap.Logger) *Cache {
				return New(client, p, config.Redis.CommitTTL, logger)
			},
			fx.Annotate(
				func(client *redis.Client) server.HealthCheck {
					return server.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
						if client == nil {
							return nil
						}
						return client.Ping(ctx).Err()
					}}
				},
				fx.ResultTags(`group:"health"`),
			),
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lifecycle fx.Lifecycle, client *redis.Client) {
	lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if client == nil {
				return nil
			}
			return client.Close()
		},
	})
}
