package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/corona-deployments/internal/config"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			func(db *gorm.DB) Repository {
				return NewRepository(db)
			},
			func(config *config.AppConfig, log *zap.Logger, repo Repository) *Service {
				return NewService(&config.Auth, log, repo)
			},
		),
	)
}
