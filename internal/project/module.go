package project

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/elskow/corona-deployments/internal/scheduler"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(db *gorm.DB) Repository {
				return NewRepository(db)
			},
			func(repo Repository) scheduler.ProjectLister {
				return repo
			},
			func(repo Repository) scheduler.JobStore {
				return repo
			},
		),
	)
}
