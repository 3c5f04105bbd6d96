package main

import (
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/app"
	"github.com/elskow/corona-deployments/internal/server"
)

const (
	startTimeout = 30 * time.Second
	// Long enough for in-flight pipeline runs to observe cancellation.
	stopTimeout = time.Minute
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = server.EnvDevelopment
		os.Setenv("APP_ENV", env)
	}

	bootLogger, err := server.NewLogger(env)
	if err != nil {
		panic(err)
	}
	defer bootLogger.Sync()

	corona := fx.New(
		app.Module(),
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	if err := corona.Err(); err != nil {
		bootLogger.Fatal("Failed to assemble application", zap.Error(err))
	}

	corona.Run()
}
