package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/migration"
	"github.com/elskow/corona-deployments/internal/server"
)

func main() {
	command := flag.String("command", "up", "migration command (up/down/down-to/status/version/reset)")
	target := flag.Int64("version", 0, "target version for down-to")
	flag.Parse()

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvDevelopment)
	}

	logger, err := server.NewLogger(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*command, *target, logger); err != nil {
		logger.Fatal("migration failed", zap.String("command", *command), zap.Error(err))
	}
}

func run(command string, target int64, logger *zap.Logger) error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	migrator, err := migration.NewMigrator(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			return err
		}
		logger.Info("Successfully ran migrations")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		logger.Info("Successfully rolled back migrations")

	case "down-to":
		if err := migrator.DownTo(ctx, target); err != nil {
			return err
		}
		logger.Info("Successfully migrated down", zap.Int64("version", target))

	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
		}
		return w.Flush()

	case "version":
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		logger.Info("Current migration version", zap.Int64("version", version), zap.Int64("latest", migrator.LatestVersion()))

	case "reset":
		if err := migrator.Reset(ctx); err != nil {
			return err
		}
		logger.Info("Successfully reset migrations")

	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	return nil
}
