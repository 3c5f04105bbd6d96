// Command admin manages users, projects and jobs of a corona deployment
// installation from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/elskow/corona-deployments/internal/app"
	"github.com/elskow/corona-deployments/internal/auth"
	"github.com/elskow/corona-deployments/internal/commitcache"
	"github.com/elskow/corona-deployments/internal/project"
	"github.com/elskow/corona-deployments/internal/server"
)

const usage = `usage: admin <command> [flags]

commands:
  create-user     create a user and print its generated password
  login           print a session token
  create-project  register a project (token required)
  add-target      add a build target to a project (token required)
  commits         list recent commits of a project
  create-cursor   pin a listed commit of a project (token required)
  enqueue         create a build-and-deploy job (token required)
  jobs            list the jobs of a project
  job             print the state and log of a job
`

type deps struct {
	Auth     *auth.Service
	Projects project.Repository
	Commits  *commitcache.Cache
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvTesting)
	}

	if err := execute(cmd, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func execute(cmd command, args []string) error {
	var d deps
	application := fx.New(
		app.Core(),
		fx.NopLogger,
		fx.Populate(&d.Auth, &d.Projects, &d.Commits),
	)
	if err := application.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		_ = application.Stop(stopCtx)
	}()

	runCtx, runCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer runCancel()
	return cmd(runCtx, &d, args, os.Stdout)
}
