package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
	"github.com/elskow/corona-deployments/internal/pipeline/strategy"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// Importer fetches a project's source into an isolated checkout directory.
// It owns the lifetime of directories it creates for commit enumeration.
type Importer interface {
	Kind() types.RepositoryKind

	// Import checks out commitID, or the head of the project's branch when
	// commitID is empty, and returns the checkout directory.
	Import(ctx context.Context, project *types.Project, auth *types.AuthInfo, commitID string, log *runlog.Log) (string, error)

	// ListCommits returns up to count commits, newest first.
	ListCommits(ctx context.Context, project *types.Project, auth *types.AuthInfo, count int, log *runlog.Log) ([]types.Commit, error)
}

type Registry = strategy.Registry[types.RepositoryKind, Importer]

func NewRegistry(cfg *config.PipelineConfig, workspace *Workspace, runner shell.Runner, logger *zap.Logger) (*Registry, error) {
	return strategy.NewRegistry[types.RepositoryKind, Importer](
		NewGitImporter(workspace, logger),
		NewSvnImporter(&cfg.Svn, workspace, runner, logger),
	)
}

func discard(workspace *Workspace, dir string, log *runlog.Log) {
	if err := workspace.Cleanup(dir); err != nil {
		log.Err(err)
	}
}
