package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const defaultBranch = "main"

type GitImporter struct {
	workspace *Workspace
	logger    *zap.Logger
}

func NewGitImporter(workspace *Workspace, logger *zap.Logger) *GitImporter {
	return &GitImporter{
		workspace: workspace,
		logger:    logger,
	}
}

func (g *GitImporter) Kind() types.RepositoryKind {
	return types.RepositoryGit
}

func (g *GitImporter) Import(ctx context.Context, project *types.Project, auth *types.AuthInfo, commitID string, log *runlog.Log) (string, error) {
	dir, err := g.workspace.Prepare(project.Name)
	if err != nil {
		return "", err
	}

	repo, err := g.clone(ctx, dir, project, auth, log)
	if err != nil {
		discard(g.workspace, dir, log)
		return "", err
	}

	if commitID == "" {
		log.Info("Check out complete.")
		return dir, nil
	}

	log.Infof("Checking out commit %s...", commitID)
	if err := checkoutCommit(repo, commitID); err != nil {
		discard(g.workspace, dir, log)
		return "", err
	}
	log.Info("Check out complete.")

	return dir, nil
}

func (g *GitImporter) ListCommits(ctx context.Context, project *types.Project, auth *types.AuthInfo, count int, log *runlog.Log) ([]types.Commit, error) {
	dir, err := g.Import(ctx, project, auth, "", log)
	if err != nil {
		return nil, err
	}
	defer discard(g.workspace, dir, log)

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: open checkout: %v", types.ErrExternalTool, err)
	}

	commits := make([]types.Commit, 0, max(count, 0))
	if count <= 0 {
		return commits, nil
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return commits, nil
		}
		return nil, fmt.Errorf("%w: resolve HEAD: %v", types.ErrExternalTool, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("%w: read log: %v", types.ErrExternalTool, err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, types.Commit{
			ID:        c.Hash.String(),
			Message:   strings.TrimSpace(c.Message),
			Timestamp: c.Author.When.UTC(),
			Author:    fmt.Sprintf("%s - %s", c.Author.Name, c.Author.Email),
		})
		if len(commits) >= count {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk log: %v", types.ErrExternalTool, err)
	}

	return commits, nil
}

func (g *GitImporter) clone(ctx context.Context, dir string, project *types.Project, auth *types.AuthInfo, log *runlog.Log) (*git.Repository, error) {
	branch := project.Branch
	if branch == "" {
		branch = defaultBranch
	}

	opts := &git.CloneOptions{
		URL:           project.RepositoryURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	}
	if auth != nil {
		opts.Auth = &githttp.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}
	}

	log.Infof("Cloning %s (branch %s) into %s...", project.RepositoryURL, branch, dir)
	g.logger.Debug("git clone",
		zap.String("project", project.Name),
		zap.String("branch", branch),
		zap.String("dir", dir))

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: clone %s: %v", types.ErrExternalTool, project.RepositoryURL, err)
	}
	return repo, nil
}

func checkoutCommit(repo *git.Repository, commitID string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(commitID))
	if err != nil {
		return fmt.Errorf("%w: could not find commit %s: %v", types.ErrExternalTool, commitID, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: open worktree: %v", types.ErrExternalTool, err)
	}

	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("%w: checkout %s: %v", types.ErrExternalTool, commitID, err)
	}
	return nil
}
