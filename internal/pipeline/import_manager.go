package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/importer"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
	"github.com/elskow/corona-deployments/internal/pipeline/validator"
)

type ImportManager struct {
	importers *importer.Registry
	validator validator.Validator
	metrics   *MetricsCollector
	logger    *zap.Logger
}

func NewImportManager(importers *importer.Registry, validator validator.Validator, metrics *MetricsCollector, logger *zap.Logger) *ImportManager {
	return &ImportManager{
		importers: importers,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// Import checks the project out at commitID, or at the head of its branch
// when commitID is empty. Failures are logged and reported through
// HasErrors.
func (m *ImportManager) Import(ctx context.Context, project *types.Project, auth *types.AuthInfo, commitID string, log *runlog.Log) types.ImportResult {
	start := time.Now()
	result := m.doImport(ctx, project, auth, commitID, log)
	m.metrics.ObserveTarget(PhaseImport, string(project.RepositoryKind), !result.HasErrors, time.Since(start))
	return result
}

func (m *ImportManager) doImport(ctx context.Context, project *types.Project, auth *types.AuthInfo, commitID string, log *runlog.Log) types.ImportResult {
	if err := m.validator.ValidateAuthInfo(auth); err != nil {
		log.Errorf("Validation for repository credentials did not pass: %v", err)
		return types.ImportResult{HasErrors: true}
	}

	strategy, err := m.importers.Resolve(project.RepositoryKind)
	if err != nil {
		log.Errorf("Unknown source code import type: %s", project.RepositoryKind)
		return types.ImportResult{HasErrors: true}
	}

	var checkout string
	err = guard(m.logger, "import", func() error {
		var importErr error
		checkout, importErr = strategy.Import(ctx, project, auth, commitID, log)
		return importErr
	})
	if err != nil {
		log.Err(err)
		return types.ImportResult{HasErrors: true}
	}

	return types.ImportResult{CheckoutPath: checkout}
}

// ListRecentCommits returns up to count commits of the project, newest
// first. A nil slice with an error means the listing failed; an empty slice
// means the repository has no history.
func (m *ImportManager) ListRecentCommits(ctx context.Context, project *types.Project, kind types.RepositoryKind, auth *types.AuthInfo, count int, log *runlog.Log) ([]types.Commit, error) {
	if err := m.validator.ValidateAuthInfo(auth); err != nil {
		log.Errorf("Validation for repository credentials did not pass: %v", err)
		return nil, err
	}

	strategy, err := m.importers.Resolve(kind)
	if err != nil {
		log.Errorf("Unknown source code import type: %s", kind)
		return nil, err
	}

	var commits []types.Commit
	err = guard(m.logger, "list commits", func() error {
		var listErr error
		commits, listErr = strategy.ListCommits(ctx, project, auth, count, log)
		return listErr
	})
	if err != nil {
		log.Err(err)
		return nil, err
	}
	if commits == nil {
		return nil, errors.New("commit listing returned no result")
	}
	if len(commits) > count {
		commits = commits[:max(count, 0)]
	}
	return commits, nil
}

func credentialsFor(creds map[string]types.AuthInfo, kind types.RepositoryKind) *types.AuthInfo {
	auth, ok := creds[string(kind)]
	if !ok {
		return nil
	}
	return &auth
}
